package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/jo-hoe/gofilter/internal/backend/filters"
)

// operation applies one filter kind to a decoded image.
type operation func(img *image.NRGBA, def filters.Definition) (*image.NRGBA, error)

// requireParams looks up the named parameters in declaration order.
func requireParams(def filters.Definition, names ...string) ([]float64, error) {
	values := make([]float64, len(names))
	for i, name := range names {
		v, ok := def.Param(name)
		if !ok {
			return nil, fmt.Errorf("filter %s (%s) is missing required parameter %s", def.Name, def.Kind, name)
		}
		values[i] = v
	}
	return values, nil
}

func matrixOperation(build func(values []float64) colorMatrix, names ...string) operation {
	return func(img *image.NRGBA, def filters.Definition) (*image.NRGBA, error) {
		values, err := requireParams(def, names...)
		if err != nil {
			return nil, err
		}
		return build(values).apply(img), nil
	}
}

// defaultOperations binds every filter kind to its transform.
func defaultOperations() map[string]operation {
	return map[string]operation{
		filters.KindGaussianBlur: func(img *image.NRGBA, def filters.Definition) (*image.NRGBA, error) {
			v, err := requireParams(def, "radius")
			if err != nil {
				return nil, err
			}
			return gaussianBlur(img, v[0]), nil
		},
		filters.KindPhotoInstant: matrixOperation(func([]float64) colorMatrix {
			return saturationMatrix(1.2).then(warmMatrix(1.04, 1.0, 0.92, 10, 4, -6))
		}),
		filters.KindPhotoNoir: matrixOperation(func([]float64) colorMatrix {
			return saturationMatrix(0).then(contrastMatrix(1.4))
		}),
		filters.KindPhotoTransfer: matrixOperation(func([]float64) colorMatrix {
			return saturationMatrix(0.8).then(warmMatrix(1.05, 1.0, 0.9, 8, 2, 0))
		}),
		filters.KindUnsharpMask: unsharpMask,
		filters.KindMonochrome: matrixOperation(func(v []float64) colorMatrix {
			return identityMatrix().mix(monochromeMatrix(v[0], v[1], v[2]), v[3])
		}, "red", "green", "blue", "intensity"),
		filters.KindColorControls: matrixOperation(func(v []float64) colorMatrix {
			return saturationMatrix(v[0]).then(brightnessMatrix(v[1])).then(contrastMatrix(v[2]))
		}, "saturation", "brightness", "contrast"),
		filters.KindSepia: matrixOperation(func(v []float64) colorMatrix {
			return identityMatrix().mix(sepiaMatrix(), v[0])
		}, "intensity"),
		filters.KindColorClamp: colorClamp,
		filters.KindHardLight:  hardLight,
		filters.KindVignette:   vignette,
	}
}

// unsharpMask adds intensity times the difference between the image and its blur.
func unsharpMask(img *image.NRGBA, def filters.Definition) (*image.NRGBA, error) {
	v, err := requireParams(def, "radius", "intensity")
	if err != nil {
		return nil, err
	}
	radius, amount := v[0], v[1]
	blurred := gaussianBlur(img, radius)

	dst := image.NewNRGBA(img.Bounds())
	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			o := float64(img.Pix[i+c])
			dst.Pix[i+c] = clampUint8(o + amount*(o-float64(blurred.Pix[i+c])))
		}
		dst.Pix[i+3] = img.Pix[i+3]
	}
	return dst, nil
}

// colorClamp limits each channel to [min, max], expressed in [0, 1].
func colorClamp(img *image.NRGBA, def filters.Definition) (*image.NRGBA, error) {
	v, err := requireParams(def, "minRed", "minGreen", "minBlue", "maxRed", "maxGreen", "maxBlue")
	if err != nil {
		return nil, err
	}
	var lo, hi [3]uint8
	for c := 0; c < 3; c++ {
		lo[c] = clampUint8(v[c] * 255)
		hi[c] = clampUint8(v[c+3] * 255)
	}

	dst := image.NewNRGBA(img.Bounds())
	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			p := img.Pix[i+c]
			if p < lo[c] {
				p = lo[c]
			} else if p > hi[c] {
				p = hi[c]
			}
			dst.Pix[i+c] = p
		}
		dst.Pix[i+3] = img.Pix[i+3]
	}
	return dst, nil
}

// hardLight blends a sepia toned layer of the given intensity over the
// source using the hard light mode.
func hardLight(img *image.NRGBA, def filters.Definition) (*image.NRGBA, error) {
	v, err := requireParams(def, "intensity")
	if err != nil {
		return nil, err
	}
	top := identityMatrix().mix(sepiaMatrix(), v[0]).apply(img)

	dst := image.NewNRGBA(img.Bounds())
	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			base := float64(img.Pix[i+c]) / 255
			blend := float64(top.Pix[i+c]) / 255
			var out float64
			if blend <= 0.5 {
				out = 2 * base * blend
			} else {
				out = 1 - 2*(1-base)*(1-blend)
			}
			dst.Pix[i+c] = clampUint8(out * 255)
		}
		dst.Pix[i+3] = img.Pix[i+3]
	}
	return dst, nil
}

// vignette darkens pixels by their distance from the centre. radius is the
// percentage of the half diagonal where darkening starts; intensity is the
// darkening reached at the corners.
func vignette(img *image.NRGBA, def filters.Definition) (*image.NRGBA, error) {
	v, err := requireParams(def, "intensity", "radius")
	if err != nil {
		return nil, err
	}
	strength, start := v[0], v[1]/100
	if start >= 1 {
		start = 0.999
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	cx, cy := float64(w)/2, float64(h)/2
	halfDiagonal := math.Hypot(cx, cy)
	dst := image.NewNRGBA(b)

	parallelRows(h, func(y int) {
		for x := 0; x < w; x++ {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy) / halfDiagonal
			t := (d - start) / (1 - start)
			t = math.Max(0, math.Min(1, t))
			factor := math.Max(0, 1-strength*t*t*(3-2*t))

			i := y*img.Stride + x*4
			dst.Pix[i+0] = clampUint8(float64(img.Pix[i+0]) * factor)
			dst.Pix[i+1] = clampUint8(float64(img.Pix[i+1]) * factor)
			dst.Pix[i+2] = clampUint8(float64(img.Pix[i+2]) * factor)
			dst.Pix[i+3] = img.Pix[i+3]
		}
	})
	return dst, nil
}
