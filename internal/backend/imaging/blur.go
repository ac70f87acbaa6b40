package imaging

import (
	"image"
	"math"
	"sync"
)

// kernels caches normalised Gaussian kernels keyed by radius*100.
var kernels sync.Map

// gaussianKernel returns a normalised 1D kernel of size 2*ceil(3r)+1 using
// the radius as sigma. A radius <= 0 yields the identity kernel.
func gaussianKernel(radius float64) []float32 {
	if radius <= 0 {
		return []float32{1}
	}
	key := int(math.Round(radius * 100))
	if k, ok := kernels.Load(key); ok {
		return k.([]float32)
	}

	half := int(math.Ceil(radius * 3))
	kernel := make([]float32, half*2+1)
	twoSigmaSq := 2 * radius * radius
	var sum float64
	for i := range kernel {
		x := float64(i - half)
		v := math.Exp(-(x * x) / twoSigmaSq)
		kernel[i] = float32(v)
		sum += v
	}
	inv := float32(1 / sum)
	for i := range kernel {
		kernel[i] *= inv
	}

	actual, _ := kernels.LoadOrStore(key, kernel)
	return actual.([]float32)
}

// gaussianBlur applies a separable Gaussian blur with edge extension.
func gaussianBlur(src *image.NRGBA, radius float64) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewNRGBA(b)
	if radius <= 0 || w == 0 || h == 0 {
		copy(dst.Pix, src.Pix)
		return dst
	}

	kernel := gaussianKernel(radius)
	half := len(kernel) / 2
	temp := make([]float32, w*h*4)

	// Horizontal pass: src -> temp.
	parallelRows(h, func(y int) {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < w; x++ {
			var r, g, bl, a float32
			for k, weight := range kernel {
				kx := clampInt(x+k-half, 0, w-1) * 4
				r += float32(row[kx+0]) * weight
				g += float32(row[kx+1]) * weight
				bl += float32(row[kx+2]) * weight
				a += float32(row[kx+3]) * weight
			}
			t := (y*w + x) * 4
			temp[t+0], temp[t+1], temp[t+2], temp[t+3] = r, g, bl, a
		}
	})

	// Vertical pass: temp -> dst.
	parallelRows(h, func(y int) {
		drow := dst.Pix[y*dst.Stride:]
		for x := 0; x < w; x++ {
			var r, g, bl, a float32
			for k, weight := range kernel {
				t := (clampInt(y+k-half, 0, h-1)*w + x) * 4
				r += temp[t+0] * weight
				g += temp[t+1] * weight
				bl += temp[t+2] * weight
				a += temp[t+3] * weight
			}
			i := x * 4
			drow[i+0] = clampUint8(float64(r))
			drow[i+1] = clampUint8(float64(g))
			drow[i+2] = clampUint8(float64(bl))
			drow[i+3] = clampUint8(float64(a))
		}
	})
	return dst
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
