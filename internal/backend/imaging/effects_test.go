package imaging

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/jo-hoe/gofilter/internal/backend/filters"
)

func uniformImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func definition(t *testing.T, kind string, params map[string]any) filters.Definition {
	t.Helper()
	def, err := filters.DefaultRegistry.Create("test", kind, params)
	if err != nil {
		t.Fatalf("Create(%s) error: %v", kind, err)
	}
	return def
}

func TestGaussianKernel_Normalised(t *testing.T) {
	for _, radius := range []float64{0, 0.5, 2.5, 10} {
		kernel := gaussianKernel(radius)
		if len(kernel)%2 != 1 {
			t.Errorf("radius %g: kernel length %d is not odd", radius, len(kernel))
		}
		var sum float64
		for _, v := range kernel {
			sum += float64(v)
		}
		if math.Abs(sum-1) > 1e-5 {
			t.Errorf("radius %g: kernel sums to %g, want 1", radius, sum)
		}
	}
}

func TestGaussianBlur_UniformImageUnchanged(t *testing.T) {
	c := color.NRGBA{R: 200, G: 100, B: 50, A: 255}
	out := gaussianBlur(uniformImage(9, 7, c), 3)

	for y := 0; y < 7; y++ {
		for x := 0; x < 9; x++ {
			if got := out.NRGBAAt(x, y); got != c {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, c)
			}
		}
	}
}

func TestColorMatrix_ThenWithIdentity(t *testing.T) {
	m := sepiaMatrix()
	if got := identityMatrix().then(m); got != m {
		t.Errorf("identity.then(m) = %v, want %v", got, m)
	}
	if got := m.then(identityMatrix()); got != m {
		t.Errorf("m.then(identity) = %v, want %v", got, m)
	}
}

func TestColorMatrix_SaturationZeroIsGray(t *testing.T) {
	out := saturationMatrix(0).apply(uniformImage(2, 2, color.NRGBA{R: 255, G: 0, B: 0, A: 255}))
	p := out.NRGBAAt(0, 0)
	if p.R != p.G || p.G != p.B {
		t.Errorf("pixel = %v, want equal channels", p)
	}
}

func TestColorClamp_Bounds(t *testing.T) {
	def := definition(t, filters.KindColorClamp, map[string]any{
		"minRed": 0.2, "minGreen": 0.2, "minBlue": 0.2,
		"maxRed": 0.9, "maxGreen": 0.9, "maxBlue": 0.9,
	})

	testCases := []struct {
		in   color.NRGBA
		want color.NRGBA
	}{
		{color.NRGBA{0, 0, 0, 255}, color.NRGBA{51, 51, 51, 255}},
		{color.NRGBA{255, 255, 255, 255}, color.NRGBA{230, 230, 230, 255}},
		{color.NRGBA{100, 120, 140, 255}, color.NRGBA{100, 120, 140, 255}},
	}
	for _, tc := range testCases {
		out, err := colorClamp(uniformImage(1, 1, tc.in), def)
		if err != nil {
			t.Fatalf("colorClamp error: %v", err)
		}
		if got := out.NRGBAAt(0, 0); got != tc.want {
			t.Errorf("colorClamp(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestVignette_DarkensCornersNotCentre(t *testing.T) {
	def := definition(t, filters.KindVignette, map[string]any{"intensity": 1.4, "radius": 21})
	white := color.NRGBA{255, 255, 255, 255}

	out, err := vignette(uniformImage(41, 41, white), def)
	if err != nil {
		t.Fatalf("vignette error: %v", err)
	}
	if got := out.NRGBAAt(20, 20); got != white {
		t.Errorf("centre = %v, want unchanged %v", got, white)
	}
	if got := out.NRGBAAt(0, 0); got.R >= 128 {
		t.Errorf("corner = %v, want darkened", got)
	}
}

func TestHardLight_ZeroIntensityKeepsMidGray(t *testing.T) {
	def := definition(t, filters.KindHardLight, map[string]any{"intensity": 0})
	gray := color.NRGBA{128, 128, 128, 255}

	out, err := hardLight(uniformImage(1, 1, gray), def)
	if err != nil {
		t.Fatalf("hardLight error: %v", err)
	}
	got := out.NRGBAAt(0, 0)
	if diff := int(got.R) - 128; diff < -2 || diff > 2 {
		t.Errorf("hard light of mid gray over itself = %v, want about 128", got)
	}
}

func TestUnsharpMask_UniformImageUnchanged(t *testing.T) {
	def := definition(t, filters.KindUnsharpMask, nil)
	c := color.NRGBA{10, 20, 30, 255}

	out, err := unsharpMask(uniformImage(5, 5, c), def)
	if err != nil {
		t.Fatalf("unsharpMask error: %v", err)
	}
	if got := out.NRGBAAt(2, 2); got != c {
		t.Errorf("pixel = %v, want %v", got, c)
	}
}
