package imaging

import "image"

// Rec. 709 luminance weights.
const (
	lumR = 0.2126
	lumG = 0.7152
	lumB = 0.0722
)

// colorMatrix is a 4x5 row-major color transform over straight-alpha values
// in [0, 255]:
//
//	[R']   [m0  m1  m2  m3  m4 ]   [R]
//	[G'] = [m5  m6  m7  m8  m9 ] * [G]
//	[B']   [m10 m11 m12 m13 m14]   [B]
//	[A']   [m15 m16 m17 m18 m19]   [A]
//	                               [1]
type colorMatrix [20]float64

func identityMatrix() colorMatrix {
	return colorMatrix{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// saturationMatrix blends between luminance (0) and identity (1).
func saturationMatrix(s float64) colorMatrix {
	inv := 1 - s
	return colorMatrix{
		lumR*inv + s, lumG * inv, lumB * inv, 0, 0,
		lumR * inv, lumG*inv + s, lumB * inv, 0, 0,
		lumR * inv, lumG * inv, lumB*inv + s, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// brightnessMatrix adds b (in [-1, 1]) to every color channel.
func brightnessMatrix(b float64) colorMatrix {
	o := b * 255
	return colorMatrix{
		1, 0, 0, 0, o,
		0, 1, 0, 0, o,
		0, 0, 1, 0, o,
		0, 0, 0, 1, 0,
	}
}

// contrastMatrix scales around mid gray: (c - 128) * f + 128.
func contrastMatrix(f float64) colorMatrix {
	o := 128 * (1 - f)
	return colorMatrix{
		f, 0, 0, 0, o,
		0, f, 0, 0, o,
		0, 0, f, 0, o,
		0, 0, 0, 1, 0,
	}
}

func sepiaMatrix() colorMatrix {
	return colorMatrix{
		0.393, 0.769, 0.189, 0, 0,
		0.349, 0.686, 0.168, 0, 0,
		0.272, 0.534, 0.131, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// monochromeMatrix maps luminance onto the tint (r, g, b). The tint is
// normalised so mid gray keeps its luminance.
func monochromeMatrix(r, g, b float64) colorMatrix {
	lum := lumR*r + lumG*g + lumB*b
	if lum <= 0 {
		return saturationMatrix(0)
	}
	sr, sg, sb := r/lum, g/lum, b/lum
	return colorMatrix{
		lumR * sr, lumG * sr, lumB * sr, 0, 0,
		lumR * sg, lumG * sg, lumB * sg, 0, 0,
		lumR * sb, lumG * sb, lumB * sb, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// warmMatrix shifts the white balance by the given per-channel gains and offsets.
func warmMatrix(gr, gg, gb, or, og, ob float64) colorMatrix {
	return colorMatrix{
		gr, 0, 0, 0, or,
		0, gg, 0, 0, og,
		0, 0, gb, 0, ob,
		0, 0, 0, 1, 0,
	}
}

// then returns the matrix that applies m first and next second.
func (m colorMatrix) then(next colorMatrix) colorMatrix {
	var r colorMatrix
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += next[row*5+k] * m[k*5+col]
			}
			r[row*5+col] = sum
		}
		r[row*5+4] = next[row*5+0]*m[4] + next[row*5+1]*m[9] +
			next[row*5+2]*m[14] + next[row*5+3]*m[19] + next[row*5+4]
	}
	return r
}

// mix interpolates linearly between m (t=0) and other (t=1).
func (m colorMatrix) mix(other colorMatrix, t float64) colorMatrix {
	var r colorMatrix
	for i := range r {
		r[i] = m[i]*(1-t) + other[i]*t
	}
	return r
}

// apply transforms every pixel of src into a new image.
func (m colorMatrix) apply(src *image.NRGBA) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	w := b.Dx()

	parallelRows(b.Dy(), func(y int) {
		srow := src.Pix[y*src.Stride : y*src.Stride+w*4]
		drow := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		for x := 0; x < w; x++ {
			i := x * 4
			r := float64(srow[i+0])
			g := float64(srow[i+1])
			bl := float64(srow[i+2])
			a := float64(srow[i+3])

			drow[i+0] = clampUint8(m[0]*r + m[1]*g + m[2]*bl + m[3]*a + m[4])
			drow[i+1] = clampUint8(m[5]*r + m[6]*g + m[7]*bl + m[8]*a + m[9])
			drow[i+2] = clampUint8(m[10]*r + m[11]*g + m[12]*bl + m[13]*a + m[14])
			drow[i+3] = clampUint8(m[15]*r + m[16]*g + m[17]*bl + m[18]*a + m[19])
		}
	})
	return dst
}

func clampUint8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
