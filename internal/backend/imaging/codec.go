package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Quality selects the resolution and compression of an encoded render.
type Quality struct {
	Name string
	// MaxEdge bounds the longest side in pixels; 0 keeps the source size.
	MaxEdge int
	// JPEGQuality is the encoder quality in [1, 100].
	JPEGQuality int
}

// FullQuality keeps the source resolution with the best compression quality.
func FullQuality() Quality {
	return Quality{Name: "full", MaxEdge: 0, JPEGQuality: 100}
}

// ThumbnailQuality bounds the longest side and compresses harder.
func ThumbnailQuality(maxEdge, jpegQuality int) Quality {
	return Quality{Name: "thumbnail", MaxEdge: maxEdge, JPEGQuality: jpegQuality}
}

// Decode parses encoded image bytes into a straight-alpha RGBA buffer.
// Transparent areas are flattened onto white because the output is JPEG.
func Decode(data []byte) (*image.NRGBA, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty input", ErrDecode)
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst, format, nil
}

// Fit scales img down so its longest side is at most maxEdge, keeping the
// aspect ratio. Images are never enlarged.
func Fit(img *image.NRGBA, maxEdge int) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return img
	}

	tw, th := maxEdge, maxEdge
	if w >= h {
		th = max(1, h*maxEdge/w)
	} else {
		tw = max(1, w*maxEdge/h)
	}
	slog.Debug("imaging: scaling image",
		"source_width", w, "source_height", h,
		"target_width", tw, "target_height", th)

	dst := image.NewNRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Encode compresses img as JPEG at the quality's compression level.
func Encode(img image.Image, q Quality) ([]byte, error) {
	jq := q.JPEGQuality
	if jq < 1 || jq > 100 {
		return nil, fmt.Errorf("jpeg quality must be within [1, 100], got %d", jq)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jq}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
