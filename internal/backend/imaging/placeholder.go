package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
)

// placeholderSVG is a neutral picture glyph shown while a cell has no render.
const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
<rect x="0" y="0" width="100" height="100" fill="#e6e6e6"/>
<rect x="20" y="28" width="60" height="44" rx="4" fill="none" stroke="#9a9a9a" stroke-width="4"/>
<circle cx="38" cy="42" r="6" fill="#9a9a9a"/>
<path d="M24 68 L44 50 L56 60 L64 54 L76 68 Z" fill="#9a9a9a"/>
</svg>`

// Placeholder renders the placeholder glyph as a square PNG of the given size.
func Placeholder(size int) ([]byte, error) {
	return renderSVGToPNG([]byte(placeholderSVG), size, size)
}

// renderSVGToPNG rasterises svgData onto a white canvas of the target size.
func renderSVGToPNG(svgData []byte, targetW, targetH int) ([]byte, error) {
	if targetW <= 0 || targetH <= 0 {
		return nil, fmt.Errorf("invalid target dimensions for SVG rendering: %dx%d", targetW, targetH)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}
	icon.SetTarget(0, 0, float64(targetW), float64(targetH))

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(targetW, targetH, dst, dst.Bounds())
	dasher := rasterx.NewDasher(targetW, targetH, scanner)
	icon.Draw(dasher, 1.0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode rendered SVG as PNG: %w", err)
	}
	return buf.Bytes(), nil
}
