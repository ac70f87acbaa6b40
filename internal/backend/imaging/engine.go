package imaging

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jo-hoe/gofilter/internal/backend/filters"
)

var (
	// ErrDecode is returned when the input bytes are not a decodable image.
	ErrDecode = errors.New("failed to decode image")
	// ErrRender is returned when a filter cannot produce an output.
	ErrRender = errors.New("failed to render filter")
)

// Engine renders filter definitions onto encoded images. It holds no
// mutable state, so one engine may serve any number of goroutines.
type Engine struct {
	operations map[string]operation
}

// NewEngine creates an engine that supports every kind in the filter registry.
func NewEngine() *Engine {
	return &Engine{
		operations: defaultOperations(),
	}
}

// Supports reports whether the engine can render the given kind.
func (e *Engine) Supports(kind string) bool {
	_, ok := e.operations[kind]
	return ok
}

// Render decodes src, fits it to the quality's resolution, applies def and
// re-encodes the result. Equal inputs always produce equal bytes.
func (e *Engine) Render(src []byte, def filters.Definition, q Quality) ([]byte, error) {
	start := time.Now()

	op, ok := e.operations[def.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported filter kind %q", ErrRender, def.Kind)
	}

	img, format, err := Decode(src)
	if err != nil {
		slog.Error("imaging: decode failed",
			"filter", def.Name,
			"input_size_bytes", len(src),
			"error", err)
		return nil, err
	}
	img = Fit(img, q.MaxEdge)

	slog.Debug("imaging: applying filter",
		"filter", def.Name,
		"kind", def.Kind,
		"quality", q.Name,
		"format", format,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy())

	filtered, err := op(img, def)
	if err != nil {
		slog.Error("imaging: filter failed", "filter", def.Name, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}

	out, err := Encode(filtered, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}

	slog.Debug("imaging: render completed",
		"filter", def.Name,
		"quality", q.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"input_size_bytes", len(src),
		"output_size_bytes", len(out))
	return out, nil
}

// Transcode re-encodes src at the given quality without applying a filter.
func (e *Engine) Transcode(src []byte, q Quality) ([]byte, error) {
	img, _, err := Decode(src)
	if err != nil {
		return nil, err
	}
	out, err := Encode(Fit(img, q.MaxEdge), q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return out, nil
}
