// Package capture turns a picked photo into the full and thumbnail JPEGs a
// new photo record is created from.
package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-playground/validator"
	"github.com/jo-hoe/gofilter/internal/backend/imaging"
)

var (
	// ErrMissingField is returned when a pick result lacks a required field.
	ErrMissingField = errors.New("missing field")
	// ErrUnsupportedMediaType is returned for picks that are not images.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
)

// PickResult is what a camera or library picker hands over.
type PickResult struct {
	OriginalImage []byte `validate:"required,min=1"`
	MediaType     string `validate:"required"`
}

// Prepared holds the encoded images of a new record.
type Prepared struct {
	Image     []byte
	Thumbnail []byte
}

var validate = validator.New()

// Validate checks the pick result at the boundary.
func (r PickResult) Validate() error {
	if err := validate.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("%w: %s", ErrMissingField, fieldErrs[0].Field())
		}
		return err
	}
	if !strings.HasPrefix(r.MediaType, "image/") {
		return fmt.Errorf("%w: %q", ErrUnsupportedMediaType, r.MediaType)
	}
	return nil
}

// FromFile builds a pick result from a file on disk, sniffing its media type.
func FromFile(path string) (PickResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PickResult{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return PickResult{OriginalImage: data, MediaType: http.DetectContentType(data)}, nil
}

// Prepare encodes the full image at full quality and derives the thumbnail.
func Prepare(result PickResult, full, thumbnail imaging.Quality) (Prepared, error) {
	if err := result.Validate(); err != nil {
		return Prepared{}, err
	}

	img, format, err := imaging.Decode(result.OriginalImage)
	if err != nil {
		return Prepared{}, err
	}

	fullBytes, err := imaging.Encode(imaging.Fit(img, full.MaxEdge), full)
	if err != nil {
		return Prepared{}, fmt.Errorf("encoding full image: %w", err)
	}
	thumbBytes, err := imaging.Encode(imaging.Fit(img, thumbnail.MaxEdge), thumbnail)
	if err != nil {
		return Prepared{}, fmt.Errorf("encoding thumbnail: %w", err)
	}

	slog.Debug("capture: prepared photo",
		"media_type", result.MediaType,
		"format", format,
		"full_size_bytes", len(fullBytes),
		"thumbnail_size_bytes", len(thumbBytes))
	return Prepared{Image: fullBytes, Thumbnail: thumbBytes}, nil
}
