package common

import (
	"errors"
	"net/http"

	"github.com/jo-hoe/gofilter/internal/backend/database"
	"github.com/jo-hoe/gofilter/internal/backend/filters"
	"github.com/jo-hoe/gofilter/internal/backend/imaging"
	"github.com/jo-hoe/gofilter/internal/capture"
)

// HTTPStatus maps domain errors onto response codes.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, filters.ErrOutOfRange),
		errors.Is(err, capture.ErrMissingField),
		errors.Is(err, capture.ErrUnsupportedMediaType),
		errors.Is(err, imaging.ErrDecode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
