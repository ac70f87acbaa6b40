package backend

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jo-hoe/gofilter/internal/backend/database"
	"github.com/jo-hoe/gofilter/internal/capture"
	"github.com/jo-hoe/gofilter/internal/common"
	"github.com/jo-hoe/gofilter/internal/core"
	"github.com/labstack/echo/v4"
)

// APIService exposes the photo and filter operations as JSON.
type APIService struct {
	coreService *core.CoreService
}

type Filter struct {
	Index  int                `json:"index"`
	Name   string             `json:"name"`
	Kind   string             `json:"kind"`
	Params map[string]float64 `json:"params,omitempty"`
}

type Photo struct {
	ID           string `json:"id"`
	Caption      string `json:"caption"`
	ImageURL     string `json:"imageUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

type CreatePhotoRequest struct {
	Image     []byte `json:"image" validate:"required,min=1"`
	MediaType string `json:"mediaType" validate:"required"`
	Caption   string `json:"caption"`
}

type CommitRequest struct {
	Index *int `json:"index" validate:"required,min=0"`
}

func NewAPIService(coreService *core.CoreService) *APIService {
	return &APIService{
		coreService: coreService,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	api := e.Group("/api")
	api.GET("/filters", s.listFiltersHandler)
	api.GET("/photos", s.listPhotosHandler)
	api.POST("/photos", s.createPhotoHandler)
	api.DELETE("/photos/:id", s.deletePhotoHandler)
	api.GET("/photos/:id/filters/:index", s.filterThumbnailHandler)
	api.POST("/photos/:id/commit", s.commitHandler)
}

func (s *APIService) listFiltersHandler(c echo.Context) error {
	defs := s.coreService.Filters()
	out := make([]Filter, len(defs))
	for i, d := range defs {
		out[i] = Filter{Index: i, Name: d.Name, Kind: d.Kind}
		if len(d.Params) > 0 {
			out[i].Params = make(map[string]float64, len(d.Params))
			for _, p := range d.Params {
				out[i].Params[p.Name] = p.Value
			}
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *APIService) listPhotosHandler(c echo.Context) error {
	records, err := s.coreService.ListPhotos(c.Request().Context())
	if err != nil {
		return s.fail(c, "listPhotos", err)
	}
	out := make([]Photo, 0, len(records))
	for _, r := range records {
		out = append(out, toPhoto(r))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *APIService) createPhotoHandler(c echo.Context) error {
	var req CreatePhotoRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "received malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	record, err := s.coreService.AddPhoto(c.Request().Context(),
		capture.PickResult{OriginalImage: req.Image, MediaType: req.MediaType}, req.Caption)
	if err != nil {
		return s.fail(c, "createPhoto", err)
	}
	return c.JSON(http.StatusCreated, toPhoto(record))
}

func (s *APIService) deletePhotoHandler(c echo.Context) error {
	if err := s.coreService.DeletePhoto(c.Request().Context(), c.Param("id")); err != nil {
		return s.fail(c, "deletePhoto", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIService) filterThumbnailHandler(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "filter index must be an integer")
	}
	data, err := s.coreService.FilterThumbnail(c.Request().Context(), c.Param("id"), index)
	if err != nil {
		return s.fail(c, "filterThumbnail", err)
	}
	return c.Blob(http.StatusOK, "image/jpeg", data)
}

func (s *APIService) commitHandler(c echo.Context) error {
	var req CommitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "received malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	record, err := s.coreService.CommitFilter(c.Request().Context(), c.Param("id"), *req.Index)
	if err != nil {
		return s.fail(c, "commit", err)
	}
	return c.JSON(http.StatusOK, toPhoto(record))
}

func (s *APIService) fail(c echo.Context, op string, err error) error {
	status := common.HTTPStatus(err)
	slog.Error("api request failed", "op", op, "status", status, "path", c.Request().URL.Path, "error", err)
	return echo.NewHTTPError(status, err.Error())
}

func toPhoto(r *database.PhotoRecord) Photo {
	return Photo{
		ID:           r.ID,
		Caption:      r.Caption,
		ImageURL:     "/htmx/image/" + r.ID + "/full",
		ThumbnailURL: "/htmx/image/" + r.ID + "/thumbnail",
	}
}
