package frontend

import (
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jo-hoe/gofilter/internal/backend/database"
	"github.com/jo-hoe/gofilter/internal/backend/filters"
	"github.com/jo-hoe/gofilter/internal/backend/scheduler"
	"github.com/jo-hoe/gofilter/internal/capture"
	"github.com/jo-hoe/gofilter/internal/common"
	"github.com/jo-hoe/gofilter/internal/core"
	"github.com/labstack/echo/v4"
)

const (
	MainPageName = "index.html"
	mimeJPEG     = "image/jpeg"
	mimePNG      = "image/png"
)

type FrontendService struct {
	coreService *core.CoreService
}

func NewFrontendService(coreService *core.CoreService) *FrontendService {
	return &FrontendService{
		coreService: coreService,
	}
}

type photoView struct {
	ID      string
	Caption string
}

type listView struct {
	Photos []photoView
	TS     string
}

type uploadView struct {
	Filename string
	List     listView
}

type cellView struct {
	RecordID string
	Index    int
	Name     string
	State    string
	Ready    bool
	Failed   bool
	Polling  bool
}

type filtersView struct {
	RecordID string
	Caption  string
	Cells    []cellView
}

// rootRedirectHandler redirects root path to index.html
func (service *FrontendService) rootRedirectHandler(ctx echo.Context) error {
	return ctx.Redirect(http.StatusMovedPermanently, "/"+MainPageName)
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = newTemplate()

	e.GET("/", service.rootRedirectHandler)
	e.GET("/"+MainPageName, service.indexHandler)
	e.POST("/htmx/uploadImage", service.htmxUploadImageHandler)

	// Feed
	e.GET("/htmx/images", service.htmxListImagesHandler)
	e.GET("/htmx/image/:id/thumbnail", service.htmxGetThumbnailHandler)
	e.GET("/htmx/image/:id/full", service.htmxGetFullImageHandler)
	e.DELETE("/htmx/image/:id", service.htmxDeleteImageHandler)

	// Filter grid
	e.GET("/filters/:id", service.filtersPageHandler)
	e.GET("/htmx/filters/:id/cell/:index", service.htmxCellHandler)
	e.GET("/htmx/filters/:id/cell/:index/image", service.htmxCellImageHandler)
	e.POST("/htmx/filters/:id/commit/:index", service.htmxCommitHandler)

	e.GET("/placeholder.png", service.placeholderHandler)
	e.GET("/icon.svg", service.iconHandler)
}

func (service *FrontendService) indexHandler(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, MainPageName, nil)
}

func (service *FrontendService) htmxUploadImageHandler(ctx echo.Context) error {
	file, err := ctx.FormFile("image")
	if err != nil {
		slog.Error("htmxUploadImageHandler: failed to get uploaded file",
			"status", http.StatusBadRequest, "error", err)
		return ctx.String(http.StatusBadRequest, "Failed to get uploaded file")
	}

	src, err := file.Open()
	if err != nil {
		slog.Error("htmxUploadImageHandler: failed to open uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.String(http.StatusInternalServerError, "Failed to open uploaded file")
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("htmxUploadImageHandler: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	data, err := io.ReadAll(src)
	if err != nil {
		slog.Error("htmxUploadImageHandler: failed to read uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.String(http.StatusInternalServerError, "Failed to read uploaded file")
	}

	result := capture.PickResult{OriginalImage: data, MediaType: http.DetectContentType(data)}
	if _, err := service.coreService.AddPhoto(ctx.Request().Context(), result, ctx.FormValue("caption")); err != nil {
		status := common.HTTPStatus(err)
		slog.Error("htmxUploadImageHandler: failed to add photo",
			"status", status, "error", err, "filename", file.Filename)
		return ctx.String(status, "Failed to process uploaded image")
	}

	list, err := service.buildListView(ctx)
	if err != nil {
		// The photo is stored; only the out-of-band list refresh is skipped.
		slog.Error("htmxUploadImageHandler: failed to list photos for OOB update",
			"status", http.StatusInternalServerError, "error", err)
		return ctx.HTML(http.StatusOK, fmt.Sprintf(`<div id="upload-result">Uploaded file: %s</div>`, html.EscapeString(file.Filename)))
	}
	return ctx.Render(http.StatusOK, "uploadResult", uploadView{Filename: file.Filename, List: list})
}

func (service *FrontendService) htmxListImagesHandler(ctx echo.Context) error {
	list, err := service.buildListView(ctx)
	if err != nil {
		slog.Error("htmxListImagesHandler: failed to list photos",
			"status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to list images")
	}

	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, "imageList", list)
}

func (service *FrontendService) htmxGetThumbnailHandler(ctx echo.Context) error {
	return service.servePhoto(ctx, func(r *database.PhotoRecord) []byte { return r.Thumbnail })
}

func (service *FrontendService) htmxGetFullImageHandler(ctx echo.Context) error {
	return service.servePhoto(ctx, func(r *database.PhotoRecord) []byte { return r.Image })
}

func (service *FrontendService) servePhoto(ctx echo.Context, pick func(*database.PhotoRecord) []byte) error {
	id := ctx.Param("id")
	record, err := service.coreService.GetPhoto(ctx.Request().Context(), id)
	if err != nil {
		status := common.HTTPStatus(err)
		slog.Warn("servePhoto: image not available",
			"status", status, "image_id", id, "route", ctx.Path(), "error", err)
		return ctx.String(status, "Image not available")
	}

	service.setNoCache(ctx)
	return ctx.Blob(http.StatusOK, mimeJPEG, pick(record))
}

func (service *FrontendService) htmxDeleteImageHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := service.coreService.DeletePhoto(ctx.Request().Context(), id); err != nil {
		status := common.HTTPStatus(err)
		slog.Error("htmxDeleteImageHandler: failed to delete photo",
			"status", status, "image_id", id, "error", err)
		return ctx.String(status, "Failed to delete image")
	}

	list, err := service.buildListView(ctx)
	if err != nil {
		slog.Error("htmxDeleteImageHandler: failed to list photos after delete",
			"status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to list images")
	}

	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, "imageList", list)
}

func (service *FrontendService) filtersPageHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	reqCtx := ctx.Request().Context()

	record, err := service.coreService.GetPhoto(reqCtx, id)
	if err != nil {
		status := common.HTTPStatus(err)
		slog.Warn("filtersPageHandler: photo not available", "status", status, "image_id", id, "error", err)
		return ctx.String(status, "Photo not available")
	}
	session, err := service.coreService.OpenFilterSession(reqCtx, id)
	if err != nil {
		slog.Error("filtersPageHandler: failed to open filter session", "image_id", id, "error", err)
		return ctx.String(common.HTTPStatus(err), "Failed to open filters")
	}
	cells, err := session.Cells(reqCtx)
	if err != nil {
		slog.Error("filtersPageHandler: failed to read cells", "image_id", id, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to open filters")
	}

	defs := service.coreService.Filters()
	view := filtersView{RecordID: id, Caption: record.Caption}
	for _, c := range cells {
		view.Cells = append(view.Cells, newCellView(id, defs, c))
	}

	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, "filters", view)
}

func (service *FrontendService) htmxCellHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	cell, ok, err := service.lookupCell(ctx)
	if !ok {
		return err
	}

	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, "cell", newCellView(id, service.coreService.Filters(), cell))
}

func (service *FrontendService) htmxCellImageHandler(ctx echo.Context) error {
	cell, ok, err := service.lookupCell(ctx)
	if !ok {
		return err
	}

	service.setNoCache(ctx)
	if cell.State == scheduler.StateReady {
		return ctx.Blob(http.StatusOK, mimeJPEG, cell.Image)
	}
	return ctx.Blob(http.StatusOK, mimePNG, service.coreService.Placeholder())
}

// lookupCell resolves :id and :index to a cell snapshot. When ok is false
// the response has been written and err is what the handler returns.
func (service *FrontendService) lookupCell(ctx echo.Context) (scheduler.CellSnapshot, bool, error) {
	id := ctx.Param("id")
	index, err := strconv.Atoi(ctx.Param("index"))
	if err != nil {
		return scheduler.CellSnapshot{}, false, ctx.String(http.StatusBadRequest, "Invalid filter index")
	}
	reqCtx := ctx.Request().Context()

	session, found := service.coreService.Session(id)
	if !found {
		if session, err = service.coreService.OpenFilterSession(reqCtx, id); err != nil {
			status := common.HTTPStatus(err)
			slog.Warn("lookupCell: no filter session", "status", status, "image_id", id, "error", err)
			return scheduler.CellSnapshot{}, false, ctx.String(status, "Photo not available")
		}
	}
	cell, err := session.Cell(reqCtx, index)
	if err != nil {
		slog.Warn("lookupCell: cell not available", "image_id", id, "index", index, "error", err)
		return scheduler.CellSnapshot{}, false, ctx.String(http.StatusNotFound, "Filter not available")
	}
	return cell, true, nil
}

func (service *FrontendService) htmxCommitHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	index, err := strconv.Atoi(ctx.Param("index"))
	if err != nil {
		return ctx.String(http.StatusBadRequest, "Invalid filter index")
	}

	if _, err := service.coreService.CommitFilter(ctx.Request().Context(), id, index); err != nil {
		status := common.HTTPStatus(err)
		slog.Error("htmxCommitHandler: failed to commit filter",
			"status", status, "image_id", id, "index", index, "error", err)
		if errors.Is(err, database.ErrPersistence) {
			return ctx.String(status, "Failed to save filtered photo, please try again")
		}
		return ctx.String(status, "Failed to apply filter")
	}

	ctx.Response().Header().Set("HX-Redirect", "/"+MainPageName)
	return ctx.NoContent(http.StatusOK)
}

func (service *FrontendService) placeholderHandler(ctx echo.Context) error {
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, mimePNG, service.coreService.Placeholder())
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	data, err := assetsFS.ReadFile("views/icon.svg")
	if err != nil {
		slog.Error("iconHandler: failed to read icon.svg", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, "image/svg+xml", data)
}

func (service *FrontendService) buildListView(ctx echo.Context) (listView, error) {
	records, err := service.coreService.ListPhotos(ctx.Request().Context())
	if err != nil {
		return listView{}, err
	}
	view := listView{TS: service.timestampNanoStr()}
	for _, r := range records {
		view.Photos = append(view.Photos, photoView{ID: r.ID, Caption: r.Caption})
	}
	return view, nil
}

func newCellView(recordID string, defs []filters.Definition, c scheduler.CellSnapshot) cellView {
	view := cellView{
		RecordID: recordID,
		Index:    c.Index,
		State:    c.State.String(),
		Ready:    c.State == scheduler.StateReady,
		Failed:   c.Err != nil,
	}
	if c.Index >= 0 && c.Index < len(defs) {
		view.Name = defs[c.Index].Name
	}
	view.Polling = !view.Ready && !view.Failed
	return view
}

func (service *FrontendService) setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}

func (service *FrontendService) timestampNanoStr() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
