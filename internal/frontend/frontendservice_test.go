package frontend

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jo-hoe/gofilter/internal/capture"
	"github.com/jo-hoe/gofilter/internal/core"
	"github.com/labstack/echo/v4"
)

func newTestFrontend(t *testing.T) (*echo.Echo, *core.CoreService) {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Database = core.Database{Type: "sqlite", ConnectionString: ":memory:"}
	cfg.Cache.Dir = t.TempDir()
	cfg.Thumbnail.MaxEdge = 24

	svc, err := core.NewCoreService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewCoreService error: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })

	e := echo.New()
	NewFrontendService(svc).SetRoutes(e)
	return e, svc
}

func createTestPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 8), 90, uint8(y * 8), 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func serve(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func addPhoto(t *testing.T, svc *core.CoreService, caption string) string {
	t.Helper()
	record, err := svc.AddPhoto(context.Background(),
		capture.PickResult{OriginalImage: createTestPNG(t), MediaType: "image/png"}, caption)
	if err != nil {
		t.Fatalf("AddPhoto error: %v", err)
	}
	return record.ID
}

func TestRootRedirect(t *testing.T) {
	e, _ := newTestFrontend(t)
	rec := serve(e, http.MethodGet, "/")
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/"+MainPageName {
		t.Errorf("Location = %q", loc)
	}
}

func TestIndexAndIcon(t *testing.T) {
	e, _ := newTestFrontend(t)

	rec := serve(e, http.MethodGet, "/"+MainPageName)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `hx-post="/htmx/uploadImage"`) {
		t.Errorf("index status = %d, body missing upload form", rec.Code)
	}

	rec = serve(e, http.MethodGet, "/icon.svg")
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderContentType) != "image/svg+xml" {
		t.Errorf("icon status = %d, content type %q", rec.Code, rec.Header().Get(echo.HeaderContentType))
	}

	rec = serve(e, http.MethodGet, "/placeholder.png")
	if rec.Code != http.StatusOK {
		t.Fatalf("placeholder status = %d", rec.Code)
	}
	if _, err := png.Decode(bytes.NewReader(rec.Body.Bytes())); err != nil {
		t.Errorf("placeholder is not a png: %v", err)
	}
}

func TestUploadImage(t *testing.T) {
	e, svc := newTestFrontend(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "photo.png")
	if err != nil {
		t.Fatalf("CreateFormFile error: %v", err)
	}
	if _, err := part.Write(createTestPNG(t)); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if err := writer.WriteField("caption", "<sunset>"); err != nil {
		t.Fatalf("WriteField error: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/htmx/uploadImage", &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	html := rec.Body.String()
	if !strings.Contains(html, "Uploaded file: photo.png") || !strings.Contains(html, `hx-swap-oob="true"`) {
		t.Errorf("unexpected upload response: %s", html)
	}
	if !strings.Contains(html, "&lt;sunset&gt;") {
		t.Errorf("caption not escaped in list: %s", html)
	}

	records, err := svc.ListPhotos(context.Background())
	if err != nil || len(records) != 1 {
		t.Fatalf("ListPhotos = %d records, err %v", len(records), err)
	}
}

func TestUploadImage_MissingFile(t *testing.T) {
	e, _ := newTestFrontend(t)
	if rec := serve(e, http.MethodPost, "/htmx/uploadImage"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListAndDeleteImages(t *testing.T) {
	e, svc := newTestFrontend(t)

	rec := serve(e, http.MethodGet, "/htmx/images")
	if !strings.Contains(rec.Body.String(), "No photos yet.") {
		t.Errorf("empty list body = %s", rec.Body.String())
	}

	id := addPhoto(t, svc, "first")
	rec = serve(e, http.MethodGet, "/htmx/images")
	if !strings.Contains(rec.Body.String(), "first") || !strings.Contains(rec.Body.String(), "/filters/"+id) {
		t.Errorf("list body = %s", rec.Body.String())
	}

	for _, suffix := range []string{"thumbnail", "full"} {
		rec = serve(e, http.MethodGet, "/htmx/image/"+id+"/"+suffix)
		if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderContentType) != mimeJPEG {
			t.Errorf("%s status = %d, content type %q", suffix, rec.Code, rec.Header().Get(echo.HeaderContentType))
		}
	}
	if rec = serve(e, http.MethodGet, "/htmx/image/missing/thumbnail"); rec.Code != http.StatusNotFound {
		t.Errorf("missing thumbnail status = %d, want 404", rec.Code)
	}

	rec = serve(e, http.MethodDelete, "/htmx/image/"+id)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "No photos yet.") {
		t.Errorf("delete status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestFilterGrid(t *testing.T) {
	e, svc := newTestFrontend(t)
	id := addPhoto(t, svc, "grid")

	rec := serve(e, http.MethodGet, "/filters/"+id)
	if rec.Code != http.StatusOK {
		t.Fatalf("filters page status = %d", rec.Code)
	}
	for _, want := range []string{`id="cell-0"`, `id="cell-10"`, "blur", "vignette"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("filters page missing %q", want)
		}
	}

	session, ok := svc.Session(id)
	if !ok {
		t.Fatal("filters page did not open a session")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := session.Wait(ctx); err != nil {
		t.Fatalf("Wait error: %v", err)
	}

	rec = serve(e, http.MethodGet, "/htmx/filters/"+id+"/cell/2")
	if rec.Code != http.StatusOK {
		t.Fatalf("cell status = %d", rec.Code)
	}
	cell := rec.Body.String()
	if strings.Contains(cell, "hx-trigger") {
		t.Error("ready cell keeps polling")
	}
	if !strings.Contains(cell, "/commit/2") {
		t.Error("ready cell has no apply button")
	}

	rec = serve(e, http.MethodGet, "/htmx/filters/"+id+"/cell/2/image")
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderContentType) != mimeJPEG {
		t.Errorf("cell image status = %d, content type %q", rec.Code, rec.Header().Get(echo.HeaderContentType))
	}

	tests := []struct {
		path string
		want int
	}{
		{"/htmx/filters/" + id + "/cell/99", http.StatusNotFound},
		{"/htmx/filters/" + id + "/cell/x", http.StatusBadRequest},
		{"/htmx/filters/missing/cell/0", http.StatusNotFound},
		{"/filters/missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		if rec := serve(e, http.MethodGet, tt.path); rec.Code != tt.want {
			t.Errorf("GET %s status = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestCommit(t *testing.T) {
	e, svc := newTestFrontend(t)
	id := addPhoto(t, svc, "commit")
	before, err := svc.GetPhoto(context.Background(), id)
	if err != nil {
		t.Fatalf("GetPhoto error: %v", err)
	}

	rec := serve(e, http.MethodPost, "/htmx/filters/"+id+"/commit/7")
	if rec.Code != http.StatusOK {
		t.Fatalf("commit status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("HX-Redirect"); got != "/"+MainPageName {
		t.Errorf("HX-Redirect = %q", got)
	}

	after, err := svc.GetPhoto(context.Background(), id)
	if err != nil {
		t.Fatalf("GetPhoto error: %v", err)
	}
	if bytes.Equal(before.Image, after.Image) {
		t.Error("commit did not replace the image")
	}

	if rec := serve(e, http.MethodPost, "/htmx/filters/"+id+"/commit/42"); rec.Code != http.StatusBadRequest {
		t.Errorf("out of range commit status = %d, want 400", rec.Code)
	}
}
