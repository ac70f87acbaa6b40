package capture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/jo-hoe/gofilter/internal/backend/imaging"
)

func createTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestPickResult_Validate(t *testing.T) {
	tests := []struct {
		name        string
		result      PickResult
		wantMissing bool
		wantErr     bool
	}{
		{"valid", PickResult{OriginalImage: []byte{1}, MediaType: "image/png"}, false, false},
		{"nil image", PickResult{MediaType: "image/png"}, true, true},
		{"empty image", PickResult{OriginalImage: []byte{}, MediaType: "image/png"}, true, true},
		{"no media type", PickResult{OriginalImage: []byte{1}}, true, true},
		{"not an image", PickResult{OriginalImage: []byte{1}, MediaType: "video/mp4"}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, ErrMissingField); got != tt.wantMissing {
				t.Errorf("errors.Is(ErrMissingField) = %v, want %v (err %v)", got, tt.wantMissing, err)
			}
			if tt.wantErr && !tt.wantMissing && !errors.Is(err, ErrUnsupportedMediaType) {
				t.Errorf("error = %v, want ErrUnsupportedMediaType", err)
			}
		})
	}
}

func TestPrepare(t *testing.T) {
	result := PickResult{OriginalImage: createTestPNG(t, 120, 60), MediaType: "image/png"}

	prepared, err := Prepare(result, imaging.FullQuality(), imaging.ThumbnailQuality(30, 10))
	if err != nil {
		t.Fatalf("Prepare error: %v", err)
	}

	full, err := jpeg.Decode(bytes.NewReader(prepared.Image))
	if err != nil {
		t.Fatalf("full image is not a jpeg: %v", err)
	}
	if b := full.Bounds(); b.Dx() != 120 || b.Dy() != 60 {
		t.Errorf("full image size = %dx%d, want 120x60", b.Dx(), b.Dy())
	}

	thumb, err := jpeg.Decode(bytes.NewReader(prepared.Thumbnail))
	if err != nil {
		t.Fatalf("thumbnail is not a jpeg: %v", err)
	}
	if b := thumb.Bounds(); b.Dx() != 30 || b.Dy() != 15 {
		t.Errorf("thumbnail size = %dx%d, want 30x15", b.Dx(), b.Dy())
	}
	if len(prepared.Thumbnail) >= len(prepared.Image) {
		t.Errorf("thumbnail (%d bytes) not smaller than full image (%d bytes)", len(prepared.Thumbnail), len(prepared.Image))
	}
}

func TestPrepare_Errors(t *testing.T) {
	if _, err := Prepare(PickResult{MediaType: "image/png"}, imaging.FullQuality(), imaging.ThumbnailQuality(30, 10)); !errors.Is(err, ErrMissingField) {
		t.Errorf("Prepare without image error = %v, want ErrMissingField", err)
	}

	garbage := PickResult{OriginalImage: []byte("nope"), MediaType: "image/jpeg"}
	if _, err := Prepare(garbage, imaging.FullQuality(), imaging.ThumbnailQuality(30, 10)); !errors.Is(err, imaging.ErrDecode) {
		t.Errorf("Prepare with garbage error = %v, want ErrDecode", err)
	}
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(path, createTestPNG(t, 4, 4), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	result, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile error: %v", err)
	}
	if result.MediaType != "image/png" {
		t.Errorf("MediaType = %q, want image/png", result.MediaType)
	}
	if err := result.Validate(); err != nil {
		t.Errorf("Validate error: %v", err)
	}

	if _, err := FromFile(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}
