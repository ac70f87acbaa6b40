package thumbcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jo-hoe/gofilter/internal/backend/filters"
	"github.com/jo-hoe/gofilter/internal/backend/imaging"
)

// countingRenderer wraps a renderer and counts calls.
type countingRenderer struct {
	next  Renderer
	calls atomic.Int64
	gate  chan struct{}
}

func (r *countingRenderer) Render(src []byte, def filters.Definition, q imaging.Quality) ([]byte, error) {
	r.calls.Add(1)
	if r.gate != nil {
		<-r.gate
	}
	return r.next.Render(src, def, q)
}

// failingWriteStorage wraps a storage and fails every write.
type failingWriteStorage struct {
	Storage
}

func (s failingWriteStorage) Write(context.Context, Key, []byte) error {
	return fmt.Errorf("%w: disk full", ErrCacheWrite)
}

func createTestImage(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 7), uint8(y * 5), 90, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		panic(fmt.Sprintf("failed to encode test image: %v", err))
	}
	return buf.Bytes()
}

func newTestCache(t *testing.T, storage Storage) (*Cache, *countingRenderer) {
	t.Helper()
	renderer := &countingRenderer{next: imaging.NewEngine()}
	return New(storage, renderer, filters.DefaultCatalog(), imaging.ThumbnailQuality(32, 10)), renderer
}

func newFileStorage(t *testing.T) *FileStorage {
	t.Helper()
	storage, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage error: %v", err)
	}
	return storage
}

func TestSessionGet_MissThenHit(t *testing.T) {
	storage := newFileStorage(t)
	cache, renderer := newTestCache(t, storage)
	session := cache.Session("record-1", createTestImage(40, 30))
	ctx := context.Background()

	path, err := storage.Path(Key{Namespace: session.Namespace(), Index: 3})
	if err != nil {
		t.Fatalf("Path error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no cache file before first Get, stat error = %v", err)
	}

	first, err := session.Get(ctx, 3)
	if err != nil {
		t.Fatalf("first Get error: %v", err)
	}
	if len(first) == 0 {
		t.Fatal("first Get returned empty image")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected cache file after first Get: %v", err)
	}

	second, err := session.Get(ctx, 3)
	if err != nil {
		t.Fatalf("second Get error: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("second Get returned different bytes")
	}
	if got := renderer.calls.Load(); got != 1 {
		t.Errorf("render calls = %d, want 1", got)
	}
}

func TestSessionGet_EveryIndexMemoized(t *testing.T) {
	cache, renderer := newTestCache(t, newFileStorage(t))
	session := cache.Session("record-1", createTestImage(24, 24))
	ctx := context.Background()

	count := filters.DefaultCatalog().Count()
	for round := 0; round < 2; round++ {
		for i := 0; i < count; i++ {
			if _, err := session.Get(ctx, i); err != nil {
				t.Fatalf("Get(%d) error: %v", i, err)
			}
		}
	}
	if got := renderer.calls.Load(); got != int64(count) {
		t.Errorf("render calls = %d, want %d", got, count)
	}
}

func TestSessionGet_WriteFailureIsNotFatal(t *testing.T) {
	cache, renderer := newTestCache(t, failingWriteStorage{Storage: newFileStorage(t)})
	session := cache.Session("record-1", createTestImage(16, 16))
	ctx := context.Background()

	first, err := session.Get(ctx, 0)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(first) == 0 {
		t.Fatal("Get returned empty image despite successful render")
	}

	second, err := session.Get(ctx, 0)
	if err != nil {
		t.Fatalf("second Get error: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("re-render after cold cache produced different bytes")
	}
	if got := renderer.calls.Load(); got != 2 {
		t.Errorf("render calls = %d, want 2 (cache stays cold)", got)
	}
}

func TestSessionGet_OutOfRange(t *testing.T) {
	cache, renderer := newTestCache(t, newFileStorage(t))
	session := cache.Session("record-1", createTestImage(8, 8))

	for _, index := range []int{-1, filters.DefaultCatalog().Count()} {
		if _, err := session.Get(context.Background(), index); !errors.Is(err, filters.ErrOutOfRange) {
			t.Errorf("Get(%d) error = %v, want ErrOutOfRange", index, err)
		}
	}
	if got := renderer.calls.Load(); got != 0 {
		t.Errorf("render calls = %d, want 0", got)
	}
}

func TestSessionGet_CorruptSourceIsDecodeError(t *testing.T) {
	cache, _ := newTestCache(t, newFileStorage(t))
	session := cache.Session("record-1", []byte("not an image"))

	_, err := session.Get(context.Background(), 0)
	if !errors.Is(err, imaging.ErrDecode) {
		t.Fatalf("Get error = %v, want ErrDecode", err)
	}
}

func TestSessionGet_ConcurrentMissesShareOneRender(t *testing.T) {
	storage := newFileStorage(t)
	renderer := &countingRenderer{next: imaging.NewEngine(), gate: make(chan struct{})}
	cache := New(storage, renderer, filters.DefaultCatalog(), imaging.ThumbnailQuality(16, 10))
	session := cache.Session("record-1", createTestImage(16, 16))

	const callers = 5
	results := make([][]byte, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data, err := session.Get(context.Background(), 4)
			if err != nil {
				t.Errorf("Get error: %v", err)
				return
			}
			results[i] = data
		}(i)
	}

	// Wait until the first render is blocked on the gate, then give the
	// others time to join before releasing it.
	deadline := time.Now().Add(5 * time.Second)
	for renderer.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(renderer.gate)
	wg.Wait()

	// Late callers may find the stored entry instead of joining, but no
	// caller renders a second time while the first is in flight.
	if got := renderer.calls.Load(); got != 1 {
		t.Errorf("render calls = %d, want 1", got)
	}
	for i := 1; i < callers; i++ {
		if !bytes.Equal(results[0], results[i]) {
			t.Errorf("caller %d received different bytes", i)
		}
	}
}

func TestSession_NamespacesAreScopedByRecordAndSource(t *testing.T) {
	cache, renderer := newTestCache(t, newFileStorage(t))
	ctx := context.Background()

	a := cache.Session("record-a", createTestImage(20, 20))
	b := cache.Session("record-b", createTestImage(30, 10))
	if a.Namespace() == b.Namespace() {
		t.Fatal("different records share a namespace")
	}

	fromA, err := a.Get(ctx, 2)
	if err != nil {
		t.Fatalf("a.Get error: %v", err)
	}
	fromB, err := b.Get(ctx, 2)
	if err != nil {
		t.Fatalf("b.Get error: %v", err)
	}
	if bytes.Equal(fromA, fromB) {
		t.Error("record b received record a's cached thumbnail")
	}
	if got := renderer.calls.Load(); got != 2 {
		t.Errorf("render calls = %d, want 2", got)
	}

	changed := cache.Session("record-a", createTestImage(21, 20))
	if changed.Namespace() == a.Namespace() {
		t.Error("changed source reused the old namespace")
	}
	if again := cache.Session("record-a", createTestImage(20, 20)); again.Namespace() != a.Namespace() {
		t.Error("identical source produced a different namespace")
	}
}

func TestCache_Clear(t *testing.T) {
	storage := newFileStorage(t)
	cache, renderer := newTestCache(t, storage)
	session := cache.Session("record-1", createTestImage(12, 12))
	ctx := context.Background()

	if _, err := session.Get(ctx, 1); err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if err := cache.Clear(ctx, session.Namespace()); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if _, err := session.Get(ctx, 1); err != nil {
		t.Fatalf("Get after Clear error: %v", err)
	}
	if got := renderer.calls.Load(); got != 2 {
		t.Errorf("render calls = %d, want 2", got)
	}
}

// blockingWriteStorage holds writes until release is closed.
type blockingWriteStorage struct {
	Storage
	started chan struct{}
	release chan struct{}
}

func (s *blockingWriteStorage) Write(ctx context.Context, key Key, data []byte) error {
	select {
	case s.started <- struct{}{}:
	default:
	}
	<-s.release
	return s.Storage.Write(ctx, key, data)
}

func TestCache_RetireWaitsForWritesAndDropsLaterOnes(t *testing.T) {
	files := newFileStorage(t)
	storage := &blockingWriteStorage{Storage: files, started: make(chan struct{}, 1), release: make(chan struct{})}
	cache, _ := newTestCache(t, storage)
	session := cache.Session("record-1", createTestImage(12, 12))
	ctx := context.Background()

	got := make(chan error, 1)
	go func() {
		_, err := session.Get(ctx, 0)
		got <- err
	}()
	<-storage.started

	retired := make(chan error, 1)
	go func() { retired <- cache.Retire(ctx, session.Namespace()) }()
	select {
	case err := <-retired:
		t.Fatalf("Retire returned during a write: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(storage.release)

	if err := <-got; err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if err := <-retired; err != nil {
		t.Fatalf("Retire error: %v", err)
	}

	data, err := session.Get(ctx, 1)
	if err != nil || len(data) == 0 {
		t.Fatalf("Get after Retire = %d bytes, error %v", len(data), err)
	}
	for _, index := range []int{0, 1} {
		if _, hit, err := files.Read(ctx, Key{Namespace: session.Namespace(), Index: index}); err != nil || hit {
			t.Errorf("index %d stored after Retire (hit %v, error %v)", index, hit, err)
		}
	}
}
