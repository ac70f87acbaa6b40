package thumbcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FileStorage keeps one file per entry under <dir>/<namespace>/<index>.
type FileStorage struct {
	dir     string
	ownsDir bool
}

// NewFileStorage creates a storage rooted at dir. An empty dir creates a
// process-scoped temporary directory that Close removes again.
func NewFileStorage(dir string) (*FileStorage, error) {
	if dir == "" {
		tmp, err := os.MkdirTemp("", "gofilter-cache-")
		if err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
		slog.Info("thumbnail cache uses temporary directory", "dir", tmp)
		return &FileStorage{dir: tmp, ownsDir: true}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

// Dir returns the root directory.
func (s *FileStorage) Dir() string {
	return s.dir
}

// Path returns the deterministic file path of key.
func (s *FileStorage) Path(key Key) (string, error) {
	if err := validNamespace(key.Namespace); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, key.Namespace, key.Name()), nil
}

func (s *FileStorage) Read(_ context.Context, key Key) ([]byte, bool, error) {
	path, err := s.Path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading cache entry %s: %w", path, err)
	}
	return data, true, nil
}

// Write stores data through a temporary file and a rename, so readers see
// either the old entry or the complete new one.
func (s *FileStorage) Write(_ context.Context, key Key, data []byte) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheWrite, err)
	}

	tmp, err := os.CreateTemp(dir, "."+key.Name()+"-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheWrite, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %v", ErrCacheWrite, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrCacheWrite, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrCacheWrite, err)
	}
	return nil
}

func (s *FileStorage) Clear(_ context.Context, namespace string) error {
	if err := validNamespace(namespace); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.dir, namespace)); err != nil {
		return fmt.Errorf("clearing cache namespace %s: %w", namespace, err)
	}
	return nil
}

// Close removes the directory when the storage created it.
func (s *FileStorage) Close() error {
	if !s.ownsDir {
		return nil
	}
	return os.RemoveAll(s.dir)
}

func validNamespace(namespace string) error {
	if namespace == "" || namespace == "." || namespace == ".." ||
		strings.ContainsAny(namespace, `/\`) {
		return fmt.Errorf("invalid cache namespace %q", namespace)
	}
	return nil
}
