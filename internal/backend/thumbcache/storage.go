package thumbcache

import (
	"context"
	"errors"
	"strconv"
)

// ErrCacheWrite marks a failed cache write. It is never fatal to a Get.
var ErrCacheWrite = errors.New("failed to write cache entry")

// Key addresses one cached thumbnail: a filter index inside a session namespace.
type Key struct {
	Namespace string
	Index     int
}

// Name is the decimal file name of the entry.
func (k Key) Name() string {
	return strconv.Itoa(k.Index)
}

// Storage persists rendered thumbnails.
type Storage interface {
	// Read returns the stored bytes and true on a hit, or false on a miss.
	Read(ctx context.Context, key Key) ([]byte, bool, error)
	// Write stores data under key, replacing any previous value atomically.
	Write(ctx context.Context, key Key, data []byte) error
	// Clear removes every entry of the namespace.
	Clear(ctx context.Context, namespace string) error
	Close() error
}
