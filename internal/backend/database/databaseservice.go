package database

import (
	"context"
	"errors"
)

var (
	// ErrPersistence wraps any failure of the underlying storage while saving.
	ErrPersistence = errors.New("persistence error")
	// ErrNotFound is returned for ids that are neither stored nor staged.
	ErrNotFound = errors.New("record not found")
)

// PhotoRecord is one saved photo. Image and Thumbnail are JPEG bytes and
// always change together.
type PhotoRecord struct {
	ID        string
	Image     []byte
	Thumbnail []byte
	Caption   string
}

// RecordStore is the photo record collaborator. Insert, Update and Delete
// stage changes that become durable on Save.
type RecordStore interface {
	CreateDatabase() error
	DoesDatabaseExist() bool
	Close() error

	// FetchAll returns records in insertion order, staged changes included.
	FetchAll(ctx context.Context) ([]*PhotoRecord, error)
	Get(ctx context.Context, id string) (*PhotoRecord, error)
	Insert(ctx context.Context, image, thumbnail []byte, caption string) (*PhotoRecord, error)
	// Update replaces image and thumbnail of record in place.
	Update(ctx context.Context, record *PhotoRecord, image, thumbnail []byte) error
	Delete(ctx context.Context, id string) error
	// Save persists all staged changes in one transaction. On failure the
	// changes stay staged so Save can be retried.
	Save(ctx context.Context) error
	Pending() int
}
