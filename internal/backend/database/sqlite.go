package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type changeKind int

const (
	changeInsert changeKind = iota
	changeUpdate
	changeDelete
)

// change is one staged mutation; record carries only the fields it touches.
type change struct {
	kind   changeKind
	record PhotoRecord
}

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string

	mu     sync.Mutex
	staged []change
}

func NewSQLiteDatabase(connectionString string) (*SQLiteDatabase, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS photos (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		image BLOB NOT NULL,
		thumbnail BLOB NOT NULL,
		caption TEXT NOT NULL DEFAULT ''
	)`)
	return err
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// The file is created on connect, so a successful ping is enough.
	err := s.db.Ping()
	return err == nil
}

func (s *SQLiteDatabase) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staged)
}

func (s *SQLiteDatabase) FetchAll(ctx context.Context) ([]*PhotoRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.query(ctx, "SELECT id, image, thumbnail, caption FROM photos ORDER BY seq")
	if err != nil {
		return nil, err
	}
	return overlay(records, s.staged), nil
}

func (s *SQLiteDatabase) Get(ctx context.Context, id string) (*PhotoRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx, id)
}

func (s *SQLiteDatabase) get(ctx context.Context, id string) (*PhotoRecord, error) {
	records, err := s.query(ctx, "SELECT id, image, thumbnail, caption FROM photos WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	for _, record := range overlay(records, s.staged) {
		if record.ID == id {
			return record, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *SQLiteDatabase) Insert(ctx context.Context, image, thumbnail []byte, caption string) (*PhotoRecord, error) {
	if len(image) == 0 || len(thumbnail) == 0 {
		return nil, errors.New("image and thumbnail must not be empty")
	}
	record := &PhotoRecord{
		ID:        uuid.NewString(),
		Image:     image,
		Thumbnail: thumbnail,
		Caption:   caption,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = append(s.staged, change{kind: changeInsert, record: *record})
	return record, nil
}

func (s *SQLiteDatabase) Update(ctx context.Context, record *PhotoRecord, image, thumbnail []byte) error {
	if record == nil {
		return errors.New("record must not be nil")
	}
	if len(image) == 0 || len(thumbnail) == 0 {
		return errors.New("image and thumbnail must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.get(ctx, record.ID); err != nil {
		return err
	}
	record.Image = image
	record.Thumbnail = thumbnail
	s.staged = append(s.staged, change{
		kind:   changeUpdate,
		record: PhotoRecord{ID: record.ID, Image: image, Thumbnail: thumbnail},
	})
	return nil
}

func (s *SQLiteDatabase) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	s.staged = append(s.staged, change{kind: changeDelete, record: PhotoRecord{ID: id}})
	return nil
}

func (s *SQLiteDatabase) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.staged) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", ErrPersistence, err)
	}
	for _, ch := range s.staged {
		if err := applyChange(ctx, tx, ch); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrPersistence, err)
	}

	slog.Debug("saved staged changes", "count", len(s.staged))
	s.staged = nil
	return nil
}

func applyChange(ctx context.Context, tx *sql.Tx, ch change) error {
	r := ch.record
	switch ch.kind {
	case changeInsert:
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO photos (id, image, thumbnail, caption) VALUES (?, ?, ?, ?)",
			r.ID, r.Image, r.Thumbnail, r.Caption); err != nil {
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	case changeUpdate:
		res, err := tx.ExecContext(ctx,
			"UPDATE photos SET image = ?, thumbnail = ? WHERE id = ?",
			r.Image, r.Thumbnail, r.ID)
		if err != nil {
			return fmt.Errorf("update %s: %w", r.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("update %s: %w", r.ID, ErrNotFound)
		}
	case changeDelete:
		if _, err := tx.ExecContext(ctx, "DELETE FROM photos WHERE id = ?", r.ID); err != nil {
			return fmt.Errorf("delete %s: %w", r.ID, err)
		}
	}
	return nil
}

func (s *SQLiteDatabase) query(ctx context.Context, query string, args ...any) ([]*PhotoRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	var records []*PhotoRecord
	for rows.Next() {
		var r PhotoRecord
		if err := rows.Scan(&r.ID, &r.Image, &r.Thumbnail, &r.Caption); err != nil {
			return nil, err
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// overlay applies staged changes, in order, on top of stored records.
func overlay(records []*PhotoRecord, staged []change) []*PhotoRecord {
	for _, ch := range staged {
		switch ch.kind {
		case changeInsert:
			r := ch.record
			records = append(records, &r)
		case changeUpdate:
			for _, r := range records {
				if r.ID == ch.record.ID {
					r.Image = ch.record.Image
					r.Thumbnail = ch.record.Thumbnail
				}
			}
		case changeDelete:
			records = slices.DeleteFunc(records, func(r *PhotoRecord) bool {
				return r.ID == ch.record.ID
			})
		}
	}
	return records
}
