package database

import (
	"fmt"
	"log/slog"
)

func NewDatabase(databaseType, connectionString string) (store RecordStore, err error) {
	switch databaseType {
	case "sqlite":
		store, err = NewSQLiteDatabase(connectionString)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", databaseType)
	}

	// Idempotent; an in-memory database starts without tables.
	slog.Info("initializing database schema", "type", databaseType)
	if err = store.CreateDatabase(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return store, nil
}
