package storage

import (
	"errors"
)

var (
	// ErrNotFound is returned by every backend for a missing entry, never the backend's own
	// not-found error (badger.ErrKeyNotFound, pgx.ErrNoRows, ResourceNotFoundException).
	ErrNotFound = errors.New("key not found")

	// ErrAlreadyExists is returned when inserting under an occupied key.
	ErrAlreadyExists = errors.New("key already exists")

	// ErrDataMismatch is returned when write-once data is re-inserted with a different value.
	ErrDataMismatch = errors.New("data for key is different")
)
