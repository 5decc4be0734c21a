// ABOUTME: Key/value store types shared by the SQLite and in-memory backends
// ABOUTME: Defines the Setting record and the ErrNotFound sentinel

package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested key does not exist
var ErrNotFound = errors.New("not found")

// Setting is one persisted key/value pair
type Setting struct {
	Key       string
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
