// Package store provides local key/value persistence for the client.
//
// # Overview
//
// The client keeps a handful of user settings (API keys, streaming and pro
// mode flags, default focus categories) between runs. Values are opaque
// strings; package settings decides their encoding.
//
// Two backends share the same method set:
//
//   - SQLiteStore: durable storage in a SQLite file (modernc.org/sqlite, no cgo)
//   - MemoryStore: process-local map for tests and ephemeral sessions
//
// # SQLite Configuration
//
// The database runs in WAL mode and creates its schema on open:
//
//	CREATE TABLE settings (key TEXT PRIMARY KEY, value TEXT, created_at TEXT, updated_at TEXT)
//
// Default location: $XDG_DATA_HOME/moplexity/client.db
//
// # Error Handling
//
// Get and Delete return ErrNotFound for missing keys; callers check it with
// errors.Is.
package store
