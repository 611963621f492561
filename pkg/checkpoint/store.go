// Package checkpoint provides durable memoization of stage results, keyed by
// (project, stage), so an interrupted pipeline run can resume instead of
// re-executing completed work.
package checkpoint

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound indicates no checkpoint exists for the requested key. Callers
// use it to distinguish "never run" from "ran and produced an empty result".
var ErrNotFound = errors.New("checkpoint not found")

// Record is the persisted form of one checkpoint. A record is either absent
// or the single canonical successful result for its key; it is overwritten
// wholesale, never partially updated.
type Record struct {
	Stage     string          `json:"stage"`
	Project   string          `json:"project"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Info is checkpoint metadata without the payload.
type Info struct {
	Location  string
	Stage     string
	Project   string
	Timestamp time.Time
}

// Store persists stage results. Save always overwrites (last write wins).
type Store interface {
	// Save marshals data and stores it under (project, stage), returning the
	// record's location.
	Save(project, stage string, data any) (string, error)

	// Load returns the stored payload, or ErrNotFound.
	Load(project, stage string) (json.RawMessage, error)

	// Exists reports whether a checkpoint is stored for (project, stage).
	Exists(project, stage string) (bool, error)

	// List returns metadata for stored checkpoints, all projects when project
	// is empty. Corrupt records are skipped, not fatal.
	List(project string) ([]Info, error)

	// Delete removes one checkpoint, reporting whether it existed.
	Delete(project, stage string) (bool, error)

	// Clear removes all checkpoints, or only those of one project when
	// project is non-empty.
	Clear(project string) error

	// Close releases any underlying resources.
	Close() error
}
