// Package staging holds the transient artifacts of a find-common request:
// the uploaded originals and their formatted copies. Nothing here outlives
// a request except what a crashed process leaves behind for the Sweeper.
package staging

import (
	"context"
	"errors"
	"time"
)

// Area separates uploaded originals from formatted copies.
type Area string

const (
	AreaUploads   Area = "uploads"
	AreaFormatted Area = "formatted"
)

// Areas lists every staging area.
var Areas = []Area{AreaUploads, AreaFormatted}

// ErrInvalidName is returned for artifact names that would escape their area.
var ErrInvalidName = errors.New("invalid artifact name")

// Store is the port the finder uses to stage artifacts.
type Store interface {
	// Put writes an artifact, replacing any existing one with the same name.
	Put(ctx context.Context, area Area, name string, data []byte) error
	// Delete removes an artifact. Deleting a missing artifact is not an error.
	Delete(ctx context.Context, area Area, name string) error
	// Sweep removes artifacts last modified before olderThan and reports how
	// many were removed.
	Sweep(ctx context.Context, olderThan time.Time) (int, error)
	// Check reports whether the backend is usable.
	Check(ctx context.Context) error
	// Describe returns backend details for the health endpoint.
	Describe() map[string]string
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidName
	}
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '/', '\\', 0:
			return ErrInvalidName
		}
	}
	return nil
}
