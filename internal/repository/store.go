// Package repository persists pitch sessions in the "pitches" collection.
package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"pitchcraft/internal/domain"
)

var (
	// ErrNotFound is returned when a session id does not exist.
	ErrNotFound = errors.New("repository: pitch not found")
	// ErrVersionConflict is returned by Update when the stored version no
	// longer matches the version the caller read.
	ErrVersionConflict = errors.New("repository: pitch was modified concurrently")
)

// Store is the session persistence contract shared by every driver.
type Store interface {
	// Create stores a new session at domain.InitialVersion and returns its id.
	Create(ctx context.Context, ownerID string, turns []domain.Turn, tone domain.Tone) (string, error)
	// Update overwrites turns and tone when the stored version equals version
	// and returns the incremented version.
	Update(ctx context.Context, id string, version int64, turns []domain.Turn, tone domain.Tone) (int64, error)
	Get(ctx context.Context, id string) (domain.Session, error)
	// ListByOwner returns the owner's sessions, newest createdAt first.
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Session, error)
	// Delete is idempotent: deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
	Rename(ctx context.Context, id, displayName string) error
}

// Option configures the clock and id source shared by the drivers.
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		o.newID = newID
	}
}

func sortNewestFirst(sessions []domain.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
}
