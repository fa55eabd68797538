// Package cache stores generated workout plans so identical profiles do not
// hit the model again while an entry is fresh.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Entry represents a cached entry with metadata
type Entry struct {
	FetchedAt time.Time       `json:"fetched_at"`
	ExpiresAt time.Time       `json:"expires_at,omitempty"`
	Body      json.RawMessage `json:"body"`
}

// Expired reports whether the entry is past its expiry at now.
// Entries without an expiry never expire.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Reader defines the interface for reading cache entries
type Reader interface {
	// Read returns the entry and true if found and not expired
	Read(ctx context.Context, key string) (*Entry, bool)
}

// Writer defines the interface for writing cache entries
type Writer interface {
	// Write stores an entry under key; ttl <= 0 means no expiry
	Write(ctx context.Context, key string, entry *Entry, ttl time.Duration) error
}

// Cache combines both cache operations
type Cache interface {
	Reader
	Writer
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Read(context.Context, string) (*Entry, bool) { return nil, false }

func (Noop) Write(context.Context, string, *Entry, time.Duration) error { return nil }
