// Package manifest records what a site build wrote so later builds can skip
// outputs whose inputs did not change.
package manifest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ErrNotFound is returned when no entry exists for a path.
var ErrNotFound = errors.New("manifest: entry not found")

// Entry describes one generated file.
type Entry struct {
	bun.BaseModel `bun:"table:blog_manifest_entries,alias:bme"`

	ID uuid.UUID `bun:",pk,type:uuid" json:"id"`
	// Path is the output path relative to the site root, slash separated.
	Path string `bun:"path,notnull,unique" json:"path"`
	// PostID is set for post pages.
	PostID uuid.UUID `bun:"post_id,type:uuid,nullzero" json:"post_id,omitzero"`
	// Checksum covers every input that shaped the output (post content,
	// template set, site metadata).
	Checksum  string    `bun:"checksum,notnull" json:"checksum"`
	Size      int64     `bun:"size,notnull,default:0" json:"size"`
	BuiltAt   time.Time `bun:"built_at,notnull" json:"built_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// Store persists manifest entries.
type Store interface {
	Get(ctx context.Context, path string) (*Entry, error)
	Put(ctx context.Context, entry *Entry) (*Entry, error)
	List(ctx context.Context) ([]*Entry, error)
	Delete(ctx context.Context, path string) error
}

// Unchanged reports whether store already holds path built from checksum.
func Unchanged(ctx context.Context, store Store, path, checksum string) (bool, error) {
	if store == nil {
		return false, nil
	}
	entry, err := store.Get(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return entry.Checksum == checksum, nil
}
