package manifest

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/goliatone/go-blog/internal/identity"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	repositorycache "github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/uptrace/bun"
)

// BunStore implements Store on top of go-repository-bun with optional caching.
type BunStore struct {
	repo repository.Repository[*Entry]
	now  func() time.Time
}

// NewBunStore creates a manifest store without caching.
func NewBunStore(db *bun.DB) *BunStore {
	return NewBunStoreWithCache(db, nil, nil)
}

// NewBunStoreWithCache creates a manifest store whose reads go through cacheService.
func NewBunStoreWithCache(db *bun.DB, cacheService cache.CacheService, serializer cache.KeySerializer) *BunStore {
	base := NewEntryRepository(db)
	if cacheService != nil && serializer != nil {
		base = repositorycache.New(base, cacheService, serializer)
	}
	return &BunStore{repo: base, now: time.Now}
}

// EnsureSchema creates the manifest table when missing.
func EnsureSchema(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*Entry)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return fmt.Errorf("manifest: create table: %w", err)
	}
	return nil
}

func (s *BunStore) Get(ctx context.Context, p string) (*Entry, error) {
	key := normalizePath(p)
	record, err := s.repo.GetByID(ctx, identity.ArtifactUUID(key).String())
	if err != nil {
		return nil, mapRepositoryError(err, key)
	}
	return record, nil
}

// Put creates or updates the entry for entry.Path.
func (s *BunStore) Put(ctx context.Context, entry *Entry) (*Entry, error) {
	if entry == nil {
		return nil, fmt.Errorf("manifest: nil entry")
	}
	record := *entry
	record.Path = normalizePath(entry.Path)
	record.ID = identity.ArtifactUUID(record.Path)
	record.UpdatedAt = s.now().UTC()
	if record.BuiltAt.IsZero() {
		record.BuiltAt = record.UpdatedAt
	}

	if _, err := s.Get(ctx, record.Path); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		created, err := s.repo.Create(ctx, &record)
		if err != nil {
			return nil, fmt.Errorf("manifest: create %s: %w", record.Path, err)
		}
		return created, nil
	}

	updated, err := s.repo.Update(ctx, &record,
		repository.UpdateByID(record.ID.String()),
		repository.UpdateColumns(
			"post_id",
			"checksum",
			"size",
			"built_at",
			"updated_at",
		),
	)
	if err != nil {
		return nil, fmt.Errorf("manifest: update %s: %w", record.Path, err)
	}
	return updated, nil
}

func (s *BunStore) List(ctx context.Context) ([]*Entry, error) {
	records, _, err := s.repo.List(ctx, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Order("path ASC")
	}))
	if err != nil {
		return nil, fmt.Errorf("manifest: list: %w", err)
	}
	return records, nil
}

func (s *BunStore) Delete(ctx context.Context, p string) error {
	key := normalizePath(p)
	if err := s.repo.Delete(ctx, &Entry{ID: identity.ArtifactUUID(key), Path: key}); err != nil {
		return mapRepositoryError(err, key)
	}
	return nil
}

func mapRepositoryError(err error, key string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("manifest entry %s: %w", key, err)
}

func normalizePath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}
