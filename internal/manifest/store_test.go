package manifest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-blog/internal/identity"
	"github.com/goliatone/go-blog/pkg/testsupport"
	repocache "github.com/goliatone/go-repository-cache/cache"
)

func newBunStore(t *testing.T, cached bool) *BunStore {
	t.Helper()
	ctx := context.Background()
	db := testsupport.NewBunDB(t)
	if err := EnsureSchema(ctx, db); err != nil {
		t.Fatalf("schema: %v", err)
	}
	if !cached {
		return NewBunStore(db)
	}
	cfg := repocache.DefaultConfig()
	cfg.TTL = time.Minute
	svc, err := repocache.NewCacheService(cfg)
	if err != nil {
		t.Fatalf("cache service: %v", err)
	}
	return NewBunStoreWithCache(db, svc, repocache.NewDefaultKeySerializer())
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Get(ctx, "posts/a/index.html"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	postID := identity.PostUUID("a.md", 0)
	created, err := store.Put(ctx, &Entry{Path: "/posts/a/index.html", PostID: postID, Checksum: "v1", Size: 10})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if created.Path != "posts/a/index.html" || created.ID != identity.ArtifactUUID("posts/a/index.html") {
		t.Fatalf("unexpected entry %+v", created)
	}

	unchanged, err := Unchanged(ctx, store, "posts/a/index.html", "v1")
	if err != nil || !unchanged {
		t.Fatalf("expected unchanged, got %v %v", unchanged, err)
	}

	if _, err := store.Put(ctx, &Entry{Path: "posts/a/index.html", PostID: postID, Checksum: "v2", Size: 12}); err != nil {
		t.Fatalf("update: %v", err)
	}
	entry, err := store.Get(ctx, "posts/a/index.html")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry.Checksum != "v2" || entry.Size != 12 {
		t.Fatalf("expected updated entry, got %+v", entry)
	}

	if _, err := store.Put(ctx, &Entry{Path: "index.html", Checksum: "i1"}); err != nil {
		t.Fatalf("put index: %v", err)
	}
	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].Path != "index.html" {
		t.Fatalf("unexpected entries %+v", entries)
	}

	if err := store.Delete(ctx, "index.html"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "index.html"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted entry, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestBunStore(t *testing.T) {
	exerciseStore(t, newBunStore(t, false))
}

func TestBunStoreWithCache(t *testing.T) {
	store := newBunStore(t, true)
	ctx := context.Background()
	if _, err := store.Put(ctx, &Entry{Path: "feed.xml", Checksum: "f1"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	first, err := store.Get(ctx, "feed.xml")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	second, err := store.Get(ctx, "feed.xml")
	if err != nil {
		t.Fatalf("get cached: %v", err)
	}
	if first.Checksum != "f1" || second.Checksum != "f1" {
		t.Fatalf("unexpected checksums %q %q", first.Checksum, second.Checksum)
	}
}

func TestUnchangedWithoutStore(t *testing.T) {
	unchanged, err := Unchanged(context.Background(), nil, "x", "y")
	if err != nil || unchanged {
		t.Fatalf("expected false, nil; got %v, %v", unchanged, err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "oracle", "dsn"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenSQLite(t *testing.T) {
	db, err := Open(context.Background(), "sqlite", "file:manifest_open?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	store := NewBunStore(db)
	if _, err := store.Put(context.Background(), &Entry{Path: "robots.txt", Checksum: "r"}); err != nil {
		t.Fatalf("put: %v", err)
	}
}
