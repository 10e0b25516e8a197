package commands_test

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"

	"github.com/goliatone/go-blog/internal/commands"
	postscmd "github.com/goliatone/go-blog/internal/commands/posts"
	"github.com/goliatone/go-blog/internal/posts"
	"github.com/goliatone/go-blog/internal/render"
)

// flakyFS fails the first open of each listed file.
type flakyFS struct {
	files fstest.MapFS
	fail  map[string]int
}

func (f *flakyFS) Open(name string) (fs.File, error) {
	if f.fail[name] > 0 {
		f.fail[name]--
		return nil, &fs.PathError{Op: "open", Path: name, Err: errors.New("device busy")}
	}
	return f.files.Open(name)
}

func blogContent() fstest.MapFS {
	return fstest.MapFS{
		"content/a.md": {Data: []byte("# Value objects\n> Originally published March 20th 2021\n\nPrefer them.\n")},
		"content/b.md": {Data: []byte("# Chainable scopes\n\n```php\n$q->active();\n```\n")},
	}
}

func TestDispatchedLoadRetriesWithoutDuplicatingPosts(t *testing.T) {
	store := posts.NewStore()
	content := &flakyFS{files: blogContent(), fail: map[string]int{"content/b.md": 1}}

	var outcomes []commands.TelemetryInfo
	handler := postscmd.NewLoadPostsHandler(store, content, posts.LoaderConfig{}, nil, nil,
		commands.WithTelemetry(func(_ context.Context, _ postscmd.LoadPostsCommand, info commands.TelemetryInfo) {
			outcomes = append(outcomes, info)
		}),
	)

	sub := dispatcher.SubscribeCommand(handler, runner.WithMaxRetries(1))
	t.Cleanup(sub.Unsubscribe)

	if err := dispatcher.Dispatch(context.Background(), postscmd.LoadPostsCommand{Directory: "content"}); err != nil {
		t.Fatalf("dispatch: expected success after retry, got %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(outcomes))
	}

	first, second := outcomes[0], outcomes[1]
	if first.Status != commands.TelemetryStatusFailed || first.Outcome.Posts != 1 || first.Outcome.Failed != 1 {
		t.Fatalf("unexpected first attempt: %+v", first)
	}
	if second.Status != commands.TelemetryStatusSuccess || second.Outcome.Posts != 2 || second.Outcome.Sources != 2 {
		t.Fatalf("unexpected second attempt: %+v", second)
	}
	if store.Len() != 2 {
		t.Fatalf("retried load must not duplicate posts, got %d", store.Len())
	}
	if _, ok := store.Get("value-objects-2"); ok {
		t.Fatal("reloaded post received a suffixed slug")
	}
}

func TestDispatchedRenderReportsSlug(t *testing.T) {
	store := posts.NewStore()
	if _, err := posts.NewLoader(store, blogContent(), posts.LoaderConfig{}).LoadDirectory(context.Background(), "content"); err != nil {
		t.Fatalf("load: %v", err)
	}

	var (
		infos []commands.TelemetryInfo
		pages = map[string]string{}
	)
	handler := postscmd.NewRenderPostHandler(store, render.New(render.Config{}), nil, nil,
		func(slug, html string) { pages[slug] = html },
		commands.WithTelemetry(func(_ context.Context, _ postscmd.RenderPostCommand, info commands.TelemetryInfo) {
			infos = append(infos, info)
		}),
	)

	sub := dispatcher.SubscribeCommand(handler, runner.WithMaxRetries(0))
	t.Cleanup(sub.Unsubscribe)

	ctx := context.Background()
	if err := dispatcher.Dispatch(ctx, postscmd.RenderPostCommand{Slug: "chainable-scopes"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !strings.Contains(pages["chainable-scopes"], `class="language-php"`) {
		t.Fatalf("expected rendered php block, got %q", pages["chainable-scopes"])
	}
	if len(infos) != 1 || infos[0].Outcome.Slug != "chainable-scopes" || infos[0].Outcome.Posts != 1 {
		t.Fatalf("unexpected telemetry: %+v", infos)
	}

	if err := dispatcher.Dispatch(ctx, postscmd.RenderPostCommand{Slug: "missing"}); err == nil {
		t.Fatal("expected error for unknown slug")
	}
	if len(infos) != 2 || infos[1].Status != commands.TelemetryStatusFailed || infos[1].Outcome.Slug != "" {
		t.Fatalf("unexpected telemetry for unknown slug: %+v", infos)
	}
	if _, ok := pages["missing"]; ok {
		t.Fatal("sink called for unknown slug")
	}
}
