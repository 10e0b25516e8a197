package postscmd

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-blog/internal/generator"
	"github.com/goliatone/go-blog/internal/logging"
	"github.com/goliatone/go-blog/internal/posts"
	"github.com/goliatone/go-blog/internal/render"
	"github.com/goliatone/go-blog/pkg/interfaces"
)

type captureLogger struct {
	fields       []map[string]any
	infoMessages []string
}

var _ interfaces.Logger = (*captureLogger)(nil)

func (c *captureLogger) Trace(string, ...any) {}
func (c *captureLogger) Debug(string, ...any) {}
func (c *captureLogger) Info(msg string, _ ...any) {
	c.infoMessages = append(c.infoMessages, msg)
}
func (c *captureLogger) Warn(string, ...any)  {}
func (c *captureLogger) Error(string, ...any) {}
func (c *captureLogger) Fatal(string, ...any) {}

func (c *captureLogger) WithFields(fields map[string]any) interfaces.Logger {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	c.fields = append(c.fields, copied)
	return c
}

func (c *captureLogger) WithContext(context.Context) interfaces.Logger {
	return c
}

type stubBuilder struct {
	calls  []generator.BuildOptions
	result *generator.BuildResult
	err    error
	pages  map[string]string
}

func (s *stubBuilder) Build(_ context.Context, opts generator.BuildOptions) (*generator.BuildResult, error) {
	s.calls = append(s.calls, opts)
	return s.result, s.err
}

func (s *stubBuilder) RenderPage(_ context.Context, slug string) (string, error) {
	page, ok := s.pages[slug]
	if !ok {
		return "", generator.ErrPostNotFound
	}
	return page, nil
}

func contentFS() fstest.MapFS {
	return fstest.MapFS{
		"content/a.md":        {Data: []byte("# Alpha\n> Originally published May 1st, 2020\n\nFirst.\n")},
		"content/b.md":        {Data: []byte("no heading here\n")},
		"content/nested/c.md": {Data: []byte("# Gamma\n\nThird.\n")},
	}
}

func TestLoadPostsHandlerLoadsAndReportsParseErrors(t *testing.T) {
	store := posts.NewStore()
	logger := &captureLogger{}
	var summary *posts.LoadResult
	handler := NewLoadPostsHandler(store, contentFS(), posts.LoaderConfig{}, logger, func(r *posts.LoadResult) {
		summary = r
	})

	err := handler.Execute(context.Background(), LoadPostsCommand{Directory: "content"})
	if err == nil {
		t.Fatal("expected parse error for the source without a heading")
	}
	if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Fatalf("expected validation category, got %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected good post loaded, got %d", store.Len())
	}
	if summary == nil || len(summary.Errors) != 1 || len(summary.Posts) != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	found := false
	for _, fields := range logger.fields {
		if fields["post_count"] == 1 && fields["failed_count"] == 1 && fields["command"] == "blog.posts.load" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected summary fields recorded, got %#v", logger.fields)
	}
}

func TestLoadPostsHandlerRecursive(t *testing.T) {
	store := posts.NewStore()
	handler := NewLoadPostsHandler(store, contentFS(), posts.LoaderConfig{}, logging.NoOp(), nil)
	_ = handler.Execute(context.Background(), LoadPostsCommand{Directory: "content", Recursive: true})
	if _, ok := store.Get("gamma"); !ok {
		t.Fatal("expected nested post loaded")
	}
}

func TestRenderPostHandlerFragmentAndPage(t *testing.T) {
	store := posts.NewStore()
	if _, err := store.LoadBytes(context.Background(), "a.md", []byte("# Hello\n\n*hi*\n")); err != nil {
		t.Fatalf("load: %v", err)
	}
	builder := &stubBuilder{pages: map[string]string{"hello": "<html>page</html>"}}
	rendered := map[string]string{}
	handler := NewRenderPostHandler(store, render.New(render.Config{}), builder, logging.NoOp(), func(slug, html string) {
		rendered[slug] = html
	})

	if err := handler.Execute(context.Background(), RenderPostCommand{Slug: "hello"}); err != nil {
		t.Fatalf("render fragment: %v", err)
	}
	if !strings.Contains(rendered["hello"], "<em>hi</em>") {
		t.Fatalf("unexpected fragment: %q", rendered["hello"])
	}

	if err := handler.Execute(context.Background(), RenderPostCommand{Slug: "hello", Page: true}); err != nil {
		t.Fatalf("render page: %v", err)
	}
	if rendered["hello"] != "<html>page</html>" {
		t.Fatalf("unexpected page: %q", rendered["hello"])
	}

	err := handler.Execute(context.Background(), RenderPostCommand{Slug: "missing"})
	if !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestRenderPostHandlerReportsUnterminatedFence(t *testing.T) {
	store := posts.NewStore()
	if _, err := store.LoadBytes(context.Background(), "a.md", []byte("# Broken\n\n~~~\ncode\n")); err != nil {
		t.Fatalf("load: %v", err)
	}
	handler := NewRenderPostHandler(store, render.New(render.Config{}), nil, logging.NoOp(), nil)
	err := handler.Execute(context.Background(), RenderPostCommand{Slug: "broken"})
	var renderErr *render.RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected render error, got %v", err)
	}
	if !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected command category, got %v", err)
	}
}

func TestBuildSiteHandlerForwardsOptions(t *testing.T) {
	builder := &stubBuilder{result: &generator.BuildResult{PostsBuilt: 2}}
	var got *generator.BuildResult
	handler := NewBuildSiteHandler(builder, logging.NoOp(), func(r *generator.BuildResult) { got = r })

	cmd := BuildSiteCommand{OutputDir: "public", Incremental: true, IncludeDrafts: true, Slugs: []string{"a"}}
	if err := handler.Execute(context.Background(), cmd); err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(builder.calls) != 1 {
		t.Fatalf("expected one build, got %d", len(builder.calls))
	}
	opts := builder.calls[0]
	if opts.OutputDir != "public" || !opts.Incremental || !opts.IncludeDrafts || opts.DryRun || len(opts.Slugs) != 1 {
		t.Fatalf("unexpected build options: %+v", opts)
	}
	if got == nil || got.PostsBuilt != 2 {
		t.Fatalf("expected result callback, got %+v", got)
	}
}

func TestBuildSiteHandlerWithoutBuilder(t *testing.T) {
	handler := NewBuildSiteHandler(nil, logging.NoOp(), nil)
	err := handler.Execute(context.Background(), BuildSiteCommand{})
	if !errors.Is(err, ErrBuilderUnavailable) && !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected builder unavailable, got %v", err)
	}
}
