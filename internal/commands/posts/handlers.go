package postscmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	command "github.com/goliatone/go-command"

	"github.com/goliatone/go-blog/internal/commands"
	"github.com/goliatone/go-blog/internal/generator"
	"github.com/goliatone/go-blog/internal/logging"
	"github.com/goliatone/go-blog/internal/posts"
	"github.com/goliatone/go-blog/internal/render"
	"github.com/goliatone/go-blog/pkg/interfaces"
)

const (
	loadOperation   = "posts.load"
	renderOperation = "posts.render"
	buildOperation  = "site.build"
)

var (
	// ErrPostNotFound is returned when RenderPostCommand names an unknown slug.
	ErrPostNotFound = errors.New("posts command: post not found")
	// ErrBuilderUnavailable is returned when no site builder is configured.
	ErrBuilderUnavailable = errors.New("posts command: site builder not configured")
)

var (
	_ command.Commander[LoadPostsCommand]  = (*LoadPostsHandler)(nil)
	_ command.Commander[RenderPostCommand] = (*RenderPostHandler)(nil)
	_ command.Commander[BuildSiteCommand]  = (*BuildSiteHandler)(nil)
)

// PostRenderer renders a post to an HTML fragment.
type PostRenderer interface {
	Render(ctx context.Context, post posts.Post) (*render.Rendered, error)
}

// PageRenderer renders the themed page of a post.
type PageRenderer interface {
	RenderPage(ctx context.Context, slug string) (string, error)
}

// SiteBuilder generates the static site.
type SiteBuilder interface {
	Build(ctx context.Context, opts generator.BuildOptions) (*generator.BuildResult, error)
}

// LoadPostsHandler loads Markdown sources into a post store.
type LoadPostsHandler struct {
	inner    *commands.Handler[LoadPostsCommand]
	onResult func(*posts.LoadResult)
}

// NewLoadPostsHandler creates a handler reading sources from content. A nil
// onResult discards the load summary.
func NewLoadPostsHandler(store *posts.Store, content fs.FS, defaults posts.LoaderConfig, logger interfaces.Logger, onResult func(*posts.LoadResult), opts ...commands.HandlerOption[LoadPostsCommand]) *LoadPostsHandler {
	baseLogger := logging.EnsureLogger(logger)
	h := &LoadPostsHandler{onResult: onResult}

	exec := func(ctx context.Context, msg LoadPostsCommand) error {
		cfg := defaults
		if msg.Pattern != "" {
			cfg.Pattern = msg.Pattern
		}
		cfg.Recursive = cfg.Recursive || msg.Recursive

		result, err := posts.NewLoader(store, content, cfg).LoadDirectory(ctx, msg.Directory)
		if err != nil {
			return err
		}
		commands.ReportOutcome(ctx, commands.Outcome{
			Sources: len(result.Sources),
			Posts:   len(result.Posts),
			Failed:  len(result.Errors),
		})
		if h.onResult != nil {
			h.onResult(result)
		}
		return result.Err()
	}

	handlerOpts := []commands.HandlerOption[LoadPostsCommand]{
		commands.WithLogger[LoadPostsCommand](baseLogger),
		commands.WithOperation[LoadPostsCommand](loadOperation),
		commands.WithMessageFields(func(msg LoadPostsCommand) map[string]any {
			fields := map[string]any{"directory": msg.Directory}
			if msg.Pattern != "" {
				fields["pattern"] = msg.Pattern
			}
			if msg.Recursive {
				fields["recursive"] = true
			}
			return fields
		}),
		commands.WithTelemetry(commands.DefaultTelemetry[LoadPostsCommand](baseLogger)),
	}
	h.inner = commands.NewHandler(exec, append(handlerOpts, opts...)...)
	return h
}

// Execute satisfies command.Commander[LoadPostsCommand].
func (h *LoadPostsHandler) Execute(ctx context.Context, msg LoadPostsCommand) error {
	return h.inner.Execute(ctx, msg)
}

// RenderPostHandler renders one post and hands the HTML to a sink.
type RenderPostHandler struct {
	inner *commands.Handler[RenderPostCommand]
}

// NewRenderPostHandler creates a render handler. pages may be nil when only
// fragments are requested.
func NewRenderPostHandler(store generator.PostSource, renderer PostRenderer, pages PageRenderer, logger interfaces.Logger, sink func(slug, html string), opts ...commands.HandlerOption[RenderPostCommand]) *RenderPostHandler {
	baseLogger := logging.EnsureLogger(logger)

	exec := func(ctx context.Context, msg RenderPostCommand) error {
		var html string
		if msg.Page {
			if pages == nil {
				return ErrBuilderUnavailable
			}
			page, err := pages.RenderPage(ctx, msg.Slug)
			if errors.Is(err, generator.ErrPostNotFound) {
				return fmt.Errorf("%w: %s", ErrPostNotFound, msg.Slug)
			}
			if err != nil {
				return err
			}
			html = page
		} else {
			post, ok := store.Get(msg.Slug)
			if !ok {
				return fmt.Errorf("%w: %s", ErrPostNotFound, msg.Slug)
			}
			rendered, err := renderer.Render(ctx, post)
			if err != nil {
				return err
			}
			html = rendered.HTML
		}
		commands.ReportOutcome(ctx, commands.Outcome{Slug: msg.Slug, Posts: 1})
		if sink != nil {
			sink(msg.Slug, html)
		}
		return nil
	}

	handlerOpts := []commands.HandlerOption[RenderPostCommand]{
		commands.WithLogger[RenderPostCommand](baseLogger),
		commands.WithOperation[RenderPostCommand](renderOperation),
		commands.WithMessageFields(func(msg RenderPostCommand) map[string]any {
			return map[string]any{"slug": msg.Slug, "page": msg.Page}
		}),
		commands.WithTelemetry(commands.DefaultTelemetry[RenderPostCommand](baseLogger)),
	}
	return &RenderPostHandler{inner: commands.NewHandler(exec, append(handlerOpts, opts...)...)}
}

// Execute satisfies command.Commander[RenderPostCommand].
func (h *RenderPostHandler) Execute(ctx context.Context, msg RenderPostCommand) error {
	return h.inner.Execute(ctx, msg)
}

// BuildSiteHandler runs the static site generator.
type BuildSiteHandler struct {
	inner *commands.Handler[BuildSiteCommand]
}

// NewBuildSiteHandler creates a build handler. A nil onResult discards the
// build summary.
func NewBuildSiteHandler(builder SiteBuilder, logger interfaces.Logger, onResult func(*generator.BuildResult), opts ...commands.HandlerOption[BuildSiteCommand]) *BuildSiteHandler {
	baseLogger := logging.EnsureLogger(logger)

	exec := func(ctx context.Context, msg BuildSiteCommand) error {
		if builder == nil {
			return ErrBuilderUnavailable
		}
		result, err := builder.Build(ctx, generator.BuildOptions{
			OutputDir:     msg.OutputDir,
			Incremental:   msg.Incremental,
			IncludeDrafts: msg.IncludeDrafts,
			DryRun:        msg.DryRun,
			Slugs:         msg.Slugs,
		})
		if result != nil {
			commands.ReportOutcome(ctx, commands.Outcome{
				Posts:   result.PostsBuilt,
				Skipped: result.PostsSkipped,
				Failed:  result.PostsFailed,
				Files:   len(result.Artifacts),
			})
			if onResult != nil {
				onResult(result)
			}
		}
		return err
	}

	handlerOpts := []commands.HandlerOption[BuildSiteCommand]{
		commands.WithLogger[BuildSiteCommand](baseLogger),
		commands.WithOperation[BuildSiteCommand](buildOperation),
		commands.WithMessageFields(func(msg BuildSiteCommand) map[string]any {
			fields := map[string]any{}
			if msg.OutputDir != "" {
				fields["output_dir"] = msg.OutputDir
			}
			if msg.Incremental {
				fields["incremental"] = true
			}
			if msg.DryRun {
				fields["dry_run"] = true
			}
			if msg.IncludeDrafts {
				fields["include_drafts"] = true
			}
			if len(msg.Slugs) > 0 {
				fields["slugs"] = msg.Slugs
			}
			return fields
		}),
		commands.WithTelemetry(commands.DefaultTelemetry[BuildSiteCommand](baseLogger)),
	}
	return &BuildSiteHandler{inner: commands.NewHandler(exec, append(handlerOpts, opts...)...)}
}

// Execute satisfies command.Commander[BuildSiteCommand].
func (h *BuildSiteHandler) Execute(ctx context.Context, msg BuildSiteCommand) error {
	return h.inner.Execute(ctx, msg)
}
