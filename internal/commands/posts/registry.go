package postscmd

import (
	"context"
	"errors"
	"io/fs"
	"time"

	command "github.com/goliatone/go-command"

	"github.com/goliatone/go-blog/internal/commands"
	"github.com/goliatone/go-blog/internal/generator"
	"github.com/goliatone/go-blog/internal/posts"
	"github.com/goliatone/go-blog/pkg/interfaces"
)

// CommandRegistry is the minimal registration contract expected when wiring command handlers.
type CommandRegistry interface {
	RegisterCommand(handler any) error
}

// CronRegistrar matches the function signature used by go-command registries.
type CronRegistrar func(command.HandlerConfig, any) error

// Builder generates the site and renders single pages, as *generator.Service does.
type Builder interface {
	SiteBuilder
	PageRenderer
}

// Dependencies supplies the services the post handlers operate on. Builder
// may be nil, in which case build and page rendering fail with
// ErrBuilderUnavailable.
type Dependencies struct {
	Store    *posts.Store
	Content  fs.FS
	Loader   posts.LoaderConfig
	Renderer PostRenderer
	Builder  Builder
}

// HandlerSet groups the handlers produced by RegisterPostCommands.
type HandlerSet struct {
	Load   *LoadPostsHandler
	Render *RenderPostHandler
	Build  *BuildSiteHandler
}

// Option customises handler wiring during registration.
type Option func(*options)

type options struct {
	onLoad   func(*posts.LoadResult)
	onRender func(slug, html string)
	onBuild  func(*generator.BuildResult)
	timeout  time.Duration
}

// OnLoad receives every load summary.
func OnLoad(fn func(*posts.LoadResult)) Option {
	return func(o *options) { o.onLoad = fn }
}

// OnRender receives rendered HTML.
func OnRender(fn func(slug, html string)) Option {
	return func(o *options) { o.onRender = fn }
}

// OnBuild receives every build summary, including failed builds.
func OnBuild(fn func(*generator.BuildResult)) Option {
	return func(o *options) { o.onBuild = fn }
}

// WithCommandTimeout applies timeout to every handler. Zero disables it.
func WithCommandTimeout(timeout time.Duration) Option {
	return func(o *options) { o.timeout = timeout }
}

// RegisterPostCommands builds the post handlers and registers them with reg
// when it is not nil.
func RegisterPostCommands(reg CommandRegistry, deps Dependencies, provider interfaces.LoggerProvider, opts ...Option) (*HandlerSet, error) {
	if deps.Store == nil {
		return nil, errors.New("posts command registration: store is nil")
	}
	if deps.Renderer == nil {
		return nil, errors.New("posts command registration: renderer is nil")
	}

	cfg := options{timeout: commands.DefaultCommandTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	logger := commands.CommandLogger(provider, "posts")
	var pages PageRenderer
	var builder SiteBuilder
	if deps.Builder != nil {
		pages, builder = deps.Builder, deps.Builder
	}

	set := &HandlerSet{
		Load: NewLoadPostsHandler(deps.Store, deps.Content, deps.Loader, logger, cfg.onLoad,
			commands.WithTimeout[LoadPostsCommand](cfg.timeout)),
		Render: NewRenderPostHandler(deps.Store, deps.Renderer, pages, logger, cfg.onRender,
			commands.WithTimeout[RenderPostCommand](cfg.timeout)),
		Build: NewBuildSiteHandler(builder, logger, cfg.onBuild,
			commands.WithTimeout[BuildSiteCommand](cfg.timeout)),
	}

	if reg != nil {
		for _, handler := range []any{set.Load, set.Render, set.Build} {
			if err := reg.RegisterCommand(handler); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}

// RegisterBuildCron schedules periodic site builds through a cron registrar.
// The handler runs with a background context.
func RegisterBuildCron(reg CronRegistrar, handler *BuildSiteHandler, cfg command.HandlerConfig, msg BuildSiteCommand) error {
	if reg == nil || handler == nil {
		return nil
	}
	return reg(cfg, func() error {
		return handler.Execute(context.Background(), msg)
	})
}
