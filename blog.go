// Package blog loads Markdown blog posts, renders them to HTML and publishes
// them as a static site.
package blog

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-blog/internal/commands"
	postscmd "github.com/goliatone/go-blog/internal/commands/posts"
	"github.com/goliatone/go-blog/internal/generator"
	"github.com/goliatone/go-blog/internal/logging"
	"github.com/goliatone/go-blog/internal/logging/console"
	"github.com/goliatone/go-blog/internal/logging/gologger"
	"github.com/goliatone/go-blog/internal/manifest"
	"github.com/goliatone/go-blog/internal/posts"
	"github.com/goliatone/go-blog/internal/render"
	"github.com/goliatone/go-blog/internal/validation"
	"github.com/goliatone/go-blog/pkg/interfaces"
)

type (
	// Post is a parsed blog post.
	Post = posts.Post
	// ParseError reports a post rejected while loading.
	ParseError = posts.ParseError
	// RenderError reports a post that failed to render.
	RenderError = render.RenderError
	// LoadResult summarises a directory load.
	LoadResult = posts.LoadResult
	// BuildOptions narrows a single site build.
	BuildOptions = generator.BuildOptions
	// BuildResult reports a site build.
	BuildResult = generator.BuildResult
)

var (
	ErrMissingTitle      = posts.ErrMissingTitle
	ErrInvalidDate       = posts.ErrInvalidDate
	ErrUnterminatedFence = render.ErrUnterminatedFence
)

// Module represents the top level blog runtime facade.
type Module struct {
	cfg       Config
	provider  interfaces.LoggerProvider
	content   fs.FS
	store     *posts.Store
	renderer  *render.Renderer
	generator *generator.Service
	manifest  manifest.Store
	db        *bun.DB
	commands  *postscmd.HandlerSet
}

// Option overrides a collaborator of the module.
type Option func(*moduleOptions)

type moduleOptions struct {
	provider interfaces.LoggerProvider
	content  fs.FS
	manifest manifest.Store
	registry postscmd.CommandRegistry
	cmdOpts  []postscmd.Option
}

// WithLoggerProvider replaces the provider selected by Config.Logging.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(o *moduleOptions) { o.provider = provider }
}

// WithContentFS reads posts from fsys instead of Config.Posts.ContentDir.
func WithContentFS(fsys fs.FS) Option {
	return func(o *moduleOptions) { o.content = fsys }
}

// WithManifestStore replaces the manifest selected by Config.Manifest.
func WithManifestStore(store manifest.Store) Option {
	return func(o *moduleOptions) { o.manifest = store }
}

// WithCommandRegistry registers the post command handlers with reg.
func WithCommandRegistry(reg postscmd.CommandRegistry) Option {
	return func(o *moduleOptions) { o.registry = reg }
}

// WithCommandOptions forwards options to the post command registration.
func WithCommandOptions(opts ...postscmd.Option) Option {
	return func(o *moduleOptions) { o.cmdOpts = append(o.cmdOpts, opts...) }
}

// New validates cfg and wires the blog runtime. Callers must Close the module
// when a database manifest is configured.
func New(ctx context.Context, cfg Config, opts ...Option) (*Module, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := moduleOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	provider := options.provider
	if provider == nil {
		var err error
		if provider, err = newLoggerProvider(cfg.Logging); err != nil {
			return nil, err
		}
	}

	storeOpts := []posts.Option{
		posts.WithLogger(logging.PostsLogger(provider)),
		posts.WithDelimiter(cfg.Posts.Delimiter),
	}
	if path := strings.TrimSpace(cfg.Posts.FrontMatterSchema); path != "" {
		schema, err := validation.LoadFrontMatterSchema(path)
		if err != nil {
			return nil, err
		}
		storeOpts = append(storeOpts, posts.WithFrontMatterSchema(schema))
	}

	m := &Module{
		cfg:      cfg,
		provider: provider,
		content:  options.content,
		store:    posts.NewStore(storeOpts...),
		manifest: options.manifest,
	}
	if m.content == nil {
		m.content = os.DirFS(cfg.Posts.ContentDir)
	}

	m.renderer = render.New(render.Config{
		Options: interfaces.ParseOptions{
			Extensions: cfg.Markdown.Extensions,
			Sanitize:   cfg.Markdown.Sanitize,
			HardWraps:  cfg.Markdown.HardWraps,
			SafeMode:   cfg.Markdown.SafeMode,
		},
		Workers: cfg.Generator.Workers,
	}, render.WithLogger(logging.RenderLogger(provider)))

	if m.manifest == nil {
		if err := m.openManifest(ctx); err != nil {
			return nil, err
		}
	}

	gen := cfg.Generator
	service, err := generator.NewService(generator.Config{
		OutputDir:       gen.OutputDir,
		BaseURL:         gen.BaseURL,
		Title:           gen.Title,
		Description:     gen.Description,
		Author:          gen.Author,
		Language:        gen.Language,
		ThemeDir:        gen.ThemeDir,
		ThemeVariant:    gen.ThemeVariant,
		Incremental:     gen.Incremental,
		IncludeDrafts:   gen.IncludeDrafts,
		GenerateSitemap: gen.GenerateSitemap,
		GenerateRobots:  gen.GenerateRobots,
		GenerateFeeds:   gen.GenerateFeeds,
		FeedLimit:       gen.FeedLimit,
		Workers:         gen.Workers,
		RenderTimeout:   gen.RenderTimeout,
	}, generator.Dependencies{
		Posts:    m.store,
		Renderer: m.renderer,
		Manifest: m.manifest,
		Logger:   logging.GeneratorLogger(provider),
	})
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	m.generator = service

	cmdOpts := append([]postscmd.Option{postscmd.WithCommandTimeout(cfg.Commands.Timeout)}, options.cmdOpts...)
	m.commands, err = postscmd.RegisterPostCommands(options.registry, postscmd.Dependencies{
		Store:   m.store,
		Content: m.content,
		Loader: posts.LoaderConfig{
			Pattern:   cfg.Posts.Pattern,
			Recursive: cfg.Posts.Recursive,
		},
		Renderer: m.renderer,
		Builder:  m.generator,
	}, provider, cmdOpts...)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}

func (m *Module) openManifest(ctx context.Context) error {
	driver := strings.ToLower(strings.TrimSpace(m.cfg.Manifest.Driver))
	if driver == "" || driver == "memory" {
		m.manifest = manifest.NewMemoryStore()
		return nil
	}
	db, err := manifest.Open(ctx, driver, m.cfg.Manifest.DSN)
	if err != nil {
		return err
	}
	m.db = db
	if !m.cfg.Manifest.Cache {
		m.manifest = manifest.NewBunStore(db)
		return nil
	}
	cacheCfg := cache.DefaultConfig()
	if m.cfg.Manifest.CacheTTL > 0 {
		cacheCfg.TTL = m.cfg.Manifest.CacheTTL
	}
	service, err := cache.NewCacheService(cacheCfg)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("blog: manifest cache: %w", err)
	}
	m.manifest = manifest.NewBunStoreWithCache(db, service, cache.NewDefaultKeySerializer())
	return nil
}

func newLoggerProvider(cfg LoggingConfig) (interfaces.LoggerProvider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gologger":
		provider, err := gologger.NewProvider(gologger.Config{
			Level:     cfg.Level,
			Format:    cfg.Format,
			AddSource: cfg.AddSource,
			Focus:     cfg.Focus,
		})
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		level, err := console.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		return console.NewProvider(console.Options{Level: level}), nil
	}
}

// Posts exposes the post store.
func (m *Module) Posts() *posts.Store { return m.store }

// Renderer exposes the post renderer.
func (m *Module) Renderer() *render.Renderer { return m.renderer }

// Generator exposes the static site generator.
func (m *Module) Generator() *generator.Service { return m.generator }

// Commands exposes the post command handlers.
func (m *Module) Commands() *postscmd.HandlerSet { return m.commands }

// Logger returns a module-scoped logger from the configured provider.
func (m *Module) Logger(module string) interfaces.Logger {
	return logging.ModuleLogger(m.provider, module)
}

// CommandLogger returns the logger command handlers use for module.
func (m *Module) CommandLogger(module string) interfaces.Logger {
	return commands.CommandLogger(m.provider, module)
}

// LoadContent loads every post under the content root.
func (m *Module) LoadContent(ctx context.Context) (*LoadResult, error) {
	loader := posts.NewLoader(m.store, m.content, posts.LoaderConfig{
		Pattern:   m.cfg.Posts.Pattern,
		Recursive: m.cfg.Posts.Recursive,
	})
	return loader.LoadDirectory(ctx, ".")
}

// Build generates the static site.
func (m *Module) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	return m.generator.Build(ctx, opts)
}

// Close releases the manifest database, if any.
func (m *Module) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}
