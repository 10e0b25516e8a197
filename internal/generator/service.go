// Package generator renders the post store into a static site: one page per
// post, an index, a sitemap, robots.txt and RSS/Atom feeds.
package generator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	urlkit "github.com/goliatone/go-urlkit"
	"github.com/google/uuid"

	"github.com/goliatone/go-blog/internal/logging"
	"github.com/goliatone/go-blog/internal/manifest"
	"github.com/goliatone/go-blog/internal/markdown"
	"github.com/goliatone/go-blog/internal/posts"
	"github.com/goliatone/go-blog/internal/render"
	"github.com/goliatone/go-blog/pkg/interfaces"
)

var (
	// ErrPostNotFound is returned when a requested slug is not in the store.
	ErrPostNotFound      = errors.New("generator: post not found")
	errPostsRequired     = errors.New("generator: post source is required")
	errRendererRequired  = errors.New("generator: post renderer is required")
	errUnsafeOutputDir   = errors.New("generator: refusing to clean output directory")
	errOutputDirRequired = errors.New("generator: output directory is required")
)

// Config captures runtime behaviour toggles for the generator.
type Config struct {
	OutputDir       string
	BaseURL         string
	Title           string
	Description     string
	Author          string
	Language        string
	ThemeDir        string
	// ThemeVariant selects a variant of the theme's go-theme manifest.
	ThemeVariant    string
	Incremental     bool
	IncludeDrafts   bool
	GenerateSitemap bool
	GenerateRobots  bool
	GenerateFeeds   bool

	// FeedLimit caps feed items; zero keeps every post.
	FeedLimit     int
	Workers       int
	RenderTimeout time.Duration
}

// PostSource supplies the posts to publish.
type PostSource interface {
	Posts() []posts.Post
	Get(slug string) (posts.Post, bool)
}

// PostRenderer converts posts to HTML fragments.
type PostRenderer interface {
	Render(ctx context.Context, post posts.Post) (*render.Rendered, error)
	RenderAll(ctx context.Context, list []posts.Post, workers int) *render.BatchResult
}

// Dependencies lists the collaborators of the generator. Templates, Manifest,
// Routes and ThemeLoader are optional.
type Dependencies struct {
	Posts       PostSource
	Renderer    PostRenderer
	Templates   interfaces.TemplateRenderer
	Manifest    manifest.Store
	Routes      *urlkit.RouteManager
	ThemeLoader ThemeManifestLoader
	Logger      interfaces.Logger
}

// BuildOptions narrows or overrides a single build.
type BuildOptions struct {
	// OutputDir overrides Config.OutputDir.
	OutputDir     string
	Incremental   bool
	IncludeDrafts bool
	DryRun        bool

	// Slugs limits post pages to the listed posts. Index, sitemap and feeds
	// are still built from every published post.
	Slugs []string
}

// Artifact describes one output of a build.
type Artifact struct {
	Path     string
	Category string
	PostSlug string
	Size     int
	Checksum string
	Skipped  bool
}

// BuildResult reports aggregated build metadata.
type BuildResult struct {
	OutputDir    string
	PostsBuilt   int
	PostsSkipped int
	PostsFailed  int
	// PostsRemoved counts pages of posts no longer published that were deleted.
	PostsRemoved int
	Artifacts    []Artifact
	Errors       []error
	Duration     time.Duration
	DryRun       bool
}

// SiteMetadata is exposed to templates as "site".
type SiteMetadata struct {
	Title       string
	Description string
	Author      string
	Language    string
	BaseURL     string
	IndexURL    string
	FeedURL     string
	AtomURL     string
}

// Service builds static sites.
type Service struct {
	cfg       Config
	deps      Dependencies
	templates interfaces.TemplateRenderer
	theme     *blogTheme
	links     permalinks
	logger    interfaces.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNow overrides the clock used for manifest timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires a generator. Without Templates it loads the embedded
// pongo2 templates (overlaid by Config.ThemeDir); without Routes it uses
// NewRouteManager(Config.BaseURL).
func NewService(cfg Config, deps Dependencies, opts ...Option) (*Service, error) {
	if deps.Posts == nil {
		return nil, errPostsRequired
	}
	if deps.Renderer == nil {
		return nil, errRendererRequired
	}
	templates := deps.Templates
	if templates == nil {
		set, err := NewTemplateSet(cfg.ThemeDir,
			WithThemeVariant(cfg.ThemeVariant),
			WithThemeManifestLoader(deps.ThemeLoader),
		)
		if err != nil {
			return nil, err
		}
		templates = set
	}
	var theme *blogTheme
	if set, ok := templates.(*TemplateSet); ok {
		theme = set.theme
	}
	routes := deps.Routes
	if routes == nil {
		routes = NewRouteManager(cfg.BaseURL)
	}
	s := &Service{
		cfg:       cfg,
		deps:      deps,
		templates: templates,
		theme:     theme,
		links:     newPermalinks(routes, cfg.BaseURL),
		logger:    logging.EnsureLogger(deps.Logger),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// postView is exposed to templates as "post" and as items of "posts".
type postView struct {
	ID          uuid.UUID
	Title       string
	Slug        string
	URL         string
	Date        string
	ISODate     string
	Summary     string
	Author      string
	Tags        []string
	HTML        string
	PublishedAt time.Time
}

func newPostView(post posts.Post, link string) postView {
	view := postView{
		ID:          post.ID,
		Title:       post.Title,
		Slug:        post.Slug,
		URL:         link,
		Summary:     postSummary(post),
		Author:      post.Meta.Author,
		Tags:        slices.Clone(post.Meta.Tags),
		PublishedAt: post.PublishedDate,
	}
	if post.HasPublishedDate() {
		view.Date = post.PublishedDate.Format("January 2, 2006")
		view.ISODate = post.PublishedDate.Format("2006-01-02")
	}
	return view
}

func postSummary(post posts.Post) string {
	if summary := strings.TrimSpace(post.Meta.Summary); summary != "" {
		return normalizeWhitespace(summary)
	}
	for _, block := range post.Blocks {
		if block.Kind == markdown.BlockParagraph && strings.TrimSpace(block.Text) != "" {
			return summarize(block.Text)
		}
	}
	return summarize(post.PlainText())
}

// build holds the state of one Build call.
type build struct {
	writer      artifactWriter
	store       manifest.Store
	incremental bool
	dryRun      bool
	result      *BuildResult
	now         time.Time
}

type pageJob struct {
	post     posts.Post
	view     int
	path     string
	checksum string
}

// Build renders and writes the site. Post failures are collected in the
// result and joined into the returned error; other outputs are still written.
func (s *Service) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	outputDir := strings.TrimSpace(opts.OutputDir)
	if outputDir == "" {
		outputDir = strings.TrimSpace(s.cfg.OutputDir)
	}
	if outputDir == "" && !opts.DryRun {
		return nil, errOutputDirRequired
	}

	b := &build{
		store:       s.deps.Manifest,
		incremental: opts.Incremental || s.cfg.Incremental,
		dryRun:      opts.DryRun,
		result:      &BuildResult{OutputDir: outputDir, DryRun: opts.DryRun},
		now:         s.now().UTC(),
	}
	if opts.DryRun {
		b.writer = newDryRunWriter()
	} else {
		b.writer = dirWriter{root: outputDir}
	}

	site, err := s.siteMetadata()
	if err != nil {
		return nil, err
	}
	siteHash := checksumOf(site.Title, site.Description, site.Author, site.Language, site.BaseURL)

	published := s.publishedPosts(opts.IncludeDrafts || s.cfg.IncludeDrafts)
	only := map[string]bool{}
	for _, slug := range opts.Slugs {
		if slug = strings.TrimSpace(slug); slug != "" {
			only[slug] = true
		}
	}

	views := make([]postView, 0, len(published))
	var jobs []pageJob
	pages := make(map[string]bool, len(published))
	prune := true
	for _, post := range published {
		link, err := s.links.post(post.Slug)
		if err != nil {
			b.fail(fmt.Errorf("generator: permalink for %s: %w", post.Slug, err))
			prune = false
			continue
		}
		views = append(views, newPostView(post, link))
		outPath := s.links.outputPath(link)
		pages[outPath] = true
		if len(only) > 0 && !only[post.Slug] {
			continue
		}

		checksum := checksumOf(post.Checksum, s.templateHash(), siteHash, link)
		if b.unchanged(ctx, outPath, checksum) {
			b.result.PostsSkipped++
			b.result.Artifacts = append(b.result.Artifacts, Artifact{
				Path: outPath, Category: string(categoryPost), PostSlug: post.Slug, Checksum: checksum, Skipped: true,
			})
			continue
		}
		jobs = append(jobs, pageJob{post: post, view: len(views) - 1, path: outPath, checksum: checksum})
	}

	failed := s.renderPages(ctx, b, site, views, jobs)
	if len(failed) > 0 {
		kept := views[:0]
		for i, view := range views {
			if !failed[i] {
				kept = append(kept, view)
			}
		}
		views = kept
	}

	if err := ctx.Err(); err != nil {
		b.fail(err)
		return b.finish(start)
	}

	s.writeIndex(ctx, b, site, views)
	s.copyAssets(ctx, b)
	if s.cfg.GenerateSitemap {
		entries := []sitemapEntry{{Location: site.IndexURL, LastMod: newest(views)}}
		for _, view := range views {
			entries = append(entries, sitemapEntry{Location: view.URL, LastMod: view.PublishedAt})
		}
		b.write(ctx, Artifact{Path: "sitemap.xml", Category: string(categorySitemap)}, []byte(buildSitemap(entries)), uuid.Nil)
	}
	if s.cfg.GenerateRobots {
		b.write(ctx, Artifact{Path: "robots.txt", Category: string(categoryRobots)}, []byte(buildRobots(site.BaseURL, s.cfg.GenerateSitemap)), uuid.Nil)
	}
	if s.cfg.GenerateFeeds {
		doc := s.feedDocument(site, views)
		b.write(ctx, Artifact{Path: feedRSSPath, Category: string(categoryFeed)}, []byte(buildRSSFeed(doc)), uuid.Nil)
		b.write(ctx, Artifact{Path: feedAtomPath, Category: string(categoryFeed)}, []byte(buildAtomFeed(doc)), uuid.Nil)
	}
	if prune {
		s.pruneOrphans(ctx, b, pages)
	}

	return b.finish(start)
}

// renderPages renders job posts concurrently and writes their pages. It
// returns the view indexes whose post failed.
func (s *Service) renderPages(ctx context.Context, b *build, site SiteMetadata, views []postView, jobs []pageJob) map[int]bool {
	failed := map[int]bool{}
	if len(jobs) == 0 {
		return failed
	}

	renderCtx := ctx
	if s.cfg.RenderTimeout > 0 {
		var cancel context.CancelFunc
		renderCtx, cancel = context.WithTimeout(ctx, s.cfg.RenderTimeout)
		defer cancel()
	}

	list := make([]posts.Post, len(jobs))
	for i, job := range jobs {
		list[i] = job.post
	}
	batch := s.deps.Renderer.RenderAll(renderCtx, list, s.cfg.Workers)

	for i, job := range jobs {
		rendered := batch.Results[i]
		if rendered == nil {
			failed[job.view] = true
			b.result.PostsFailed++
			continue
		}
		view := views[job.view]
		view.HTML = rendered.HTML
		page, err := s.templates.Render(templatePost, s.pageData(site, "post", view))
		if err != nil {
			failed[job.view] = true
			b.result.PostsFailed++
			b.fail(fmt.Errorf("generator: post %s: %w", job.post.Slug, err))
			continue
		}
		art := Artifact{Path: job.path, Category: string(categoryPost), PostSlug: job.post.Slug, Checksum: job.checksum}
		if b.write(ctx, art, []byte(page), job.post.ID) {
			b.result.PostsBuilt++
		} else {
			failed[job.view] = true
			b.result.PostsFailed++
		}
	}
	for _, err := range batch.Errors {
		b.fail(err)
	}
	return failed
}

func (s *Service) writeIndex(ctx context.Context, b *build, site SiteMetadata, views []postView) {
	page, err := s.templates.Render(templateIndex, s.pageData(site, "posts", views))
	if err != nil {
		b.fail(fmt.Errorf("generator: index: %w", err))
		return
	}
	b.write(ctx, Artifact{Path: s.links.outputPath(site.IndexURL), Category: string(categoryIndex)}, []byte(page), uuid.Nil)
}

// pruneOrphans deletes post pages recorded in the manifest that are not in
// pages, the output paths of every post published by this build, together
// with their manifest entries.
func (s *Service) pruneOrphans(ctx context.Context, b *build, pages map[string]bool) {
	if b.dryRun || b.store == nil {
		return
	}
	entries, err := b.store.List(ctx)
	if err != nil {
		b.fail(fmt.Errorf("generator: list manifest: %w", err))
		return
	}
	for _, entry := range entries {
		if entry.PostID == uuid.Nil || pages[entry.Path] {
			continue
		}
		if err := b.writer.Remove(ctx, entry.Path); err != nil {
			b.fail(err)
			continue
		}
		if err := b.store.Delete(ctx, entry.Path); err != nil && !errors.Is(err, manifest.ErrNotFound) {
			b.fail(err)
			continue
		}
		b.result.PostsRemoved++
		s.logger.Info("orphaned post page removed", "path", entry.Path, "post_id", entry.PostID)
	}
}

// pageData is the template context of a page: site, theme and the page's
// own value under key.
func (s *Service) pageData(site SiteMetadata, key string, value any) map[string]any {
	return map[string]any{
		"site":  site,
		"theme": s.theme.view(s.cfg.BaseURL),
		key:     value,
	}
}

// copyAssets publishes the theme's static directory under static/ and the
// assets listed by its manifest under assets/.
func (s *Service) copyAssets(ctx context.Context, b *build) {
	themeDir := strings.TrimSpace(s.cfg.ThemeDir)
	if themeDir == "" {
		return
	}
	staticDir := filepath.Join(themeDir, "static")
	if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
		err := walkFiles(ctx, os.DirFS(staticDir), "static", func(rel string, content []byte) error {
			b.write(ctx, Artifact{Path: rel, Category: string(categoryAsset)}, content, uuid.Nil)
			return nil
		})
		if err != nil {
			b.fail(fmt.Errorf("generator: copy assets: %w", err))
		}
	}

	themeFS := os.DirFS(themeDir)
	for _, asset := range s.theme.assetPaths() {
		content, err := fs.ReadFile(themeFS, asset)
		if err != nil {
			b.fail(fmt.Errorf("generator: theme asset %s: %w", asset, err))
			continue
		}
		b.write(ctx, Artifact{Path: themeAssetPath(asset), Category: string(categoryAsset)}, content, uuid.Nil)
	}
}

func (s *Service) feedDocument(site SiteMetadata, views []postView) feedDocument {
	doc := feedDocument{Site: site, Updated: newest(views)}
	for _, view := range views {
		if s.cfg.FeedLimit > 0 && len(doc.Items) >= s.cfg.FeedLimit {
			break
		}
		author := view.Author
		if author == "" {
			author = site.Author
		}
		doc.Items = append(doc.Items, feedItem{
			Title:       view.Title,
			Summary:     view.Summary,
			Link:        view.URL,
			GUID:        "urn:uuid:" + view.ID.String(),
			Author:      author,
			Categories:  view.Tags,
			PublishedAt: view.PublishedAt,
		})
	}
	return doc
}

// RenderPage renders the full HTML page of the post with slug without
// writing it.
func (s *Service) RenderPage(ctx context.Context, slug string) (string, error) {
	post, ok := s.deps.Posts.Get(slug)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPostNotFound, slug)
	}
	site, err := s.siteMetadata()
	if err != nil {
		return "", err
	}
	link, err := s.links.post(post.Slug)
	if err != nil {
		return "", err
	}
	rendered, err := s.deps.Renderer.Render(ctx, post)
	if err != nil {
		return "", err
	}
	view := newPostView(post, link)
	view.HTML = rendered.HTML
	return s.templates.Render(templatePost, s.pageData(site, "post", view))
}

// Clean removes the output directory and forgets every manifest entry.
func (s *Service) Clean(ctx context.Context) error {
	dir := strings.TrimSpace(s.cfg.OutputDir)
	abs, err := filepath.Abs(dir)
	if dir == "" || err != nil || abs == filepath.Dir(abs) {
		return fmt.Errorf("%w: %q", errUnsafeOutputDir, dir)
	}
	if cwd, err := os.Getwd(); err == nil && abs == cwd {
		return fmt.Errorf("%w: %q", errUnsafeOutputDir, dir)
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("generator: clean %s: %w", dir, err)
	}
	if s.deps.Manifest == nil {
		return nil
	}
	entries, err := s.deps.Manifest.List(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, entry := range entries {
		if err := s.deps.Manifest.Delete(ctx, entry.Path); err != nil && !errors.Is(err, manifest.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	s.logger.Info("output cleaned", "dir", dir, "manifest_entries", len(entries))
	return errors.Join(errs...)
}

func (s *Service) publishedPosts(includeDrafts bool) []posts.Post {
	all := s.deps.Posts.Posts()
	out := make([]posts.Post, 0, len(all))
	for _, post := range all {
		if post.Meta.Draft && !includeDrafts {
			continue
		}
		out = append(out, post)
	}
	posts.SortNewestFirst(out)
	return out
}

func (s *Service) siteMetadata() (SiteMetadata, error) {
	index, err := s.links.index()
	if err != nil {
		return SiteMetadata{}, err
	}
	title := strings.TrimSpace(s.cfg.Title)
	if title == "" {
		title = baseURLWithFallback(s.cfg.BaseURL)
	}
	site := SiteMetadata{
		Title:       title,
		Description: strings.TrimSpace(s.cfg.Description),
		Author:      strings.TrimSpace(s.cfg.Author),
		Language:    strings.TrimSpace(s.cfg.Language),
		BaseURL:     baseURLWithFallback(s.cfg.BaseURL),
		IndexURL:    index,
	}
	if s.cfg.GenerateFeeds {
		site.FeedURL = absoluteURL(s.cfg.BaseURL, feedRSSPath)
		site.AtomURL = absoluteURL(s.cfg.BaseURL, feedAtomPath)
	}
	return site, nil
}

func (s *Service) templateHash() string {
	if hashed, ok := s.templates.(interface{ Hash() string }); ok {
		return hashed.Hash()
	}
	return ""
}

func (b *build) fail(err error) {
	if err != nil {
		b.result.Errors = append(b.result.Errors, err)
	}
}

// unchanged reports whether an incremental build may skip path.
func (b *build) unchanged(ctx context.Context, path, checksum string) bool {
	if !b.incremental || b.dryRun || b.store == nil {
		return false
	}
	same, err := manifest.Unchanged(ctx, b.store, path, checksum)
	if err != nil || !same {
		return false
	}
	return b.writer.Exists(ctx, path)
}

// write stores content at art.Path and records it in the manifest. Outputs
// without an input checksum are keyed by their content. It reports success.
func (b *build) write(ctx context.Context, art Artifact, content []byte, postID uuid.UUID) bool {
	art.Size = len(content)
	if art.Checksum == "" {
		sum := sha256.Sum256(content)
		art.Checksum = hex.EncodeToString(sum[:])
		if b.unchanged(ctx, art.Path, art.Checksum) {
			art.Skipped = true
			b.result.Artifacts = append(b.result.Artifacts, art)
			return true
		}
	}
	if err := b.writer.WriteFile(ctx, art.Path, content); err != nil {
		b.fail(err)
		return false
	}
	b.result.Artifacts = append(b.result.Artifacts, art)
	if b.dryRun || b.store == nil {
		return true
	}
	_, err := b.store.Put(ctx, &manifest.Entry{
		Path:     art.Path,
		PostID:   postID,
		Checksum: art.Checksum,
		Size:     int64(art.Size),
		BuiltAt:  b.now,
	})
	if err != nil {
		b.fail(fmt.Errorf("generator: manifest %s: %w", art.Path, err))
	}
	return true
}

func (b *build) finish(start time.Time) (*BuildResult, error) {
	b.result.Duration = time.Since(start)
	if len(b.result.Errors) > 0 {
		return b.result, errors.Join(b.result.Errors...)
	}
	return b.result, nil
}

func newest(views []postView) time.Time {
	var latest time.Time
	for _, view := range views {
		if view.PublishedAt.After(latest) {
			latest = view.PublishedAt
		}
	}
	return latest
}

func checksumOf(parts ...string) string {
	sum := sha256.New()
	for _, part := range parts {
		sum.Write([]byte(part))
		sum.Write([]byte{0})
	}
	return hex.EncodeToString(sum.Sum(nil))
}
