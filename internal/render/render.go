// Package render turns stored posts into HTML.
package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-blog/internal/logging"
	"github.com/goliatone/go-blog/internal/markdown"
	"github.com/goliatone/go-blog/internal/posts"
	"github.com/goliatone/go-blog/pkg/interfaces"
)

// ErrUnterminatedFence is wrapped by RenderError when a code fence is never closed.
var ErrUnterminatedFence = markdown.ErrUnterminatedFence

// RenderError reports why a single post could not be rendered.
type RenderError struct {
	Source string
	Slug   string
	// Line is the 1-based line within the post body, 0 when unknown.
	Line int
	Err  error
}

func (e *RenderError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("render: post %q (%s) line %d: %v", e.Slug, e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("render: post %q (%s): %v", e.Slug, e.Source, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Rendered is the HTML produced for one post.
type Rendered struct {
	Post posts.Post
	HTML string
	// Text is HTML with the markup stripped.
	Text     string
	Duration time.Duration
}

// Config tunes the renderer.
type Config struct {
	Options interfaces.ParseOptions
	// Workers bounds RenderAll concurrency when the caller passes zero.
	Workers int
}

// Renderer converts post bodies to HTML through a MarkdownParser.
type Renderer struct {
	parser  interfaces.MarkdownParser
	options interfaces.ParseOptions
	workers int
	logger  interfaces.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the renderer logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithParser replaces the default goldmark parser.
func WithParser(parser interfaces.MarkdownParser) Option {
	return func(r *Renderer) {
		if parser != nil {
			r.parser = parser
		}
	}
}

// New returns a Renderer backed by goldmark unless WithParser is given.
func New(cfg Config, opts ...Option) *Renderer {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	r := &Renderer{
		options: cfg.Options,
		workers: workers,
		logger:  logging.NoOp(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.parser == nil {
		r.parser = markdown.NewGoldmarkParser(cfg.Options)
	}
	return r
}

// Render converts post.Body to HTML. Fenced code keeps its language tag and
// is emitted escaped. An unclosed fence yields a *RenderError wrapping
// ErrUnterminatedFence.
func (r *Renderer) Render(ctx context.Context, post posts.Post) (*Rendered, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	fail := func(line int, err error) (*Rendered, error) {
		return nil, &RenderError{Source: post.Source, Slug: post.Slug, Line: line, Err: err}
	}

	body := []byte(post.Body)
	if err := markdown.ValidateFences(body); err != nil {
		line := 0
		var fenceErr *markdown.FenceError
		if errors.As(err, &fenceErr) {
			line = fenceErr.Fence.Line
		}
		return fail(line, err)
	}

	html, err := r.parser.ParseWithOptions(body, r.options)
	if err != nil {
		return fail(0, err)
	}

	return &Rendered{
		Post:     post.Clone(),
		HTML:     string(html),
		Text:     markdown.StripMarkup(html),
		Duration: time.Since(start),
	}, nil
}

// BatchResult holds the outcome of RenderAll. Results[i] belongs to the i-th
// input post and is nil when that post failed.
type BatchResult struct {
	Results []*Rendered
	Errors  []error
}

// Err joins the collected errors.
func (b *BatchResult) Err() error {
	if b == nil {
		return nil
	}
	return errors.Join(b.Errors...)
}

// Succeeded returns the rendered posts in input order, skipping failures.
func (b *BatchResult) Succeeded() []*Rendered {
	out := make([]*Rendered, 0, len(b.Results))
	for _, rendered := range b.Results {
		if rendered != nil {
			out = append(out, rendered)
		}
	}
	return out
}

// RenderAll renders posts concurrently with at most workers goroutines
// (the configured default when workers <= 0). A failing post never stops the
// others; its error is recorded and its result slot stays nil.
func (r *Renderer) RenderAll(ctx context.Context, list []posts.Post, workers int) *BatchResult {
	if workers <= 0 {
		workers = r.workers
	}
	workers = min(workers, max(len(list), 1))

	results := make([]*Rendered, len(list))
	errs := make([]error, len(list))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				post := list[idx]
				rendered, err := r.Render(ctx, post)
				if err != nil {
					logging.WithPostContext(r.logger, post.Source, post.Slug, post.Index).
						Warn("post render failed", "error", err)
					errs[idx] = err
					continue
				}
				results[idx] = rendered
			}
		}()
	}

dispatch:
	for idx := range list {
		select {
		case <-ctx.Done():
			for rest := idx; rest < len(list); rest++ {
				errs[rest] = ctx.Err()
			}
			break dispatch
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	batch := &BatchResult{Results: results}
	for _, err := range errs {
		if err != nil {
			batch.Errors = append(batch.Errors, err)
		}
	}
	r.logger.Debug("batch rendered", "posts", len(list), "errors", len(batch.Errors))
	return batch
}
