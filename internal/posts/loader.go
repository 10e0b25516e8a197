package posts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// LoaderConfig configures how post sources are discovered.
type LoaderConfig struct {
	// Pattern limits discovered files to those matching the glob (defaults to "*.md").
	Pattern string
	// Recursive controls whether sub-directories are traversed.
	Recursive bool
}

// Loader feeds Markdown files from a filesystem into a Store.
type Loader struct {
	store     *Store
	fs        fs.FS
	pattern   string
	recursive bool
}

// LoadResult summarises a directory load.
type LoadResult struct {
	// Sources lists the files read, in the order they were loaded.
	Sources []string
	Posts   []Post
	// Errors holds one entry per rejected post or unreadable file.
	Errors []error
}

// Err joins every collected error.
func (r *LoadResult) Err() error {
	if r == nil {
		return nil
	}
	return errors.Join(r.Errors...)
}

// NewLoader returns a Loader reading from filesystem into store.
func NewLoader(store *Store, filesystem fs.FS, cfg LoaderConfig) *Loader {
	pattern := strings.TrimSpace(cfg.Pattern)
	if pattern == "" {
		pattern = "*.md"
	}
	return &Loader{
		store:     store,
		fs:        filesystem,
		pattern:   pattern,
		recursive: cfg.Recursive,
	}
}

// LoadFile loads every post of one file.
func (l *Loader) LoadFile(ctx context.Context, name string) ([]Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = cleanPath(name)
	data, err := fs.ReadFile(l.fs, name)
	if err != nil {
		return nil, fmt.Errorf("posts loader read %s: %w", name, err)
	}
	return l.store.LoadBytes(ctx, name, data)
}

// LoadDirectory loads every matching file under dir in lexical order. Parse
// and read failures are collected in the result; only context cancellation
// and walk failures abort the load.
func (l *Loader) LoadDirectory(ctx context.Context, dir string) (*LoadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := cleanPath(dir)

	var files []string
	walkErr := fs.WalkDir(l.fs, root, func(current string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if current != root && !l.recursive {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.matches(current) {
			files = append(files, current)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("posts loader walk %s: %w", root, walkErr)
	}
	sort.Strings(files)

	result := &LoadResult{}
	for _, file := range files {
		posts, err := l.LoadFile(ctx, file)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		result.Sources = append(result.Sources, file)
		result.Posts = append(result.Posts, posts...)
		if err != nil {
			result.Errors = append(result.Errors, unjoin(err)...)
		}
	}
	return result, nil
}

func (l *Loader) matches(name string) bool {
	pattern := filepath.ToSlash(l.pattern)
	// Basic support for ** by stripping repeated separators.
	pattern = strings.ReplaceAll(pattern, "**/", "")
	target := path.Base(name)
	if strings.Contains(pattern, "/") {
		target = name
	}
	match, err := path.Match(pattern, target)
	return err == nil && match
}

func cleanPath(name string) string {
	name = path.Clean(filepath.ToSlash(strings.TrimSpace(name)))
	if name == "" || name == "/" {
		return "."
	}
	return strings.TrimPrefix(name, "/")
}

func unjoin(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
