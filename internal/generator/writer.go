package generator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type writeCategory string

const (
	categoryPost    writeCategory = "post"
	categoryIndex   writeCategory = "index"
	categoryAsset   writeCategory = "asset"
	categorySitemap writeCategory = "sitemap"
	categoryRobots  writeCategory = "robots"
	categoryFeed    writeCategory = "feed"
)

// artifactWriter abstracts where generator outputs land.
type artifactWriter interface {
	WriteFile(ctx context.Context, path string, content []byte) error
	Exists(ctx context.Context, path string) bool
	Remove(ctx context.Context, path string) error
}

// dirWriter writes below a root directory on the local filesystem. Files are
// written to a temporary sibling first and renamed into place.
type dirWriter struct {
	root string
}

func (w dirWriter) WriteFile(ctx context.Context, rel string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := w.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("generator: mkdir %s: %w", filepath.Dir(target), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return fmt.Errorf("generator: write %s: %w", rel, err)
	}
	_, writeErr := tmp.Write(content)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("generator: write %s: %w", rel, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("generator: chmod %s: %w", rel, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("generator: rename %s: %w", rel, err)
	}
	return nil
}

func (w dirWriter) Exists(_ context.Context, rel string) bool {
	target, err := w.resolve(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(target)
	return err == nil && !info.IsDir()
}

// Remove deletes rel and the directories it leaves empty below the root. A
// missing file is not an error.
func (w dirWriter) Remove(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := w.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("generator: remove %s: %w", rel, err)
	}
	root := filepath.Clean(w.root)
	for dir := filepath.Dir(target); strings.HasPrefix(dir, root+string(filepath.Separator)); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}

func (w dirWriter) resolve(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(rel)))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("generator: invalid output path %q", rel)
	}
	return filepath.Join(w.root, clean), nil
}

// dryRunWriter records outputs without touching the filesystem.
type dryRunWriter struct {
	mu      sync.Mutex
	written map[string]int
}

func newDryRunWriter() *dryRunWriter {
	return &dryRunWriter{written: map[string]int{}}
}

func (w *dryRunWriter) WriteFile(ctx context.Context, rel string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written[rel] = len(content)
	return nil
}

func (w *dryRunWriter) Exists(context.Context, string) bool { return false }

func (w *dryRunWriter) Remove(context.Context, string) error { return nil }

// walkFiles calls visit with every regular file of src, its path prefixed.
func walkFiles(ctx context.Context, src fs.FS, prefix string, visit func(rel string, content []byte) error) error {
	return fs.WalkDir(src, ".", func(current string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		data, err := fs.ReadFile(src, current)
		if err != nil {
			return err
		}
		return visit(prefix+"/"+current, data)
	})
}
