package generator

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-blog/pkg/interfaces"
)

const (
	templatePost  = "post.html"
	templateIndex = "index.html"
)

var templateNames = []string{"base.html", templatePost, templateIndex}

//go:embed templates/*.html
var embeddedTemplates embed.FS

// TemplateSet renders pongo2 templates. Files in the theme directory take
// precedence over the embedded defaults with the same name. A go-theme
// manifest in the theme directory may point page templates at other files.
type TemplateSet struct {
	set   *pongo2.TemplateSet
	theme *blogTheme
	hash  string
	cache sync.Map // name -> *pongo2.Template
}

var _ interfaces.TemplateRenderer = (*TemplateSet)(nil)

// TemplateOption configures NewTemplateSet.
type TemplateOption func(*templateOptions)

type templateOptions struct {
	variant string
	loader  ThemeManifestLoader
}

// WithThemeVariant selects a variant of the theme manifest.
func WithThemeVariant(variant string) TemplateOption {
	return func(o *templateOptions) {
		o.variant = strings.TrimSpace(variant)
	}
}

// WithThemeManifestLoader replaces the go-theme directory loader.
func WithThemeManifestLoader(loader ThemeManifestLoader) TemplateOption {
	return func(o *templateOptions) {
		if loader != nil {
			o.loader = loader
		}
	}
}

// NewTemplateSet loads the embedded templates, overlaid by themeDir when set.
func NewTemplateSet(themeDir string, opts ...TemplateOption) (*TemplateSet, error) {
	options := templateOptions{loader: fsThemeManifestLoader{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	embedded, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		return nil, err
	}

	// Both loaders must resolve names relative to their root: pongo2 resolves
	// extends and include targets through the first loader.
	var (
		loaders []pongo2.TemplateLoader
		theme   *blogTheme
	)
	themeDir = strings.TrimSpace(themeDir)
	if themeDir != "" {
		info, err := os.Stat(themeDir)
		if err != nil {
			return nil, fmt.Errorf("generator: theme directory %s: %w", themeDir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("generator: theme directory %s: not a directory", themeDir)
		}
		if theme, err = selectTheme(options.loader, themeDir, options.variant); err != nil {
			return nil, err
		}
		loaders = append(loaders, fsLoader{fs: os.DirFS(themeDir)})
	}
	loaders = append(loaders, fsLoader{fs: embedded})

	hash, err := hashTemplates(themeDir, embedded, theme)
	if err != nil {
		return nil, err
	}
	return &TemplateSet{
		set:   pongo2.NewSet("blog", loaders...),
		theme: theme,
		hash:  hash,
	}, nil
}

// Hash identifies the effective template sources.
func (t *TemplateSet) Hash() string {
	return t.hash
}

func (t *TemplateSet) Render(name string, data map[string]any, out ...io.Writer) (string, error) {
	tpl, err := t.template(name)
	if err != nil {
		return "", err
	}
	return execute(tpl, data, out)
}

// template parses name, as resolved by the theme, once and caches it.
func (t *TemplateSet) template(name string) (*pongo2.Template, error) {
	name = t.theme.template(name)
	if cached, ok := t.cache.Load(name); ok {
		return cached.(*pongo2.Template), nil
	}
	tpl, err := t.set.FromFile(name)
	if err != nil {
		return nil, fmt.Errorf("generator: load template %s: %w", name, err)
	}
	t.cache.Store(name, tpl)
	return tpl, nil
}

func (t *TemplateSet) RenderString(content string, data map[string]any, out ...io.Writer) (string, error) {
	tpl, err := t.set.FromString(content)
	if err != nil {
		return "", fmt.Errorf("generator: parse template: %w", err)
	}
	return execute(tpl, data, out)
}

func execute(tpl *pongo2.Template, data map[string]any, out []io.Writer) (string, error) {
	rendered, err := tpl.Execute(pongo2.Context(data))
	if err != nil {
		return "", fmt.Errorf("generator: execute template: %w", err)
	}
	for _, w := range out {
		if w == nil {
			continue
		}
		if _, err := io.WriteString(w, rendered); err != nil {
			return "", err
		}
	}
	return rendered, nil
}

// fsLoader serves templates from an fs.FS. Names resolve from the FS root
// regardless of the including template.
type fsLoader struct {
	fs fs.FS
}

func (l fsLoader) Abs(_, name string) string {
	return strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(name)), "/")
}

func (l fsLoader) Get(name string) (io.Reader, error) {
	data, err := fs.ReadFile(l.fs, name)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func hashTemplates(themeDir string, embedded fs.FS, theme *blogTheme) (string, error) {
	sum := sha256.New()
	for _, logical := range templateNames {
		name := theme.template(logical)
		var data []byte
		if themeDir != "" {
			if themed, err := os.ReadFile(filepath.Join(themeDir, filepath.FromSlash(name))); err == nil {
				data = themed
			}
		}
		if data == nil {
			embeddedData, err := fs.ReadFile(embedded, name)
			if err != nil {
				return "", fmt.Errorf("generator: read template %s: %w", name, err)
			}
			data = embeddedData
		}
		sum.Write([]byte(name))
		sum.Write(data)
	}
	for _, part := range theme.hashParts() {
		sum.Write([]byte(part))
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}
