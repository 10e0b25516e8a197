package generator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	gotheme "github.com/goliatone/go-theme"
)

// ThemeManifestLoader reads the go-theme manifest of a theme directory.
type ThemeManifestLoader interface {
	Load(themeDir string) (*gotheme.Manifest, error)
}

// themeManifestFiles are the manifest names go-theme reads from a theme root.
var themeManifestFiles = []string{"theme.json", "theme.yaml", "theme.yml"}

type fsThemeManifestLoader struct{}

// Load returns fs.ErrNotExist when the directory carries no manifest, which
// leaves the theme as plain template overrides.
func (fsThemeManifestLoader) Load(themeDir string) (*gotheme.Manifest, error) {
	cleaned := filepath.Clean(strings.TrimSpace(themeDir))
	if cleaned == "" || cleaned == "." {
		return nil, fmt.Errorf("generator: theme directory required")
	}
	root := os.DirFS(cleaned)
	for _, name := range themeManifestFiles {
		if _, err := fs.Stat(root, name); err == nil {
			return gotheme.LoadDir(root, ".")
		}
	}
	return nil, fmt.Errorf("generator: theme manifest in %s: %w", cleaned, fs.ErrNotExist)
}

// themeView is exposed to templates as "theme".
type themeView struct {
	Name    string
	Variant string
	Tokens  map[string]string
	CSSVars map[string]string
	// Assets maps manifest asset keys to their published URL path.
	Assets map[string]string
}

// blogTheme is the manifest selection of the configured theme directory.
type blogTheme struct {
	selection *gotheme.Selection
	// assets maps asset keys to paths relative to the theme directory.
	assets map[string]string
}

// selectTheme loads and registers the manifest of themeDir and selects
// variant. A directory without a manifest yields nil.
func selectTheme(loader ThemeManifestLoader, themeDir, variant string) (*blogTheme, error) {
	if loader == nil {
		loader = fsThemeManifestLoader{}
	}
	manifest, err := loader.Load(themeDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("generator: load theme manifest from %s: %w", themeDir, err)
	}
	if manifest == nil {
		return nil, nil
	}

	normalized := *manifest
	if strings.TrimSpace(normalized.Name) == "" {
		normalized.Name = filepath.Base(filepath.Clean(themeDir))
	}
	if strings.TrimSpace(normalized.Version) == "" {
		normalized.Version = "0.0.0"
	}

	registry := gotheme.NewRegistry()
	if err := registry.Register(&normalized); err != nil {
		return nil, fmt.Errorf("generator: register theme %s: %w", normalized.Name, err)
	}
	variant = strings.TrimSpace(variant)
	selector := gotheme.Selector{
		Registry:       registry,
		DefaultTheme:   normalized.Name,
		DefaultVariant: variant,
	}
	selection, err := selector.Select(normalized.Name, variant)
	if err != nil {
		return nil, fmt.Errorf("generator: select theme %s: %w", normalized.Name, err)
	}
	return &blogTheme{selection: selection, assets: manifestAssets(selection)}, nil
}

// template resolves the theme file for a page template, name when the
// manifest does not override it.
func (t *blogTheme) template(name string) string {
	if t == nil || t.selection == nil {
		return name
	}
	key := strings.TrimSuffix(name, path.Ext(name))
	resolved := strings.TrimPrefix(filepath.ToSlash(strings.TrimSpace(t.selection.Template(key, name))), "/")
	if resolved == "" {
		return name
	}
	return resolved
}

// assetPaths lists the manifest assets, sorted.
func (t *blogTheme) assetPaths() []string {
	if t == nil {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, asset := range t.assets {
		if !seen[asset] {
			seen[asset] = true
			out = append(out, asset)
		}
	}
	sort.Strings(out)
	return out
}

func (t *blogTheme) view(baseURL string) themeView {
	view := themeView{
		Tokens:  map[string]string{},
		CSSVars: map[string]string{},
		Assets:  map[string]string{},
	}
	if t == nil || t.selection == nil {
		return view
	}
	view.Name = t.selection.Theme
	view.Variant = t.selection.Variant
	for key, value := range t.selection.Tokens() {
		view.Tokens[key] = value
	}
	for key, value := range t.selection.CSSVariables("blog") {
		view.CSSVars[key] = value
	}
	for key, asset := range t.assets {
		view.Assets[key] = absoluteURL(baseURL, themeAssetPath(asset))
	}
	return view
}

// hashParts identifies the selection for incremental builds.
func (t *blogTheme) hashParts() []string {
	if t == nil || t.selection == nil {
		return nil
	}
	parts := []string{t.selection.Theme, t.selection.Variant}
	keys := make([]string, 0, len(t.assets))
	for key := range t.assets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		parts = append(parts, key+"="+t.assets[key])
	}
	return parts
}

// themeAssetPath is where a manifest asset is published.
func themeAssetPath(asset string) string {
	return path.Join("assets", asset)
}

// manifestAssets merges the base asset files with those of the selected
// variant.
func manifestAssets(selection *gotheme.Selection) map[string]string {
	out := map[string]string{}
	if selection == nil || selection.Manifest == nil {
		return out
	}
	add := func(files map[string]string) {
		for key, asset := range files {
			asset = path.Clean(strings.TrimPrefix(filepath.ToSlash(strings.TrimSpace(asset)), "/"))
			if asset == "." || asset == ".." || strings.HasPrefix(asset, "../") {
				continue
			}
			out[key] = asset
		}
	}
	add(selection.Manifest.Assets.Files)
	if variant := strings.TrimSpace(selection.Variant); variant != "" {
		if v, ok := selection.Manifest.Variants[variant]; ok {
			add(v.Assets.Files)
		}
	}
	return out
}
