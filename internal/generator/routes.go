package generator

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	urlkit "github.com/goliatone/go-urlkit"
)

const (
	RouteGroup = "blog"
	RoutePost  = "post"
	RouteIndex = "index"
)

// NewRouteManager returns the default route table: posts under
// /posts/:slug and the index at the site root.
func NewRouteManager(baseURL string) *urlkit.RouteManager {
	return urlkit.NewRouteManager(&urlkit.Config{
		Groups: []urlkit.GroupConfig{
			{
				Name:    RouteGroup,
				BaseURL: baseURLWithFallback(baseURL),
				Paths: map[string]string{
					RoutePost:  "/posts/:slug",
					RouteIndex: "/",
				},
			},
		},
	})
}

// permalinks builds absolute URLs and maps them to output paths.
type permalinks struct {
	manager  *urlkit.RouteManager
	basePath string
}

func newPermalinks(manager *urlkit.RouteManager, baseURL string) permalinks {
	basePath := ""
	if parsed, err := url.Parse(baseURLWithFallback(baseURL)); err == nil {
		basePath = strings.Trim(parsed.Path, "/")
	}
	return permalinks{manager: manager, basePath: basePath}
}

func (p permalinks) post(slug string) (string, error) {
	return p.build(RoutePost, map[string]any{"slug": slug})
}

func (p permalinks) index() (string, error) {
	return p.build(RouteIndex, nil)
}

// build recovers from urlkit panics raised for unknown groups or routes.
func (p permalinks) build(route string, params map[string]any) (link string, err error) {
	if p.manager == nil {
		return "", fmt.Errorf("generator: route manager not configured")
	}
	defer func() {
		if rec := recover(); rec != nil {
			link, err = "", fmt.Errorf("generator: route %s.%s: %v", RouteGroup, route, rec)
		}
	}()
	builder := p.manager.Group(RouteGroup).Builder(route)
	for key, value := range params {
		builder.WithParam(key, value)
	}
	return builder.Build()
}

// outputPath maps a permalink to the file serving it, e.g.
// https://example.com/posts/intro -> posts/intro/index.html.
func (p permalinks) outputPath(link string) string {
	route := link
	if parsed, err := url.Parse(link); err == nil {
		route = parsed.Path
	}
	clean := strings.Trim(path.Clean("/"+route), "/")
	if p.basePath != "" {
		clean = strings.Trim(strings.TrimPrefix(clean, p.basePath), "/")
	}
	if clean == "" {
		return "index.html"
	}
	if path.Ext(clean) != "" {
		return clean
	}
	return path.Join(clean, "index.html")
}

func baseURLWithFallback(base string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(base), "/")
	if trimmed == "" {
		return "http://localhost"
	}
	return trimmed
}

func absoluteURL(base, route string) string {
	targetBase := baseURLWithFallback(base)
	normalized := strings.TrimSpace(route)
	if normalized == "" {
		return targetBase
	}
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	return targetBase + normalized
}
