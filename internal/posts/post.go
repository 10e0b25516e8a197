// Package posts loads Markdown blog posts into an in-memory store.
//
// A source holds one or more posts separated by a delimiter line. Each post
// starts with a level-1 heading (its title), may carry an "Originally
// published" block-quote annotation, and keeps the rest as its body.
package posts

import (
	"slices"
	"time"

	"github.com/goliatone/go-blog/internal/markdown"
	"github.com/google/uuid"
)

// Post is one parsed article. Values handed out by the Store are copies, so
// callers may not affect the stored post through them.
type Post struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
	Slug  string    `json:"slug"`
	// PublishedDate is midnight UTC of the annotated day, or the zero time.
	PublishedDate time.Time `json:"published_date,omitzero"`
	// Body is the Markdown left after the title and date annotation are
	// removed, without leading or trailing blank lines.
	Body   string           `json:"body"`
	Blocks []markdown.Block `json:"blocks"`

	Source string `json:"source"`
	Index  int    `json:"index"`
	// Line is the 1-based line within Source where the post segment starts.
	Line     int       `json:"line"`
	Checksum string    `json:"checksum"`
	Meta     Meta      `json:"meta"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Meta carries the optional frontmatter of a post.
type Meta struct {
	Summary string         `json:"summary,omitempty"`
	Author  string         `json:"author,omitempty"`
	Tags    []string       `json:"tags,omitempty"`
	Draft   bool           `json:"draft,omitempty"`
	Custom  map[string]any `json:"custom,omitempty"`
}

// HasPublishedDate reports whether a publish date was found.
func (p Post) HasPublishedDate() bool {
	return !p.PublishedDate.IsZero()
}

// PlainText returns the body text without Markdown syntax, one block per line.
func (p Post) PlainText() string {
	return markdown.PlainText(p.Blocks)
}

// Clone returns a deep copy of p.
func (p Post) Clone() Post {
	out := p
	if p.Blocks != nil {
		out.Blocks = make([]markdown.Block, len(p.Blocks))
		for i, block := range p.Blocks {
			out.Blocks[i] = block.Clone()
		}
	}
	out.Meta.Tags = slices.Clone(p.Meta.Tags)
	out.Meta.Custom = cloneValue(p.Meta.Custom)
	return out
}

func cloneValue[T any](value T) T {
	cloned, _ := deepCopy(any(value)).(T)
	return cloned
}

func deepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		if v == nil {
			return v
		}
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = deepCopy(item)
		}
		return out
	case map[any]any:
		if v == nil {
			return v
		}
		out := make(map[any]any, len(v))
		for key, item := range v {
			out[key] = deepCopy(item)
		}
		return out
	case []any:
		if v == nil {
			return v
		}
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = deepCopy(item)
		}
		return out
	case []string:
		return slices.Clone(v)
	default:
		return v
	}
}
