package markdown

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/adrg/frontmatter"
)

// ErrFrontMatter marks frontmatter blocks that could not be decoded.
var ErrFrontMatter = errors.New("markdown: invalid frontmatter")

// FrontMatter is the optional metadata block at the top of a post source.
type FrontMatter struct {
	Title   string         `yaml:"title" json:"title,omitempty"`
	Slug    string         `yaml:"slug" json:"slug,omitempty"`
	Summary string         `yaml:"summary" json:"summary,omitempty"`
	Author  string         `yaml:"author" json:"author,omitempty"`
	Tags    []string       `yaml:"tags" json:"tags,omitempty"`
	Date    time.Time      `yaml:"date" json:"date,omitempty"`
	Draft   bool           `yaml:"draft" json:"draft,omitempty"`
	Custom  map[string]any `yaml:",inline" json:"custom,omitempty"`
	// Raw holds every decoded key, known or custom.
	Raw map[string]any `yaml:"-" json:"-"`
}

// Empty reports whether no frontmatter keys were decoded.
func (fm FrontMatter) Empty() bool {
	return len(fm.Raw) == 0
}

// Clone returns a deep copy of the top-level collections.
func (fm FrontMatter) Clone() FrontMatter {
	out := fm
	out.Tags = append([]string(nil), fm.Tags...)
	out.Custom = maps.Clone(fm.Custom)
	out.Raw = maps.Clone(fm.Raw)
	return out
}

// ParseFrontMatter splits an optional YAML (---) or TOML (+++) frontmatter
// block from source. Sources without frontmatter are returned unchanged with
// an empty FrontMatter.
func ParseFrontMatter(source []byte) (FrontMatter, []byte, error) {
	var fm FrontMatter
	body, err := frontmatter.Parse(bytes.NewReader(source), &fm)
	if err != nil {
		return FrontMatter{}, nil, fmt.Errorf("%w: %w", ErrFrontMatter, err)
	}
	fm.Raw = rawFrontMatter(fm)
	return fm, body, nil
}

func rawFrontMatter(fm FrontMatter) map[string]any {
	raw := maps.Clone(fm.Custom)
	if raw == nil {
		raw = map[string]any{}
	}
	set := func(key string, value any, present bool) {
		if present {
			raw[key] = value
		}
	}
	set("title", fm.Title, fm.Title != "")
	set("slug", fm.Slug, fm.Slug != "")
	set("summary", fm.Summary, fm.Summary != "")
	set("author", fm.Author, fm.Author != "")
	set("tags", append([]string(nil), fm.Tags...), len(fm.Tags) > 0)
	set("date", fm.Date, !fm.Date.IsZero())
	set("draft", fm.Draft, fm.Draft)
	return raw
}
