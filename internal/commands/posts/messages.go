package postscmd

import (
	"path"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	loadPostsMessageType  = "blog.posts.load"
	renderPostMessageType = "blog.posts.render"
	buildSiteMessageType  = "blog.site.build"
)

var notBlank = validation.By(func(value any) error {
	if s, _ := value.(string); strings.TrimSpace(s) == "" {
		return validation.NewError("blog.value_blank", "cannot be blank")
	}
	return nil
})

var globPattern = validation.By(func(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := path.Match(strings.TrimPrefix(s, "**/"), "x"); err != nil {
		return validation.NewError("blog.posts.load.pattern_invalid", "pattern is not a valid glob")
	}
	return nil
})

// LoadPostsCommand loads every matching Markdown source under Directory into
// the post store. Directory is relative to the content root.
type LoadPostsCommand struct {
	Directory string `json:"directory"`
	// Pattern overrides the configured glob, e.g. "*.md".
	Pattern   string `json:"pattern,omitempty"`
	Recursive bool   `json:"recursive,omitempty"`
}

// Type implements command.Message.
func (LoadPostsCommand) Type() string { return loadPostsMessageType }

// Validate ensures directory input is present before handlers execute.
func (cmd LoadPostsCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.Directory, validation.Required, notBlank),
		validation.Field(&cmd.Pattern, globPattern),
	)
}

// RenderPostCommand renders a single loaded post. With Page set the full
// themed page is produced instead of the HTML fragment.
type RenderPostCommand struct {
	Slug string `json:"slug"`
	Page bool   `json:"page,omitempty"`
}

// Type implements command.Message.
func (RenderPostCommand) Type() string { return renderPostMessageType }

func (cmd RenderPostCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.Slug, validation.Required, notBlank, validation.By(func(value any) error {
			if strings.ContainsAny(value.(string), " /\t\n") {
				return validation.NewError("blog.posts.render.slug_invalid", "slug cannot contain spaces or slashes")
			}
			return nil
		})),
	)
}

// BuildSiteCommand generates the static site.
type BuildSiteCommand struct {
	// OutputDir overrides the configured output directory.
	OutputDir     string   `json:"output_dir,omitempty"`
	Incremental   bool     `json:"incremental,omitempty"`
	DryRun        bool     `json:"dry_run,omitempty"`
	IncludeDrafts bool     `json:"include_drafts,omitempty"`
	Slugs         []string `json:"slugs,omitempty"`
}

// Type implements command.Message.
func (BuildSiteCommand) Type() string { return buildSiteMessageType }

func (cmd BuildSiteCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.Slugs, validation.Each(validation.Required, notBlank)),
	)
}
