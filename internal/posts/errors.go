package posts

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-blog/internal/markdown"
	"github.com/goliatone/go-blog/internal/validation"
)

var (
	// ErrMissingTitle is reported for a post without a level-1 heading.
	ErrMissingTitle = errors.New("posts: missing title heading")
	// ErrInvalidDate is reported when a publish annotation names a day that
	// does not exist.
	ErrInvalidDate = errors.New("posts: invalid published date")
	// ErrFrontMatter is reported when the frontmatter block cannot be decoded.
	ErrFrontMatter = markdown.ErrFrontMatter
	// ErrSchemaValidation is reported when frontmatter fails the configured schema.
	ErrSchemaValidation = validation.ErrSchemaValidation
)

// ParseError describes why one post of a source was rejected.
type ParseError struct {
	Source string
	// Index is the position of the post within Source.
	Index int
	// Line is the 1-based line where the problem was found, 0 when unknown.
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	location := e.Source
	if location == "" {
		location = "<input>"
	}
	if e.Line > 0 {
		location = fmt.Sprintf("%s:%d", location, e.Line)
	}
	return fmt.Sprintf("posts: parse %s (post %d): %v", location, e.Index, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseErrors extracts every *ParseError joined into err.
func ParseErrors(err error) []*ParseError {
	if err == nil {
		return nil
	}
	var out []*ParseError
	var walk func(error)
	walk = func(current error) {
		if current == nil {
			return
		}
		var parseErr *ParseError
		if pe, ok := current.(*ParseError); ok {
			out = append(out, pe)
			return
		}
		if joined, ok := current.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		if errors.As(current, &parseErr) {
			out = append(out, parseErr)
		}
	}
	walk(err)
	return out
}
