package posts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-blog/internal/logging"
	"github.com/goliatone/go-blog/internal/validation"
	"github.com/goliatone/go-blog/pkg/interfaces"
	"github.com/google/uuid"
)

// Store holds loaded posts in load order. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	posts  []Post
	byID   map[uuid.UUID]int
	bySlug map[string]int

	delimiter string
	parser    segmentParser
	logger    interfaces.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for load diagnostics.
func WithLogger(logger interfaces.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDelimiter overrides the line separating posts within one source. An
// empty delimiter treats every source as a single post.
func WithDelimiter(delimiter string) Option {
	return func(s *Store) {
		s.delimiter = strings.TrimSpace(delimiter)
	}
}

// WithFrontMatterSchema validates every post's frontmatter against schema.
func WithFrontMatterSchema(schema *validation.FrontMatterSchema) Option {
	return func(s *Store) {
		s.parser.schema = schema
	}
}

// WithClock overrides the clock stamping Post.LoadedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.parser.now = now
		}
	}
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		byID:      map[uuid.UUID]int{},
		bySlug:    map[string]int{},
		delimiter: DefaultDelimiter,
		parser:    segmentParser{now: time.Now},
		logger:    logging.NoOp(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Load parses every post in r and adds the valid ones to the store. name
// identifies the source in errors and post IDs. Posts that fail to parse are
// reported as *ParseError values joined into the returned error; they never
// prevent the remaining posts from loading. Loading a source again replaces
// its previously loaded posts in place.
func (s *Store) Load(ctx context.Context, name string, r io.Reader) ([]Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("posts: read %s: %w", name, err)
	}
	return s.LoadBytes(ctx, name, data)
}

// LoadBytes is Load for an in-memory source.
func (s *Store) LoadBytes(ctx context.Context, name string, data []byte) ([]Post, error) {
	logger := logging.WithPostContext(s.logger, name, "", -1)

	var (
		parsed []Post
		errs   []error
	)
	for _, seg := range splitSegments(string(data), s.delimiter) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		post, err := s.parser.parse(name, seg)
		if err != nil {
			logger.Warn("post rejected", "post_index", seg.index, "error", err)
			errs = append(errs, err)
			continue
		}
		parsed = append(parsed, post)
	}

	added, dropped := s.replaceSource(name, parsed)
	logger.Debug("source loaded", "posts", len(added), "dropped", dropped, "errors", len(errs))
	return added, errors.Join(errs...)
}

// replaceSource stores parsed as the current posts of source. Posts of the
// source missing from parsed are dropped, freeing their slugs. It returns
// copies of the stored posts and the number dropped.
func (s *Store) replaceSource(source string, parsed []Post) ([]Post, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := make(map[uuid.UUID]bool, len(parsed))
	for _, post := range parsed {
		current[post.ID] = true
	}
	before := len(s.posts)
	s.posts = slices.DeleteFunc(s.posts, func(post Post) bool {
		return post.Source == source && !current[post.ID]
	})
	dropped := before - len(s.posts)
	if dropped > 0 {
		s.reindex()
	}

	out := make([]Post, 0, len(parsed))
	for _, post := range parsed {
		if idx, ok := s.byID[post.ID]; ok {
			previous := s.posts[idx]
			delete(s.bySlug, previous.Slug)
			post.Slug = s.uniqueSlug(post.Slug)
			s.posts[idx] = post
			s.bySlug[post.Slug] = idx
		} else {
			post.Slug = s.uniqueSlug(post.Slug)
			s.posts = append(s.posts, post)
			s.byID[post.ID] = len(s.posts) - 1
			s.bySlug[post.Slug] = len(s.posts) - 1
		}
		out = append(out, post.Clone())
	}
	return out, dropped
}

// reindex rebuilds the lookup maps from s.posts. Callers hold s.mu.
func (s *Store) reindex() {
	clear(s.byID)
	clear(s.bySlug)
	for idx, post := range s.posts {
		s.byID[post.ID] = idx
		s.bySlug[post.Slug] = idx
	}
}

// uniqueSlug appends -2, -3, ... until base is free. Callers hold s.mu.
func (s *Store) uniqueSlug(base string) string {
	if _, taken := s.bySlug[base]; !taken {
		return base
	}
	for n := 2; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if _, taken := s.bySlug[candidate]; !taken {
			return candidate
		}
	}
}

// All yields copies of the stored posts in load order. The sequence reflects
// the store at the moment iteration starts and may be ranged over repeatedly.
func (s *Store) All() iter.Seq[Post] {
	return func(yield func(Post) bool) {
		for _, post := range s.snapshot() {
			if !yield(post.Clone()) {
				return
			}
		}
	}
}

// Posts returns copies of the stored posts in load order.
func (s *Store) Posts() []Post {
	snapshot := s.snapshot()
	out := make([]Post, len(snapshot))
	for i, post := range snapshot {
		out[i] = post.Clone()
	}
	return out
}

// Len reports the number of stored posts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

// Get returns the post with slug.
func (s *Store) Get(slug string) (Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.bySlug[strings.TrimSpace(slug)]
	if !ok {
		return Post{}, false
	}
	return s.posts[idx].Clone(), true
}

// Newest returns copies of the stored posts, most recently published first.
// Undated posts follow dated ones; ties keep load order.
func (s *Store) Newest() []Post {
	out := s.Posts()
	SortNewestFirst(out)
	return out
}

// SortNewestFirst orders posts by publish date, newest first, keeping load
// order for ties and placing undated posts last.
func SortNewestFirst(posts []Post) {
	slices.SortStableFunc(posts, func(a, b Post) int {
		switch {
		case a.HasPublishedDate() && !b.HasPublishedDate():
			return -1
		case !a.HasPublishedDate() && b.HasPublishedDate():
			return 1
		default:
			return b.PublishedDate.Compare(a.PublishedDate)
		}
	})
}

func (s *Store) snapshot() []Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.posts)
}
