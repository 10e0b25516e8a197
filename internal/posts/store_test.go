package posts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-blog/internal/markdown"
	"github.com/goliatone/go-blog/internal/validation"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(opts ...Option) *Store {
	return NewStore(append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

func TestLoadSpecExample(t *testing.T) {
	store := newTestStore()
	added, err := store.Load(context.Background(), "example.md", strings.NewReader("# Title\n> Originally published March 20th 2021\n\nBody text."))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(added) != 1 {
		t.Fatalf("expected 1 post, got %d", len(added))
	}
	post := added[0]
	if post.Title != "Title" {
		t.Fatalf("unexpected title %q", post.Title)
	}
	want := time.Date(2021, time.March, 20, 0, 0, 0, 0, time.UTC)
	if !post.PublishedDate.Equal(want) {
		t.Fatalf("expected %s, got %s", want, post.PublishedDate)
	}
	if post.Body != "Body text." {
		t.Fatalf("unexpected body %q", post.Body)
	}
	if post.Slug != "title" {
		t.Fatalf("unexpected slug %q", post.Slug)
	}
	if !post.LoadedAt.Equal(fixedNow) {
		t.Fatalf("unexpected LoadedAt %s", post.LoadedAt)
	}
	if post.PlainText() != "Body text." {
		t.Fatalf("unexpected plain text %q", post.PlainText())
	}
}

func TestLoadTitleEqualsHeadingText(t *testing.T) {
	cases := []struct {
		name   string
		source string
		title  string
	}{
		{"atx", "# Chainable model methods\n\nBody", "Chainable model methods"},
		{"closing hashes", "# Avoid array abuse ##\n\nBody", "Avoid array abuse"},
		{"inline markup kept", "# Using *value* objects\n\nBody", "Using *value* objects"},
		{"hash inside", "# C# tips\n\nBody", "C# tips"},
		{"setext", "Eager loading\n=============\n\nBody", "Eager loading"},
		{"after intro", "Intro paragraph.\n\n## Sub\n\n# Real Title\n\nBody", "Real Title"},
		{"ignores fenced heading", "```md\n# Not a title\n```\n\n# Actual\n", "Actual"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStore()
			added, err := store.Load(context.Background(), tc.name+".md", strings.NewReader(tc.source))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(added) != 1 || added[0].Title != tc.title {
				t.Fatalf("expected title %q, got %+v", tc.title, added)
			}
		})
	}
}

func TestLoadWithoutHeadingAddsNothing(t *testing.T) {
	store := newTestStore()
	added, err := store.Load(context.Background(), "notes.md", strings.NewReader("Just a paragraph.\n\n## Second level only\n"))
	if len(added) != 0 || store.Len() != 0 {
		t.Fatalf("expected no posts, got %d", store.Len())
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if !errors.Is(err, ErrMissingTitle) {
		t.Fatalf("expected ErrMissingTitle, got %v", err)
	}
	if parseErr.Source != "notes.md" || parseErr.Index != 0 || parseErr.Line != 1 {
		t.Fatalf("unexpected error details %+v", parseErr)
	}
}

func TestLoadMultiPostSourceKeepsGoodPosts(t *testing.T) {
	source := strings.Join([]string{
		"# First",
		"> Originally published January 5, 2020",
		"",
		"One.",
		DefaultDelimiter,
		"no heading here",
		DefaultDelimiter,
		"# Third",
		"",
		"```php",
		DefaultDelimiter,
		"```",
	}, "\n")

	store := newTestStore()
	added, err := store.Load(context.Background(), "multi.md", strings.NewReader(source))
	if len(added) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(added))
	}
	errs := ParseErrors(err)
	if len(errs) != 1 || errs[0].Index != 1 || errs[0].Line != 6 {
		t.Fatalf("unexpected parse errors %+v", errs)
	}
	third := added[1]
	if third.Index != 2 || third.Line != 8 {
		t.Fatalf("unexpected position %d line %d", third.Index, third.Line)
	}
	if !strings.Contains(third.Body, DefaultDelimiter) {
		t.Fatalf("delimiter inside fence should stay in body, got %q", third.Body)
	}
}

func TestLoadDateAnnotations(t *testing.T) {
	cases := []struct {
		name  string
		quote string
		want  time.Time
	}{
		{"ordinal", "> Originally published March 20th 2021", time.Date(2021, 3, 20, 0, 0, 0, 0, time.UTC)},
		{"comma", "> Originally published July 4, 2019.", time.Date(2019, 7, 4, 0, 0, 0, 0, time.UTC)},
		{"abbreviated", "> *Originally published on Sept. 1st, 2018*", time.Date(2018, 9, 1, 0, 0, 0, 0, time.UTC)},
		{"iso", "> Originally published 2017-11-02 on Medium", time.Date(2017, 11, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStore()
			added, err := store.Load(context.Background(), "d.md", strings.NewReader("# T\n"+tc.quote+"\n\nBody"))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if !added[0].PublishedDate.Equal(tc.want) {
				t.Fatalf("expected %s, got %s", tc.want, added[0].PublishedDate)
			}
			if added[0].Body != "Body" {
				t.Fatalf("annotation should leave the body, got %q", added[0].Body)
			}
		})
	}
}

func TestLoadQuoteWithoutAnnotationStaysInBody(t *testing.T) {
	store := newTestStore()
	added, err := store.Load(context.Background(), "q.md", strings.NewReader("# T\n\n> Premature optimisation.\n\nBody"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if added[0].HasPublishedDate() {
		t.Fatalf("expected no date, got %s", added[0].PublishedDate)
	}
	if added[0].Body != "> Premature optimisation.\n\nBody" {
		t.Fatalf("unexpected body %q", added[0].Body)
	}
}

func TestLoadImpossibleDate(t *testing.T) {
	store := newTestStore()
	_, err := store.Load(context.Background(), "bad.md", strings.NewReader("# T\n> Originally published February 30th 2021\n"))
	if !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	errs := ParseErrors(err)
	if len(errs) != 1 || errs[0].Line != 2 {
		t.Fatalf("unexpected errors %+v", errs)
	}
}

func TestLoadFrontMatter(t *testing.T) {
	source := "---\nslug: custom-slug\nsummary: Short\nauthor: Ada\ntags: [php, laravel]\ndate: 2020-02-02\ndraft: true\nseries: eloquent\n---\n# Titled\n\nBody"
	store := newTestStore()
	added, err := store.Load(context.Background(), "fm.md", strings.NewReader(source))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	post := added[0]
	if post.Slug != "custom-slug" || post.Meta.Author != "Ada" || !post.Meta.Draft {
		t.Fatalf("unexpected meta %+v slug %q", post.Meta, post.Slug)
	}
	if len(post.Meta.Tags) != 2 || post.Meta.Custom["series"] != "eloquent" {
		t.Fatalf("unexpected tags/custom %+v", post.Meta)
	}
	if !post.PublishedDate.Equal(time.Date(2020, 2, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected frontmatter date fallback, got %s", post.PublishedDate)
	}
	if post.Body != "Body" {
		t.Fatalf("unexpected body %q", post.Body)
	}
}

func TestLoadFrontMatterSchema(t *testing.T) {
	schema, err := validation.NewFrontMatterSchema(map[string]any{
		"type":     "object",
		"required": []any{"author"},
	})
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	store := newTestStore(WithFrontMatterSchema(schema))
	_, err = store.Load(context.Background(), "s.md", strings.NewReader("---\nsummary: x\n---\n# T\n"))
	if !errors.Is(err, ErrSchemaValidation) {
		t.Fatalf("expected ErrSchemaValidation, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected rejected post, got %d", store.Len())
	}
}

func TestAllIsRestartable(t *testing.T) {
	store := newTestStore()
	for _, name := range []string{"a.md", "b.md", "c.md"} {
		if _, err := store.Load(context.Background(), name, strings.NewReader("# "+name+"\n\nbody")); err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
	}
	collect := func() []string {
		var titles []string
		for post := range store.All() {
			titles = append(titles, post.Title)
		}
		return titles
	}
	first, second := collect(), collect()
	if len(first) != 3 || strings.Join(first, ",") != strings.Join(second, ",") {
		t.Fatalf("iteration mismatch %v vs %v", first, second)
	}
	if strings.Join(first, ",") != "a.md,b.md,c.md" {
		t.Fatalf("expected load order, got %v", first)
	}
	for range store.All() {
		break
	}
}

func TestStoreHandsOutCopies(t *testing.T) {
	store := newTestStore()
	if _, err := store.Load(context.Background(), "a.md", strings.NewReader("---\ntags: [one]\n---\n# A\n\n[link](https://example.com)")); err != nil {
		t.Fatalf("load: %v", err)
	}
	post, _ := store.Get("a")
	post.Title = "mutated"
	post.Meta.Tags[0] = "mutated"
	post.Blocks[0].Links[0].Destination = "mutated"

	again, _ := store.Get("a")
	if again.Title != "A" || again.Meta.Tags[0] != "one" || again.Blocks[0].Links[0].Destination != "https://example.com" {
		t.Fatalf("store was mutated through a copy: %+v", again)
	}
}

func TestDuplicateSlugsAreSuffixed(t *testing.T) {
	store := newTestStore()
	source := "# Same\n" + DefaultDelimiter + "\n# Same\n" + DefaultDelimiter + "\n# Same\n"
	added, err := store.Load(context.Background(), "dup.md", strings.NewReader(source))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := []string{added[0].Slug, added[1].Slug, added[2].Slug}
	if strings.Join(got, ",") != "same,same-2,same-3" {
		t.Fatalf("unexpected slugs %v", got)
	}
}

func TestReloadReplacesInPlace(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	store.Load(ctx, "a.md", strings.NewReader("# A\n\nold"))
	store.Load(ctx, "b.md", strings.NewReader("# B\n"))
	if _, err := store.Load(ctx, "a.md", strings.NewReader("# A\n\nnew")); err != nil {
		t.Fatalf("reload: %v", err)
	}
	posts := store.Posts()
	if len(posts) != 2 || posts[0].Body != "new" || posts[0].Slug != "a" {
		t.Fatalf("unexpected posts after reload %+v", posts)
	}
}

func TestUnclosedFenceDoesNotSwallowLaterPosts(t *testing.T) {
	source := strings.Join([]string{
		"# A",
		"",
		"```go",
		"x := 1",
		DefaultDelimiter,
		"# B",
		"",
		"body b",
		DefaultDelimiter,
		"# C",
		"",
		"```php",
		DefaultDelimiter,
		"```",
	}, "\n")

	store := newTestStore()
	added, err := store.Load(context.Background(), "fences.md", strings.NewReader(source))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(added) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(added))
	}
	if added[0].Body != "```go\nx := 1" {
		t.Fatalf("unexpected first body %q", added[0].Body)
	}
	if !errors.Is(markdown.ValidateFences([]byte(added[0].Body)), markdown.ErrUnterminatedFence) {
		t.Fatalf("first post should keep its unclosed fence")
	}
	b, ok := store.Get("b")
	if !ok || b.Body != "body b" || b.Index != 1 || b.Line != 6 {
		t.Fatalf("unexpected second post %+v (found=%v)", b, ok)
	}
	c, ok := store.Get("c")
	if !ok || !strings.Contains(c.Body, DefaultDelimiter) {
		t.Fatalf("closed fence after recovery should keep its delimiter, got %+v", c)
	}
}

func TestReloadDropsRemovedPosts(t *testing.T) {
	ctx := context.Background()
	two := "# One\n\nfirst\n" + DefaultDelimiter + "\n# Two\n\nsecond"

	cases := []struct {
		name    string
		reload  string
		titles  []string
		wantErr error
	}{
		{name: "fewer posts", reload: "# One\n\nfirst again", titles: []string{"One", "Other"}},
		{name: "every post rejected", reload: "no heading", titles: []string{"Other"}, wantErr: ErrMissingTitle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStore()
			if _, err := store.Load(ctx, "a.md", strings.NewReader(two)); err != nil {
				t.Fatalf("load: %v", err)
			}
			if _, err := store.Load(ctx, "b.md", strings.NewReader("# Other\n")); err != nil {
				t.Fatalf("load other: %v", err)
			}

			_, err := store.Load(ctx, "a.md", strings.NewReader(tc.reload))
			if tc.wantErr == nil && err != nil {
				t.Fatalf("reload: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}

			var titles []string
			for post := range store.All() {
				titles = append(titles, post.Title)
			}
			if strings.Join(titles, ",") != strings.Join(tc.titles, ",") {
				t.Fatalf("expected titles %v, got %v", tc.titles, titles)
			}
			if _, ok := store.Get("two"); ok {
				t.Fatalf("removed post still reachable by slug")
			}
			if other, ok := store.Get("other"); !ok || other.Title != "Other" {
				t.Fatalf("other source lookup broken: %+v", other)
			}
			if _, err := store.Load(ctx, "c.md", strings.NewReader("# Two\n")); err != nil {
				t.Fatalf("load c: %v", err)
			}
			if post, ok := store.Get("two"); !ok || post.Source != "c.md" {
				t.Fatalf("freed slug should be reused without suffix, got %+v", post)
			}
		})
	}
}

func TestNewestOrdersByDate(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	store.Load(ctx, "old.md", strings.NewReader("# Old\n> Originally published May 1 2010\n"))
	store.Load(ctx, "undated.md", strings.NewReader("# Undated\n"))
	store.Load(ctx, "new.md", strings.NewReader("# New\n> Originally published May 1 2020\n"))

	var titles []string
	for _, post := range store.Newest() {
		titles = append(titles, post.Title)
	}
	if strings.Join(titles, ",") != "New,Old,Undated" {
		t.Fatalf("unexpected order %v", titles)
	}
}

func TestRenderedBlocksMatchBody(t *testing.T) {
	store := newTestStore()
	added, err := store.Load(context.Background(), "b.md", strings.NewReader("# T\n\nIntro.\n\n```go\nfmt.Println(1)\n```\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	blocks := added[0].Blocks
	if len(blocks) != 2 || blocks[1].Kind != markdown.BlockCode || blocks[1].Language != "go" {
		t.Fatalf("unexpected blocks %+v", blocks)
	}
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestStore().Load(ctx, "a.md", strings.NewReader("# A")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
