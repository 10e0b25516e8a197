package posts

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/goliatone/go-blog/internal/identity"
	"github.com/goliatone/go-blog/internal/markdown"
	"github.com/goliatone/go-blog/internal/validation"
	"github.com/goliatone/go-slug"
)

// DefaultDelimiter separates posts sharing one source.
const DefaultDelimiter = "<!-- post -->"

var (
	atxHeading      = regexp.MustCompile(`^ {0,3}#(?:[ \t]+(.*?))?(?:[ \t]+#+)?[ \t]*$`)
	setextUnderline = regexp.MustCompile(`^ {0,3}=+[ \t]*$`)
	listItemStart   = regexp.MustCompile(`^ {0,3}(?:[-+*]|\d{1,9}[.)])(?:[ \t]|$)`)
)

type segment struct {
	index int
	// line is the 1-based line of the segment's first line in the source.
	line int
	text string
}

// splitSegments cuts text on delimiter lines found outside fenced code.
// Blank segments are dropped and do not consume an index.
func splitSegments(text, delimiter string) []segment {
	lines := markdown.SplitLines(text)

	var (
		out   []segment
		start int
	)
	emit := func(end int) {
		body := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(body) != "" {
			out = append(out, segment{index: len(out), line: start + 1, text: body})
		}
	}
	for _, cut := range delimiterLines(lines, strings.TrimSpace(delimiter)) {
		emit(cut)
		start = cut + 1
	}
	emit(len(lines))
	return out
}

// delimiterLines returns the indices of the lines separating posts. A fence
// left open at the end of the source cannot hide the posts after it: the
// first delimiter following its opening line still separates, and scanning
// resumes there with fresh fence state.
func delimiterLines(lines []string, delimiter string) []int {
	if delimiter == "" {
		return nil
	}
	isDelimiter := func(line string) bool {
		return strings.TrimSpace(line) == delimiter
	}

	var cuts []int
	for from := 0; from < len(lines); {
		var scanner markdown.FenceScanner
		for i := from; i < len(lines); i++ {
			if !scanner.Next(lines[i]) && isDelimiter(lines[i]) {
				cuts = append(cuts, i)
			}
		}
		fence, open := scanner.Open()
		if !open {
			break
		}
		next := -1
		for i := from + fence.Line; i < len(lines); i++ {
			if isDelimiter(lines[i]) {
				next = i
				break
			}
		}
		if next < 0 {
			break
		}
		cuts = append(cuts, next)
		from = next + 1
	}
	return cuts
}

type segmentParser struct {
	schema *validation.FrontMatterSchema
	now    func() time.Time
}

func (p segmentParser) parse(source string, seg segment) (Post, error) {
	fail := func(line int, err error) (Post, error) {
		return Post{}, &ParseError{Source: source, Index: seg.index, Line: line, Err: err}
	}

	lines := markdown.SplitLines(seg.text)
	lead := 0
	for lead < len(lines) && isBlank(lines[lead]) {
		lead++
	}
	content := strings.Join(lines[lead:], "\n")
	firstLine := seg.line + lead

	fm, rest, err := markdown.ParseFrontMatter([]byte(content))
	if err != nil {
		return fail(firstLine, err)
	}
	if p.schema != nil {
		if err := p.schema.Validate(fm.Raw); err != nil {
			return fail(firstLine, err)
		}
	}

	bodyStart := firstLine + strings.Count(content, "\n") - strings.Count(string(rest), "\n")
	bodyLines := markdown.SplitLines(string(rest))

	title, titleAt, titleSpan, ok := findTitle(bodyLines)
	if !ok {
		return fail(bodyStart, ErrMissingTitle)
	}
	drop := map[int]bool{}
	for i := titleAt; i < titleAt+titleSpan; i++ {
		drop[i] = true
	}

	var published time.Time
	if at, text, found := firstBlockQuoteLine(bodyLines, drop); found {
		date, annotated, err := ParsePublishedDate(text)
		if err != nil {
			return fail(bodyStart+at, err)
		}
		if annotated {
			published = date
			drop[at] = true
		}
	}
	if published.IsZero() && !fm.Date.IsZero() {
		year, month, day := fm.Date.Date()
		published = time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	}

	kept := make([]string, 0, len(bodyLines))
	for i, line := range bodyLines {
		if !drop[i] {
			kept = append(kept, line)
		}
	}
	body := strings.Join(trimBlankLines(kept), "\n")

	sum := sha256.Sum256([]byte(seg.text))
	now := time.Now
	if p.now != nil {
		now = p.now
	}

	return Post{
		ID:            identity.PostUUID(source, seg.index),
		Title:         title,
		Slug:          postSlug(fm.Slug, title),
		PublishedDate: published,
		Body:          body,
		Blocks:        markdown.ParseBlocks([]byte(body)),
		Source:        source,
		Index:         seg.index,
		Line:          seg.line,
		Checksum:      hex.EncodeToString(sum[:]),
		Meta: Meta{
			Summary: strings.TrimSpace(fm.Summary),
			Author:  strings.TrimSpace(fm.Author),
			Tags:    append([]string(nil), fm.Tags...),
			Draft:   fm.Draft,
			Custom:  cloneValue(fm.Custom),
		},
		LoadedAt: now().UTC(),
	}, nil
}

// findTitle returns the first non-empty level-1 heading outside fenced code,
// its line index and the number of lines it spans (2 for setext headings).
func findTitle(lines []string) (string, int, int, bool) {
	var scanner markdown.FenceScanner
	for i, line := range lines {
		if scanner.Next(line) {
			continue
		}
		if m := atxHeading.FindStringSubmatch(line); m != nil {
			if title := strings.TrimSpace(m[1]); title != "" {
				return title, i, 1, true
			}
			continue
		}
		if i+1 < len(lines) && setextUnderline.MatchString(lines[i+1]) && setextCandidate(lines, i) {
			return strings.TrimSpace(line), i, 2, true
		}
	}
	return "", 0, 0, false
}

// setextCandidate reports whether lines[i] can be a single-line setext heading.
func setextCandidate(lines []string, i int) bool {
	line := lines[i]
	if isBlank(line) || strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t") {
		return false
	}
	trimmed := strings.TrimLeft(line, " ")
	if strings.HasPrefix(trimmed, ">") || strings.HasPrefix(trimmed, "<") || listItemStart.MatchString(line) {
		return false
	}
	return i == 0 || isBlank(lines[i-1])
}

// firstBlockQuoteLine returns the first block quote line outside fenced code,
// with its markers stripped. Lines marked in skip are ignored.
func firstBlockQuoteLine(lines []string, skip map[int]bool) (int, string, bool) {
	var scanner markdown.FenceScanner
	for i, line := range lines {
		if scanner.Next(line) || skip[i] {
			continue
		}
		trimmed := strings.TrimLeft(line, " ")
		if len(line)-len(trimmed) > 3 || !strings.HasPrefix(trimmed, ">") {
			continue
		}
		return i, strings.TrimSpace(strings.TrimLeft(trimmed, "> \t")), true
	}
	return 0, "", false
}

func postSlug(preferred, title string) string {
	for _, candidate := range []string{preferred, title} {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		if normalized, err := slug.Normalize(candidate); err == nil && normalized != "" {
			return normalized
		}
	}
	return "post"
}

func trimBlankLines(lines []string) []string {
	start, end := 0, len(lines)
	for start < end && isBlank(lines[start]) {
		start++
	}
	for end > start && isBlank(lines[end-1]) {
		end--
	}
	return lines[start:end]
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}
