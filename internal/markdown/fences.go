package markdown

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnterminatedFence marks a fenced code block that is never closed.
var ErrUnterminatedFence = errors.New("markdown: unterminated code fence")

// Fence describes the opening line of a fenced code block.
type Fence struct {
	// Line is the 1-based line number of the opening fence.
	Line int
	// Marker is the opening run, e.g. "```" or "~~~~".
	Marker string
	// Info is the trimmed info string following the marker.
	Info string

	indent int
	depth  int
}

// Language returns the first word of the info string.
func (f Fence) Language() string {
	if fields := strings.Fields(f.Info); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// FenceError reports an unterminated fence.
type FenceError struct {
	Fence Fence
}

func (e *FenceError) Error() string {
	return fmt.Sprintf("markdown: code fence %s opened on line %d is never closed", e.Fence.Marker, e.Fence.Line)
}

func (e *FenceError) Unwrap() error { return ErrUnterminatedFence }

// FenceScanner tracks fenced code blocks line by line. It understands block
// quote containers and list items well enough to follow the fences authors
// write in practice; it is not a full CommonMark block parser.
type FenceScanner struct {
	line    int
	open    *Fence
	listCol int
}

// Next consumes one line (without its newline) and reports whether the line
// belongs to a fenced code block, including the opening and closing fences.
func (s *FenceScanner) Next(line string) bool {
	s.line++
	depth, rest := stripBlockQuote(line)

	if s.open != nil {
		if depth < s.open.depth {
			// The enclosing quote ended, which closes the fence implicitly.
			s.open = nil
		} else {
			indent, body := leadingSpaces(rest)
			if indent <= s.open.indent+3 && closesFence(body, s.open.Marker) {
				s.open = nil
			}
			return true
		}
	}

	indent, body := leadingSpaces(rest)
	if body == "" {
		return false
	}

	relative := indent
	if width, after, ok := listMarker(body); ok {
		s.listCol = indent + width
		relative = 0
		indent = s.listCol
		body = after
	} else if s.listCol > 0 {
		if indent >= s.listCol {
			relative = indent - s.listCol
		} else {
			s.listCol = 0
		}
	}
	if relative > 3 {
		return false
	}

	marker, info, ok := openingFence(body)
	if !ok {
		return false
	}
	s.open = &Fence{Line: s.line, Marker: marker, Info: info, indent: indent, depth: depth}
	return true
}

// Open returns the currently open fence, if any.
func (s *FenceScanner) Open() (Fence, bool) {
	if s.open == nil {
		return Fence{}, false
	}
	return *s.open, true
}

// ValidateFences returns a *FenceError for the first fenced code block in src
// that is never closed.
func ValidateFences(src []byte) error {
	var scanner FenceScanner
	for _, line := range SplitLines(string(src)) {
		scanner.Next(line)
	}
	if fence, open := scanner.Open(); open {
		return &FenceError{Fence: fence}
	}
	return nil
}

// SplitLines normalises line endings and splits text into lines.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

func openingFence(body string) (marker, info string, ok bool) {
	if body == "" || (body[0] != '`' && body[0] != '~') {
		return "", "", false
	}
	char := body[0]
	n := 0
	for n < len(body) && body[n] == char {
		n++
	}
	if n < 3 {
		return "", "", false
	}
	info = strings.TrimSpace(body[n:])
	if char == '`' && strings.ContainsRune(info, '`') {
		return "", "", false
	}
	return body[:n], info, true
}

func closesFence(body, marker string) bool {
	char := marker[0]
	n := 0
	for n < len(body) && body[n] == char {
		n++
	}
	return n >= len(marker) && strings.TrimSpace(body[n:]) == ""
}

// stripBlockQuote removes leading block quote markers and reports how many
// were removed.
func stripBlockQuote(line string) (int, string) {
	depth := 0
	for {
		indent, body := leadingSpaces(line)
		if indent > 3 || !strings.HasPrefix(body, ">") {
			return depth, line
		}
		depth++
		line = strings.TrimPrefix(body[1:], " ")
	}
}

// leadingSpaces counts indentation columns (tabs advance to the next multiple
// of four) and returns the remainder of the line.
func leadingSpaces(line string) (int, string) {
	col := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ' ':
			col++
		case '\t':
			col += 4 - col%4
		default:
			return col, line[i:]
		}
	}
	return col, ""
}

// listMarker recognises "-", "*", "+" and "1." / "1)" item markers followed
// by whitespace. width includes the marker and the spaces after it.
func listMarker(body string) (width int, after string, ok bool) {
	n := 0
	switch {
	case body[0] == '-' || body[0] == '*' || body[0] == '+':
		n = 1
	default:
		for n < len(body) && n < 9 && body[n] >= '0' && body[n] <= '9' {
			n++
		}
		if n == 0 || n >= len(body) || (body[n] != '.' && body[n] != ')') {
			return 0, "", false
		}
		n++
	}
	if n >= len(body) || (body[n] != ' ' && body[n] != '\t') {
		return 0, "", false
	}
	spaces, rest := leadingSpaces(body[n:])
	if spaces > 4 {
		spaces = 1
	}
	return n + spaces, rest, true
}
