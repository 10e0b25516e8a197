package markdown

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var blockElements = map[atom.Atom]struct{}{
	atom.P: {}, atom.Div: {}, atom.Pre: {}, atom.Blockquote: {}, atom.Br: {}, atom.Hr: {},
	atom.H1: {}, atom.H2: {}, atom.H3: {}, atom.H4: {}, atom.H5: {}, atom.H6: {},
	atom.Ul: {}, atom.Ol: {}, atom.Li: {}, atom.Table: {}, atom.Tr: {}, atom.Td: {}, atom.Th: {},
}

// StripMarkup returns the text content of an HTML fragment with entities
// decoded. Block-level elements are separated by whitespace; script and
// style contents are dropped.
func StripMarkup(fragment []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(fragment))
	var (
		b    strings.Builder
		skip int
	)
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
			}
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			switch token.DataAtom {
			case atom.Script, atom.Style:
				if token.Type == html.StartTagToken {
					skip++
				} else if token.Type == html.EndTagToken && skip > 0 {
					skip--
				}
				continue
			}
			if _, ok := blockElements[token.DataAtom]; ok {
				b.WriteByte('\n')
			}
		}
	}
}

// NormalizeWhitespace collapses every whitespace run into a single space and
// trims the ends.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
