package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// BlockKind names the top-level constructs of a post body.
type BlockKind string

const (
	BlockHeading       BlockKind = "heading"
	BlockParagraph     BlockKind = "paragraph"
	BlockCode          BlockKind = "code"
	BlockQuote         BlockKind = "blockquote"
	BlockList          BlockKind = "list"
	BlockThematicBreak BlockKind = "thematic_break"
	BlockHTML          BlockKind = "html"
	BlockTable         BlockKind = "table"
	BlockOther         BlockKind = "other"
)

// Link is a hyperlink found inside a block.
type Link struct {
	Text        string `json:"text"`
	Destination string `json:"destination"`
	Title       string `json:"title,omitempty"`
}

// Block is one top-level element of a Markdown body.
type Block struct {
	Kind BlockKind `json:"kind"`
	// Level is set for headings.
	Level int `json:"level,omitempty"`
	// Fenced distinguishes fenced from indented code blocks.
	Fenced bool `json:"fenced,omitempty"`
	// Language is the fenced code language tag as written by the author.
	Language string `json:"language,omitempty"`
	// Text is the plain text of the block. Code keeps its lines verbatim.
	Text  string `json:"text"`
	Links []Link `json:"links,omitempty"`
}

// Clone returns a copy that shares no slices with b.
func (b Block) Clone() Block {
	b.Links = append([]Link(nil), b.Links...)
	return b
}

var blockParser = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
).Parser()

// ParseBlocks parses src and returns its top-level blocks in document order.
func ParseBlocks(src []byte) []Block {
	doc := blockParser.Parse(text.NewReader(src))

	var blocks []Block
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		blocks = append(blocks, toBlock(node, src))
	}
	return blocks
}

// PlainText joins the text of blocks, one block per line.
func PlainText(blocks []Block) string {
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func toBlock(node ast.Node, src []byte) Block {
	block := Block{Text: textOf(node, src), Links: linksOf(node, src)}

	switch n := node.(type) {
	case *ast.Heading:
		block.Kind = BlockHeading
		block.Level = n.Level
	case *ast.Paragraph, *ast.TextBlock:
		block.Kind = BlockParagraph
	case *ast.FencedCodeBlock:
		block.Kind = BlockCode
		block.Fenced = true
		block.Language = string(n.Language(src))
	case *ast.CodeBlock:
		block.Kind = BlockCode
	case *ast.Blockquote:
		block.Kind = BlockQuote
	case *ast.List:
		block.Kind = BlockList
	case *ast.ThematicBreak:
		block.Kind = BlockThematicBreak
	case *ast.HTMLBlock:
		block.Kind = BlockHTML
	case *east.Table:
		block.Kind = BlockTable
	default:
		block.Kind = BlockOther
	}
	return block
}

func textOf(node ast.Node, src []byte) string {
	switch node.(type) {
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return rawLines(node, src)
	case *ast.HTMLBlock:
		return StripMarkup([]byte(rawLines(node, src)))
	}

	first := node.FirstChild()
	if first == nil || first.Type() != ast.TypeBlock {
		return inlineText(node, src)
	}

	var parts []string
	for child := first; child != nil; child = child.NextSibling() {
		if t := textOf(child, src); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func inlineText(node ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Text:
			value := v.Segment.Value(src)
			if _, inCode := v.Parent().(*ast.CodeSpan); !inCode && !v.IsRaw() {
				value = decodeText(value)
			}
			b.Write(value)
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			if v.IsCode() || v.IsRaw() {
				b.Write(v.Value)
			} else {
				b.Write(decodeText(v.Value))
			}
		case *ast.AutoLink:
			b.Write(v.Label(src))
		case *ast.Image, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// decodeText resolves backslash escapes and character references the way
// the HTML renderer does for text content.
func decodeText(value []byte) []byte {
	value = util.UnescapePunctuations(value)
	value = util.ResolveNumericReferences(value)
	return util.ResolveEntityNames(value)
}

func linksOf(node ast.Node, src []byte) []Link {
	var links []Link
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Link:
			links = append(links, Link{
				Text:        inlineText(v, src),
				Destination: string(v.Destination),
				Title:       string(v.Title),
			})
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			links = append(links, Link{
				Text:        string(v.Label(src)),
				Destination: string(v.URL(src)),
			})
		}
		return ast.WalkContinue, nil
	})
	return links
}

func rawLines(node ast.Node, src []byte) string {
	var b strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		b.Write(segment.Value(src))
	}
	return b.String()
}
