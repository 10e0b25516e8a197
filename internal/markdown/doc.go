// Package markdown holds the Markdown primitives shared by the post store and
// the renderers: the goldmark HTML engine, frontmatter extraction, fenced code
// scanning, AST block extraction and markup stripping.
package markdown
