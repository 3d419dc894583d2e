// Package converter fingerprints article sources and renders them to HTML.
package converter

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	ghhtml "github.com/yuin/goldmark/renderer/html"
)

// Digest is the fingerprint and rendered form of one article source.
type Digest struct {
	Hash string // Lowercase hex SHA-1 of the raw bytes
	HTML string // Rendered body, derived from the source
}

// Converter renders markdown article sources to HTML.
type Converter struct {
	markdown goldmark.Markdown
}

// NewConverter creates a converter with GitHub flavored markdown enabled.
// Raw HTML embedded in articles is passed through untouched.
func NewConverter() *Converter {
	return &Converter{
		markdown: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Footnote,
				extension.DefinitionList,
			),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
			goldmark.WithRendererOptions(
				ghhtml.WithUnsafe(),
				ghhtml.WithXHTML(),
			),
		),
	}
}

// Fingerprint returns the hex SHA-1 of content. Equal fingerprints across
// passes mean the article body did not change.
func Fingerprint(content []byte) string {
	sum := sha1.Sum(content) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])
}

// Render converts markdown source to HTML.
func (c *Converter) Render(content []byte) (string, error) {
	var buf bytes.Buffer
	if err := c.markdown.Convert(content, &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// Digest fingerprints and renders content in one call.
func (c *Converter) Digest(content []byte) (Digest, error) {
	html, err := c.Render(content)
	if err != nil {
		return Digest{}, err
	}
	return Digest{Hash: Fingerprint(content), HTML: html}, nil
}
