package linker

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"ragqa/internal/domain"
)

// TextMode selects what a link displays.
type TextMode string

const (
	TextChunk  TextMode = "chunk"
	TextSource TextMode = "source"
)

// Rule sends sources matching Pattern to BaseURL.
type Rule struct {
	Pattern string
	BaseURL string
}

// Builder derives links from chunk provenance. A chunk's own url wins;
// otherwise the source is joined onto the first matching rule's base URL,
// or the default base URL.
type Builder struct {
	baseURL string
	rules   []Rule
	text    TextMode
}

func NewBuilder(baseURL string, text TextMode, rules []Rule) (*Builder, error) {
	for _, r := range rules {
		if !doublestar.ValidatePattern(r.Pattern) {
			return nil, fmt.Errorf("invalid link rule pattern %q", r.Pattern)
		}
	}
	if text == "" {
		text = TextChunk
	}
	return &Builder{
		baseURL: baseURL,
		rules:   append([]Rule(nil), rules...),
		text:    text,
	}, nil
}

func (b *Builder) Link(chunk domain.Chunk) domain.Link {
	return domain.Link{URL: b.url(chunk), Text: b.label(chunk)}
}

func (b *Builder) url(chunk domain.Chunk) string {
	if chunk.URL != "" {
		return chunk.URL
	}
	return join(b.baseFor(chunk.Source), chunk.Source)
}

func (b *Builder) baseFor(source string) string {
	path := strings.TrimPrefix(source, "/")
	for _, r := range b.rules {
		if ok, err := doublestar.Match(r.Pattern, path); err == nil && ok {
			return r.BaseURL
		}
	}
	return b.baseURL
}

func (b *Builder) label(chunk domain.Chunk) string {
	if b.text == TextSource && chunk.Source != "" {
		return chunk.Source
	}
	return chunk.Text
}

func join(base, source string) string {
	if source == "" {
		return base
	}
	if base == "" {
		return source
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(source, "/")
}
