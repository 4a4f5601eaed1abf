package chat

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Sanitizer renders the permitted markdown subset to HTML and then strips
// everything outside the allowed tag set. Sanitization runs on the rendered
// HTML rather than the raw markdown so crafted link targets or attribute
// injection cannot survive rendering.
type Sanitizer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewSanitizer builds the sanitizer with the chat formatting subset:
// bold, italic, strikethrough, inline/block code, links and blockquotes.
func NewSanitizer() *Sanitizer {
	policy := bluemonday.NewPolicy()
	policy.AllowElements("b", "strong", "i", "em", "del", "s", "code", "pre", "blockquote", "p", "br")
	policy.AllowAttrs("href").OnElements("a")
	policy.AllowURLSchemes("http", "https")
	policy.RequireNoFollowOnLinks(true)

	md := goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)

	return &Sanitizer{md: md, policy: policy}
}

// Render converts raw chat input into safe HTML. Plain text comes back
// unchanged: a single enclosing paragraph is unwrapped so "Hello" is stored
// and broadcast as "Hello", not markup.
func (s *Sanitizer) Render(raw string) (string, error) {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(raw), &buf); err != nil {
		return "", fmt.Errorf("rendering message: %w", err)
	}
	out := strings.TrimSpace(s.policy.Sanitize(buf.String()))
	if strings.HasPrefix(out, "<p>") && strings.HasSuffix(out, "</p>") && strings.Count(out, "<p>") == 1 {
		out = strings.TrimSpace(out[len("<p>") : len(out)-len("</p>")])
	}
	return out, nil
}
