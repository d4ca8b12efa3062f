// Package markdown renders post bodies to HTML with goldmark and exposes the
// result as a templ component.
package markdown

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Renderer converts markdown to HTML. Raw HTML in the source is dropped and
// dangerous link schemes are neutralized by goldmark's default renderer.
type Renderer struct {
	md goldmark.Markdown
}

// Option configures a Renderer.
type Option func(*config)

type config struct {
	baseURL *url.URL
}

// WithBaseURL resolves relative link and image destinations against base.
// Feed readers have no page URL to resolve against, so feed content needs it.
func WithBaseURL(base string) Option {
	return func(c *config) {
		if u, err := url.Parse(strings.TrimRight(base, "/") + "/"); err == nil && u.IsAbs() {
			c.baseURL = u
		}
	}
}

// New returns a Renderer with GitHub-flavored extensions enabled.
func New(opts ...Option) *Renderer {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	parserOpts := []parser.Option{parser.WithAutoHeadingID()}
	if cfg.baseURL != nil {
		parserOpts = append(parserOpts, parser.WithASTTransformers(
			util.Prioritized(&absoluteLinks{base: cfg.baseURL}, 100),
		))
	}
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parserOpts...),
		),
	}
}

// Render writes the HTML for src to buf.
func (r *Renderer) Render(buf *bytes.Buffer, src string) error {
	return r.md.Convert([]byte(src), buf)
}

// HTML returns the HTML for src.
func (r *Renderer) HTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, src); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Component returns a templ.Component that renders src.
func (r *Renderer) Component(src string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		if err := r.Render(&buf, src); err != nil {
			return err
		}
		_, err := w.Write(buf.Bytes())
		return err
	})
}

var std = New()

// Markdown returns a templ.Component that renders content as HTML.
func Markdown(content string) templ.Component {
	return std.Component(content)
}

type absoluteLinks struct {
	base *url.URL
}

func (a *absoluteLinks) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Link:
			node.Destination = a.resolve(node.Destination)
		case *ast.Image:
			node.Destination = a.resolve(node.Destination)
		}
		return ast.WalkContinue, nil
	})
}

func (a *absoluteLinks) resolve(dest []byte) []byte {
	raw := string(dest)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return dest
	}
	ref, err := url.Parse(raw)
	if err != nil || ref.IsAbs() || ref.Host != "" {
		return dest
	}
	return []byte(a.base.ResolveReference(ref).String())
}

// PlainText strips markdown syntax down to its text, collapsing whitespace,
// and truncates to at most max runes with an ellipsis. max <= 0 means no limit.
func PlainText(src string, max int) string {
	doc := std.md.Parser().Parse(text.NewReader([]byte(src)))
	source := []byte(src)
	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				b.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.CodeSpan:
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					b.Write(t.Segment.Value(source))
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	out := strings.Join(strings.Fields(b.String()), " ")
	if max > 0 {
		r := []rune(out)
		if len(r) > max {
			return strings.TrimSpace(string(r[:max])) + "…"
		}
	}
	return out
}
