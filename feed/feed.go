// Package feed assembles the site's syndication feed from published posts
// and serializes it as RSS 2.0, Atom 1.0 and JSON Feed.
//
// All three formats are rendered from one assembled Feed value, so a single
// request never mixes item sets across formats.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/eringen/folio/content"
	"github.com/eringen/folio/markdown"
)

// MaxItems caps the number of items in a feed.
const MaxItems = 20

// Format names a serialization.
type Format string

const (
	RSS  Format = "rss"
	Atom Format = "atom"
	JSON Format = "json"
)

// Author identifies the person behind the site and its posts.
type Author struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	Link  string `yaml:"link"`
}

// Links are the self URLs of each serialization.
type Links struct {
	RSS  string
	Atom string
	JSON string
}

// Meta is the feed-level metadata block.
type Meta struct {
	ID          string
	Title       string
	Description string
	Link        string
	Language    string
	Image       string
	Favicon     string
	Copyright   string
	Generator   string
	Updated     time.Time
	Author      Author
	Links       Links
}

// Item is one entry of the feed.
type Item struct {
	ID          string
	Title       string
	Link        string
	Description string
	Content     string // HTML
	Author      Author
	Published   time.Time
	Updated     time.Time
	Categories  []string
}

// Feed is an assembled feed, ready to serialize.
type Feed struct {
	Meta
	Items []Item
}

// Config describes the site a Builder publishes for.
type Config struct {
	SiteURL     string
	Title       string
	Description string
	Language    string
	Generator   string
	Author      Author
	Limit       int
}

// Recorder observes feed builds. A nil Recorder is allowed.
type Recorder interface {
	FeedBuilt(format Format, items int, degraded bool)
}

// Builder assembles feeds from a content.Source. It holds no per-request state.
type Builder struct {
	cfg      Config
	base     string
	source   content.Source
	render   *markdown.Renderer
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used when the source fails.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(b *Builder) { b.recorder = r }
}

// WithClock overrides the clock used for the updated stamp and copyright year.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// New returns a Builder for cfg reading from src.
func New(cfg Config, src content.Source, opts ...Option) *Builder {
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Limit <= 0 || cfg.Limit > MaxItems {
		cfg.Limit = MaxItems
	}
	if cfg.Generator == "" {
		cfg.Generator = "folio"
	}
	base := strings.TrimRight(cfg.SiteURL, "/")
	if cfg.Author.Link == "" {
		cfg.Author.Link = base
	}
	b := &Builder{
		cfg:    cfg,
		base:   base,
		source: src,
		render: markdown.New(markdown.WithBaseURL(base)),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) meta() Meta {
	now := b.now().UTC()
	return Meta{
		ID:          b.base,
		Title:       b.cfg.Title,
		Description: b.cfg.Description,
		Link:        b.base,
		Language:    b.cfg.Language,
		Image:       b.base + "/logo.png",
		Favicon:     b.base + "/favicon.ico",
		Copyright:   fmt.Sprintf("All rights reserved %d, %s", now.Year(), b.cfg.Title),
		Generator:   b.cfg.Generator,
		Updated:     now,
		Author:      b.cfg.Author,
		Links: Links{
			RSS:  b.base + "/rss.xml",
			Atom: b.base + "/atom.xml",
			JSON: b.base + "/feed.json",
		},
	}
}

// Assemble builds the feed: the metadata block once, then one item per public
// post, newest first, capped at the configured limit. A source failure is
// logged and yields a feed with metadata and no items.
func (b *Builder) Assemble(ctx context.Context) *Feed {
	f, _ := b.assemble(ctx)
	return f
}

func (b *Builder) assemble(ctx context.Context) (*Feed, bool) {
	f := &Feed{Meta: b.meta(), Items: []Item{}}
	if b.source == nil {
		b.logger.Warn("Feed built without a content source")
		return f, true
	}
	posts, err := b.source.ListPublishedPosts(ctx)
	if err != nil {
		b.logger.Error("Error generating feed", "error", err)
		return f, true
	}
	posts = content.PublicPosts(posts)
	content.SortPostsByPublished(posts)
	if len(posts) > b.cfg.Limit {
		posts = posts[:b.cfg.Limit]
	}
	for _, p := range posts {
		f.Items = append(f.Items, b.item(p))
	}
	return f, false
}

func (b *Builder) item(p content.Post) Item {
	link := b.base + "/blog/" + url.PathEscape(p.Slug)
	body, err := b.render.HTML(p.Content)
	if err != nil {
		b.logger.Warn("Rendering post content failed", "slug", p.Slug, "error", err)
		body = ""
	}
	description := p.Excerpt
	if description == "" {
		description = markdown.PlainText(p.Content, 280)
	}
	published := p.PublishedAt.UTC()
	updated := p.UpdatedAt.UTC()
	if updated.IsZero() || updated.Before(published) {
		updated = published
	}
	categories := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		if t = strings.TrimSpace(t); t != "" {
			categories = append(categories, t)
		}
	}
	return Item{
		ID:          link,
		Title:       p.Title,
		Link:        link,
		Description: description,
		Content:     xmlChars(body),
		Author:      b.cfg.Author,
		Published:   published,
		Updated:     updated,
		Categories:  categories,
	}
}

// xmlChars drops runes outside the XML 1.0 Char production. Invalid UTF-8
// becomes U+FFFD. Content is written as CDATA, which encoding/xml does not
// check.
func xmlChars(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r >= 0x20 && r <= 0xD7FF,
			r >= 0xE000 && r <= 0xFFFD,
			r >= 0x10000 && r <= 0x10FFFF:
			return r
		}
		return -1
	}, s)
}

// Generate assembles the feed and serializes it in the requested format.
// Source failures never surface; the error covers encoding only.
func (b *Builder) Generate(ctx context.Context, format Format) ([]byte, error) {
	f, degraded := b.assemble(ctx)
	out, err := f.Encode(format)
	if err != nil {
		return nil, err
	}
	if b.recorder != nil {
		b.recorder.FeedBuilt(format, len(f.Items), degraded)
	}
	return out, nil
}

// RSS returns the RSS 2.0 document.
func (b *Builder) RSS(ctx context.Context) ([]byte, error) { return b.Generate(ctx, RSS) }

// Atom returns the Atom 1.0 document.
func (b *Builder) Atom(ctx context.Context) ([]byte, error) { return b.Generate(ctx, Atom) }

// JSON returns the JSON Feed document.
func (b *Builder) JSON(ctx context.Context) ([]byte, error) { return b.Generate(ctx, JSON) }

// Encode serializes f in format.
func (f *Feed) Encode(format Format) ([]byte, error) {
	switch format {
	case RSS:
		return f.RSS()
	case Atom:
		return f.Atom()
	case JSON:
		return f.JSON()
	default:
		return nil, fmt.Errorf("feed: unknown format %q", format)
	}
}
