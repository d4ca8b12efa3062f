// Package sitemap builds the sitemap.xml document and the robots.txt policy
// from a content.Source snapshot.
package sitemap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eringen/folio/content"
)

// Namespace is the sitemap protocol XML namespace.
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// LastModLayout formats <lastmod> as a UTC instant with millisecond precision.
const LastModLayout = "2006-01-02T15:04:05.000Z"

// ChangeFreq is the sitemap change-frequency hint.
type ChangeFreq string

const (
	Always  ChangeFreq = "always"
	Hourly  ChangeFreq = "hourly"
	Daily   ChangeFreq = "daily"
	Weekly  ChangeFreq = "weekly"
	Monthly ChangeFreq = "monthly"
	Yearly  ChangeFreq = "yearly"
	Never   ChangeFreq = "never"
)

// Valid reports whether f is one of the protocol's values.
func (f ChangeFreq) Valid() bool {
	switch f {
	case Always, Hourly, Daily, Weekly, Monthly, Yearly, Never:
		return true
	}
	return false
}

// StaticRoute is a fixed page of the site.
type StaticRoute struct {
	Path         string     `yaml:"path"`
	Priority     float64    `yaml:"priority"`
	ChangeFreq   ChangeFreq `yaml:"changefreq"`
	LastModified time.Time  `yaml:"lastmod"`
}

// DefaultStaticRoutes lists the marketing pages in sitemap order.
func DefaultStaticRoutes() []StaticRoute {
	return []StaticRoute{
		{Path: "", Priority: 1.0, ChangeFreq: Weekly},
		{Path: "/blog", Priority: 0.9, ChangeFreq: Daily},
		{Path: "/projects", Priority: 0.9, ChangeFreq: Weekly},
		{Path: "/product", Priority: 0.8, ChangeFreq: Monthly},
		{Path: "/about", Priority: 0.7, ChangeFreq: Monthly},
	}
}

// ValidateRoutes checks priorities and change frequencies.
func ValidateRoutes(routes []StaticRoute) error {
	for _, r := range routes {
		if r.Priority < 0 || r.Priority > 1 {
			return fmt.Errorf("sitemap: route %q: priority %v outside [0,1]", r.Path, r.Priority)
		}
		if !r.ChangeFreq.Valid() {
			return fmt.Errorf("sitemap: route %q: invalid changefreq %q", r.Path, r.ChangeFreq)
		}
		if r.Path != "" && !strings.HasPrefix(r.Path, "/") {
			return fmt.Errorf("sitemap: route %q: path must start with /", r.Path)
		}
	}
	return nil
}

// Entry is one <url> of the sitemap.
type Entry struct {
	Loc          string
	LastModified time.Time
	ChangeFreq   ChangeFreq
	Priority     float64
}

// Per-kind metadata for dynamic entries.
const (
	PostPriority    = 0.7
	ProjectPriority = 0.6
	TagPriority     = 0.5
)

// Recorder observes sitemap builds. A nil Recorder is allowed.
type Recorder interface {
	SitemapBuilt(entries int, degraded bool)
}

// Builder produces sitemaps. It holds no state between calls.
type Builder struct {
	baseURL  string
	routes   []StaticRoute
	source   content.Source
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithRoutes replaces the default static routes.
func WithRoutes(routes []StaticRoute) Option {
	return func(b *Builder) { b.routes = append([]StaticRoute(nil), routes...) }
}

// WithLogger sets the logger used for degraded builds.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(b *Builder) { b.recorder = r }
}

// WithClock overrides the clock used for static routes without a lastmod.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// New returns a Builder for the site at baseURL reading from src.
func New(baseURL string, src content.Source, opts ...Option) *Builder {
	b := &Builder{
		baseURL: strings.TrimRight(baseURL, "/"),
		routes:  DefaultStaticRoutes(),
		source:  src,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// snapshot reads posts, projects and tags. Any failure discards the whole
// snapshot so the sitemap never mixes partial dynamic content.
func (b *Builder) snapshot(ctx context.Context) ([]content.Post, []content.Project, []content.Tag, error) {
	if b.source == nil {
		return nil, nil, nil, content.ErrUnavailable
	}
	posts, err := b.source.ListPublishedPosts(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list posts: %w", err)
	}
	projects, err := b.source.ListProjects(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list projects: %w", err)
	}
	tags, err := b.source.ListTags(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list tags: %w", err)
	}
	return posts, projects, tags, nil
}

// Entries returns the sitemap entries: static routes in declaration order,
// then public posts, projects and distinct tags in source order. A Content
// Source failure is logged and yields the static routes only.
func (b *Builder) Entries(ctx context.Context) []Entry {
	entries, _ := b.entries(ctx)
	return entries
}

func (b *Builder) entries(ctx context.Context) ([]Entry, bool) {
	now := b.now().UTC()
	entries := make([]Entry, 0, len(b.routes))
	for _, r := range b.routes {
		mod := r.LastModified
		if mod.IsZero() {
			mod = now
		}
		entries = append(entries, Entry{
			Loc:          b.baseURL + r.Path,
			LastModified: mod,
			ChangeFreq:   r.ChangeFreq,
			Priority:     r.Priority,
		})
	}

	posts, projects, tags, err := b.snapshot(ctx)
	if err != nil {
		b.logger.Warn("Sitemap degraded to static routes", "error", err)
		return entries, true
	}

	seen := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		if !p.IsPublic() {
			continue
		}
		if _, dup := seen[p.Slug]; dup {
			continue
		}
		seen[p.Slug] = struct{}{}
		entries = append(entries, Entry{
			Loc:          b.baseURL + "/blog/" + url.PathEscape(p.Slug),
			LastModified: p.LastModified(),
			ChangeFreq:   Monthly,
			Priority:     PostPriority,
		})
	}
	for _, p := range projects {
		entries = append(entries, Entry{
			Loc:          b.baseURL + "/projects/" + url.PathEscape(p.Slug),
			LastModified: p.UpdatedAt,
			ChangeFreq:   Monthly,
			Priority:     ProjectPriority,
		})
	}
	seenTags := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		slug := t.Slug
		if slug == "" {
			slug = content.Slugify(t.Name)
		}
		if _, dup := seenTags[slug]; dup || slug == "" {
			continue
		}
		seenTags[slug] = struct{}{}
		entries = append(entries, Entry{
			Loc:          b.baseURL + "/blog/tags/" + url.PathEscape(slug),
			LastModified: t.UpdatedAt,
			ChangeFreq:   Weekly,
			Priority:     TagPriority,
		})
	}
	return entries, false
}

type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNS   string   `xml:"xmlns,attr"`
	URLs    []urlXML `xml:"url"`
}

type urlXML struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// Generate returns the sitemap XML document. Content Source failures never
// surface here; the error covers XML encoding only.
func (b *Builder) Generate(ctx context.Context) ([]byte, error) {
	entries, degraded := b.entries(ctx)
	if b.recorder != nil {
		b.recorder.SitemapBuilt(len(entries), degraded)
	}
	return Marshal(entries)
}

// Marshal encodes entries as a sitemap document.
func Marshal(entries []Entry) ([]byte, error) {
	set := urlSet{XMLNS: Namespace, URLs: make([]urlXML, 0, len(entries))}
	for _, e := range entries {
		set.URLs = append(set.URLs, urlXML{
			Loc:        e.Loc,
			LastMod:    e.LastModified.UTC().Format(LastModLayout),
			ChangeFreq: string(e.ChangeFreq),
			Priority:   FormatPriority(e.Priority),
		})
	}
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return nil, fmt.Errorf("sitemap: encode: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// FormatPriority renders a priority with one decimal place.
func FormatPriority(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64)
}
