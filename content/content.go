// Package content defines the records a folio site is built from and the
// Source interface the feed and sitemap builders read them through.
package content

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrUnavailable marks a failure to read from a Source. Builders recover from
// it by degrading their output instead of failing the request.
var ErrUnavailable = errors.New("content source unavailable")

// ErrNotFound is returned when a single record lookup has no match.
var ErrNotFound = errors.New("content not found")

// Post is a blog post. Content holds markdown.
type Post struct {
	ID          string     `json:"id" yaml:"id"`
	Slug        string     `json:"slug" yaml:"slug"`
	Title       string     `json:"title" yaml:"title"`
	Excerpt     string     `json:"excerpt" yaml:"excerpt"`
	Content     string     `json:"content" yaml:"-"`
	Tags        []string   `json:"tags" yaml:"tags"`
	Published   bool       `json:"published" yaml:"published"`
	PublishedAt *time.Time `json:"publishedAt" yaml:"publishedAt"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" yaml:"updatedAt"`
}

// IsPublic reports whether the post may appear in feeds, sitemaps and the
// public API: it must be published and carry a publish time.
func (p Post) IsPublic() bool {
	return p.Published && p.PublishedAt != nil
}

// LastModified returns UpdatedAt, falling back to PublishedAt and then CreatedAt.
func (p Post) LastModified() time.Time {
	if !p.UpdatedAt.IsZero() {
		return p.UpdatedAt
	}
	if p.PublishedAt != nil {
		return *p.PublishedAt
	}
	return p.CreatedAt
}

// Project is a portfolio entry.
type Project struct {
	ID          string    `json:"id" yaml:"id"`
	Slug        string    `json:"slug" yaml:"slug"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	Body        string    `json:"body,omitempty" yaml:"-"`
	Stack       []string  `json:"stack" yaml:"stack"`
	Repo        string    `json:"repo,omitempty" yaml:"repo"`
	Live        string    `json:"live,omitempty" yaml:"live"`
	Thumbnail   string    `json:"thumbnail,omitempty" yaml:"thumbnail"`
	Featured    bool      `json:"featured" yaml:"featured"`
	SortOrder   int       `json:"sortOrder" yaml:"sortOrder"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Tag is a distinct tag across public posts.
type Tag struct {
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Source supplies ordered snapshots of site content. Implementations must be
// safe for concurrent use.
type Source interface {
	// ListPublishedPosts returns public posts, newest first.
	ListPublishedPosts(ctx context.Context) ([]Post, error)
	// ListProjects returns projects in display order.
	ListProjects(ctx context.Context) ([]Project, error)
	// ListTags returns distinct tags of public posts ordered by slug.
	ListTags(ctx context.Context) ([]Tag, error)
}

// SortPostsByPublished orders posts by PublishedAt descending. Posts without a
// publish time sort last. The sort is stable.
func SortPostsByPublished(posts []Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i].PublishedAt, posts[j].PublishedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

// SortProjects orders projects by SortOrder, then title.
func SortProjects(projects []Project) {
	sort.SliceStable(projects, func(i, j int) bool {
		if projects[i].SortOrder != projects[j].SortOrder {
			return projects[i].SortOrder < projects[j].SortOrder
		}
		return projects[i].Title < projects[j].Title
	})
}

// PublicPosts returns the public subset of posts, preserving order.
func PublicPosts(posts []Post) []Post {
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		if p.IsPublic() {
			out = append(out, p)
		}
	}
	return out
}

// TagsFromPosts collects the distinct tags of the public posts. A tag keeps the
// first spelling seen and the latest modification time of any post carrying it.
func TagsFromPosts(posts []Post) []Tag {
	bySlug := make(map[string]*Tag)
	for _, p := range posts {
		if !p.IsPublic() {
			continue
		}
		for _, name := range p.Tags {
			name = strings.TrimSpace(name)
			slug := Slugify(name)
			if slug == "" {
				continue
			}
			mod := p.LastModified()
			if t, ok := bySlug[slug]; ok {
				if mod.After(t.UpdatedAt) {
					t.UpdatedAt = mod
				}
				continue
			}
			bySlug[slug] = &Tag{Name: name, Slug: slug, UpdatedAt: mod}
		}
	}
	tags := make([]Tag, 0, len(bySlug))
	for _, t := range bySlug {
		tags = append(tags, *t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Slug < tags[j].Slug })
	return tags
}

// Slugify converts a title or tag name to a URL-safe slug. Accented letters are
// folded to their base form; "Next.js" becomes "next-js".
func Slugify(s string) string {
	// Chained transformers keep state, so one is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err == nil {
		s = folded
	}
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
