package folio

import (
	"context"
	"sync"
	"time"

	"github.com/eringen/folio/content"
)

// ContentCache is an in-memory read-through snapshot of a content.Source
// with TTL. It is itself a content.Source. Failed loads are not cached.
type ContentCache struct {
	mu       sync.RWMutex
	loaded   bool
	posts    []content.Post
	projects []content.Project
	tags     []content.Tag
	fetched  time.Time
	ttl      time.Duration
	source   content.Source
	now      func() time.Time
}

// NewContentCache creates a ContentCache over src. A ttl of zero or less
// disables caching.
func NewContentCache(src content.Source, ttl time.Duration) *ContentCache {
	return &ContentCache{source: src, ttl: ttl, now: time.Now}
}

func (c *ContentCache) valid() bool {
	return c.loaded && c.now().Sub(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *ContentCache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.posts, c.projects, c.tags = nil, nil, nil
	c.mu.Unlock()
}

func (c *ContentCache) load(ctx context.Context) error {
	if c.valid() {
		return nil
	}
	posts, err := c.source.ListPublishedPosts(ctx)
	if err != nil {
		return err
	}
	projects, err := c.source.ListProjects(ctx)
	if err != nil {
		return err
	}
	tags, err := c.source.ListTags(ctx)
	if err != nil {
		return err
	}
	c.posts, c.projects, c.tags = posts, projects, tags
	c.fetched = c.now()
	c.loaded = true
	return nil
}

// snapshot returns the cached records after ensuring the cache is fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *ContentCache) snapshot(ctx context.Context) ([]content.Post, []content.Project, []content.Tag, error) {
	c.mu.RLock()
	if c.valid() {
		posts, projects, tags := c.posts, c.projects, c.tags
		c.mu.RUnlock()
		return posts, projects, tags, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, nil, nil, err
	}
	return c.posts, c.projects, c.tags, nil
}

// ListPublishedPosts returns a copy of the cached public posts.
func (c *ContentCache) ListPublishedPosts(ctx context.Context) ([]content.Post, error) {
	posts, _, _, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return append([]content.Post(nil), posts...), nil
}

// ListProjects returns a copy of the cached projects.
func (c *ContentCache) ListProjects(ctx context.Context) ([]content.Project, error) {
	_, projects, _, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return append([]content.Project(nil), projects...), nil
}

// ListTags returns a copy of the cached tags.
func (c *ContentCache) ListTags(ctx context.Context) ([]content.Tag, error) {
	_, _, tags, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return append([]content.Tag(nil), tags...), nil
}

// GetPost returns a public post by ID or slug from the cache.
func (c *ContentCache) GetPost(ctx context.Context, idOrSlug string) (content.Post, error) {
	posts, _, _, err := c.snapshot(ctx)
	if err != nil {
		return content.Post{}, err
	}
	for _, p := range posts {
		if (p.ID == idOrSlug || p.Slug == idOrSlug) && p.IsPublic() {
			return p, nil
		}
	}
	return content.Post{}, ErrNotFound
}
