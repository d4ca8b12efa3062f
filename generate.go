package folio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eringen/folio/content"
	"github.com/eringen/folio/feed"
	"github.com/eringen/folio/sitemap"
)

// WriteStatic renders the sitemap, robots policy and all feed formats into
// dir, for hosting behind a static file server.
func (a *App) WriteStatic(ctx context.Context, dir string) ([]string, error) {
	if err := a.Open(ctx); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("folio: generate: %w", err)
	}

	docs := []struct {
		name   string
		render func() ([]byte, error)
	}{
		{"sitemap.xml", func() ([]byte, error) { return a.Sitemap.Generate(ctx) }},
		{"robots.txt", func() ([]byte, error) { return []byte(sitemap.Robots(a.Config.URL, a.Config.Disallow)), nil }},
		{"rss.xml", func() ([]byte, error) { return a.Feed.Generate(ctx, feed.RSS) }},
		{"atom.xml", func() ([]byte, error) { return a.Feed.Generate(ctx, feed.Atom) }},
		{"feed.json", func() ([]byte, error) { return a.Feed.Generate(ctx, feed.JSON) }},
	}

	written := make([]string, 0, len(docs))
	for _, d := range docs {
		body, err := d.render()
		if err != nil {
			return written, fmt.Errorf("folio: generate %s: %w", d.name, err)
		}
		path := filepath.Join(dir, d.name)
		if err := os.WriteFile(path, body, 0o644); err != nil {
			return written, fmt.Errorf("folio: generate %s: %w", d.name, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// ImportDir loads every post and project of a markdown content directory
// into the SQLite store, drafts included.
func (a *App) ImportDir(ctx context.Context, dir string) (posts, projects int, err error) {
	if err := a.openStore(); err != nil {
		return 0, 0, err
	}
	src := content.NewDirSource(dir)
	allPosts, err := src.AllPosts(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("folio: import posts: %w", err)
	}
	allProjects, err := src.ListProjects(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("folio: import projects: %w", err)
	}
	if err := a.Store.Import(ctx, allPosts, allProjects); err != nil {
		return 0, 0, fmt.Errorf("folio: import: %w", err)
	}
	return len(allPosts), len(allProjects), nil
}
