package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter is returned for a document that opens a
// frontmatter block with "---" but never closes it.
var ErrMissingClosingDelimiter = errors.New("frontmatter: missing closing delimiter")

// DirSource reads content from a directory of markdown files:
//
//	<root>/posts/*.md
//	<root>/projects/*.md
//
// Each file may start with a YAML frontmatter block delimited by "---" lines.
// The directory is read on every call; wrap it in a cache for serving.
type DirSource struct {
	root string
}

// NewDirSource returns a DirSource rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{root: dir}
}

// Root returns the content directory.
func (d *DirSource) Root() string { return d.root }

type postFrontmatter struct {
	ID          string     `yaml:"id"`
	Slug        string     `yaml:"slug"`
	Title       string     `yaml:"title"`
	Excerpt     string     `yaml:"excerpt"`
	Description string     `yaml:"description"`
	Tags        []string   `yaml:"tags"`
	Draft       bool       `yaml:"draft"`
	Published   *bool      `yaml:"published"`
	Date        *time.Time `yaml:"date"`
	PublishedAt *time.Time `yaml:"publishedAt"`
	Updated     *time.Time `yaml:"updated"`
}

type projectFrontmatter struct {
	ID          string     `yaml:"id"`
	Slug        string     `yaml:"slug"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Stack       []string   `yaml:"stack"`
	Repo        string     `yaml:"repo"`
	Live        string     `yaml:"live"`
	Thumbnail   string     `yaml:"thumbnail"`
	Featured    bool       `yaml:"featured"`
	SortOrder   int        `yaml:"sortOrder"`
	Date        *time.Time `yaml:"date"`
	Updated     *time.Time `yaml:"updated"`
}

// AllPosts returns every post in the directory, drafts included, newest first.
func (d *DirSource) AllPosts(ctx context.Context) ([]Post, error) {
	files, err := d.files("posts")
	if err != nil {
		return nil, err
	}
	posts := make([]Post, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := parsePostFile(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, filepath.Base(f), err)
		}
		posts = append(posts, p)
	}
	SortPostsByPublished(posts)
	return posts, nil
}

func (d *DirSource) ListPublishedPosts(ctx context.Context) ([]Post, error) {
	posts, err := d.AllPosts(ctx)
	if err != nil {
		return nil, err
	}
	return PublicPosts(posts), nil
}

func (d *DirSource) ListProjects(ctx context.Context) ([]Project, error) {
	files, err := d.files("projects")
	if err != nil {
		return nil, err
	}
	projects := make([]Project, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := parseProjectFile(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, filepath.Base(f), err)
		}
		projects = append(projects, p)
	}
	SortProjects(projects)
	return projects, nil
}

func (d *DirSource) ListTags(ctx context.Context) ([]Tag, error) {
	posts, err := d.AllPosts(ctx)
	if err != nil {
		return nil, err
	}
	return TagsFromPosts(posts), nil
}

func (d *DirSource) files(sub string) ([]string, error) {
	dir := filepath.Join(d.root, sub)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return files, nil
}

func parsePostFile(path string) (Post, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Post{}, err
	}
	fm, body, err := SplitFrontmatter(raw)
	if err != nil {
		return Post{}, err
	}
	var meta postFrontmatter
	if err := yaml.Unmarshal(fm, &meta); err != nil {
		return Post{}, fmt.Errorf("parse frontmatter: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Post{}, err
	}

	slug := meta.Slug
	if slug == "" {
		slug = Slugify(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}
	id := meta.ID
	if id == "" {
		id = slug
	}
	excerpt := meta.Excerpt
	if excerpt == "" {
		excerpt = meta.Description
	}
	published := !meta.Draft
	if meta.Published != nil {
		published = *meta.Published
	}
	publishedAt := meta.PublishedAt
	if publishedAt == nil {
		publishedAt = meta.Date
	}
	if publishedAt != nil {
		t := publishedAt.UTC()
		publishedAt = &t
	}
	updated := info.ModTime().UTC()
	if meta.Updated != nil {
		updated = meta.Updated.UTC()
	} else if publishedAt != nil {
		updated = *publishedAt
	}
	created := updated
	if publishedAt != nil {
		created = *publishedAt
	}

	return Post{
		ID:          id,
		Slug:        slug,
		Title:       meta.Title,
		Excerpt:     excerpt,
		Content:     string(body),
		Tags:        meta.Tags,
		Published:   published,
		PublishedAt: publishedAt,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

func parseProjectFile(path string) (Project, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Project{}, err
	}
	fm, body, err := SplitFrontmatter(raw)
	if err != nil {
		return Project{}, err
	}
	var meta projectFrontmatter
	if err := yaml.Unmarshal(fm, &meta); err != nil {
		return Project{}, fmt.Errorf("parse frontmatter: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Project{}, err
	}

	slug := meta.Slug
	if slug == "" {
		slug = Slugify(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}
	id := meta.ID
	if id == "" {
		id = slug
	}
	updated := info.ModTime().UTC()
	if meta.Updated != nil {
		updated = meta.Updated.UTC()
	}
	created := updated
	if meta.Date != nil {
		created = meta.Date.UTC()
	}

	return Project{
		ID:          id,
		Slug:        slug,
		Title:       meta.Title,
		Description: meta.Description,
		Body:        string(body),
		Stack:       meta.Stack,
		Repo:        meta.Repo,
		Live:        meta.Live,
		Thumbnail:   meta.Thumbnail,
		Featured:    meta.Featured,
		SortOrder:   meta.SortOrder,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

// SplitFrontmatter separates a leading "---" delimited YAML block from the
// markdown body. A document without frontmatter returns an empty block and
// the whole input as body. CRLF line endings are accepted.
func SplitFrontmatter(content []byte) (frontmatter []byte, body []byte, err error) {
	nl := "\n"
	if bytes.HasPrefix(content, []byte("---\r\n")) {
		nl = "\r\n"
	}
	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return nil, content, nil
	}
	rest := content[len(open):]
	if bytes.HasPrefix(rest, open) {
		return []byte{}, rest[len(open):], nil
	}
	closeSeq := []byte(nl + "---" + nl)
	idx := bytes.Index(rest, closeSeq)
	if idx < 0 {
		// A closing delimiter at end of file has no trailing newline.
		if bytes.HasSuffix(rest, []byte(nl+"---")) {
			return rest[:len(rest)-len(nl+"---")+len(nl)], []byte{}, nil
		}
		return nil, nil, ErrMissingClosingDelimiter
	}
	return rest[:idx+len(nl)], rest[idx+len(closeSeq):], nil
}
