package folio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/eringen/folio/content"
)

var (
	// ErrNotFound is returned when a requested post or project does not exist.
	ErrNotFound = content.ErrNotFound
	// ErrSlugTaken is returned when a save would duplicate another record's slug.
	ErrSlugTaken = errors.New("slug already in use")
	// ErrSlugRequired is returned when neither a slug nor a title is given.
	ErrSlugRequired = errors.New("slug is required: add a title or slug")
)

// timeLayout is fixed width so stored timestamps sort chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps a SQLite database holding posts and projects. It implements
// content.Source.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	// Pragmas in the DSN apply to every pooled connection. busy_timeout makes
	// writers wait instead of failing with SQLITE_BUSY.
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// DB exposes the connection pool for stores that share the database file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    slug TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    excerpt TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '',
    published INTEGER NOT NULL DEFAULT 0,
    published_at TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_published_at ON posts(published, published_at);

CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    slug TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    stack TEXT NOT NULL DEFAULT '',
    repo TEXT NOT NULL DEFAULT '',
    live TEXT NOT NULL DEFAULT '',
    thumbnail TEXT NOT NULL DEFAULT '',
    featured INTEGER NOT NULL DEFAULT 0,
    sort_order INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`)
	return err
}

const postColumns = `id, slug, title, excerpt, content, tags, published, published_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (content.Post, error) {
	var p content.Post
	var tags, created, updated string
	var published int
	var publishedAt sql.NullString
	if err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Excerpt, &p.Content, &tags, &published, &publishedAt, &created, &updated); err != nil {
		return content.Post{}, err
	}
	p.Tags = ParseTags(tags)
	p.Published = published == 1
	var err error
	if publishedAt.Valid && publishedAt.String != "" {
		t, perr := time.Parse(timeLayout, publishedAt.String)
		if perr != nil {
			return content.Post{}, fmt.Errorf("post %s: published_at: %w", p.Slug, perr)
		}
		p.PublishedAt = &t
	}
	if p.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return content.Post{}, fmt.Errorf("post %s: created_at: %w", p.Slug, err)
	}
	if p.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return content.Post{}, fmt.Errorf("post %s: updated_at: %w", p.Slug, err)
	}
	return p, nil
}

func (s *Store) queryPosts(ctx context.Context, query string, args ...any) ([]content.Post, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []content.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// ListPublishedPosts returns public posts ordered by publish date descending.
func (s *Store) ListPublishedPosts(ctx context.Context) ([]content.Post, error) {
	posts, err := s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts WHERE published = 1 AND published_at IS NOT NULL ORDER BY published_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list posts: %v", content.ErrUnavailable, err)
	}
	return posts, nil
}

// ListAllPosts returns every post, drafts included, newest first (for admin).
func (s *Store) ListAllPosts(ctx context.Context) ([]content.Post, error) {
	return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts ORDER BY COALESCE(published_at, created_at) DESC`)
}

// ListTags returns the distinct tags of public posts.
func (s *Store) ListTags(ctx context.Context) ([]content.Tag, error) {
	posts, err := s.ListPublishedPosts(ctx)
	if err != nil {
		return nil, err
	}
	return content.TagsFromPosts(posts), nil
}

// GetPost returns a post by ID or slug regardless of published status.
func (s *Store) GetPost(ctx context.Context, idOrSlug string) (content.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ? OR slug = ?`, idOrSlug, idOrSlug))
	if errors.Is(err, sql.ErrNoRows) {
		return content.Post{}, ErrNotFound
	}
	return p, err
}

// SavePost upserts a post keyed by ID. A missing ID is generated, a missing
// slug is derived from the title, and publishing without a date stamps now.
func (s *Store) SavePost(ctx context.Context, p content.Post) (content.Post, error) {
	now := s.now().UTC()
	p.Title = strings.TrimSpace(p.Title)
	p.Slug = strings.TrimSpace(p.Slug)
	if p.Slug == "" {
		p.Slug = content.Slugify(p.Title)
	}
	if p.Slug == "" {
		return content.Post{}, ErrSlugRequired
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Published && p.PublishedAt == nil {
		p.PublishedAt = &now
	}
	p.Tags = FilterEmpty(p.Tags)

	var publishedAt sql.NullString
	if p.PublishedAt != nil {
		publishedAt = sql.NullString{String: p.PublishedAt.UTC().Format(timeLayout), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO posts (`+postColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    slug = excluded.slug,
    title = excluded.title,
    excerpt = excluded.excerpt,
    content = excluded.content,
    tags = excluded.tags,
    published = excluded.published,
    published_at = excluded.published_at,
    updated_at = excluded.updated_at`,
		p.ID, p.Slug, p.Title, p.Excerpt, p.Content, encodeTags(p.Tags), boolInt(p.Published), publishedAt,
		p.CreatedAt.UTC().Format(timeLayout), p.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return content.Post{}, uniqueViolation(err)
	}
	return s.GetPost(ctx, p.ID)
}

// DeletePost removes a post by ID or slug.
func (s *Store) DeletePost(ctx context.Context, idOrSlug string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ? OR slug = ?`, idOrSlug, idOrSlug)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

const projectColumns = `id, slug, title, description, body, stack, repo, live, thumbnail, featured, sort_order, created_at, updated_at`

func scanProject(row rowScanner) (content.Project, error) {
	var p content.Project
	var stack, created, updated string
	var featured int
	if err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Description, &p.Body, &stack, &p.Repo, &p.Live, &p.Thumbnail, &featured, &p.SortOrder, &created, &updated); err != nil {
		return content.Project{}, err
	}
	p.Stack = ParseTags(stack)
	p.Featured = featured == 1
	var err error
	if p.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return content.Project{}, fmt.Errorf("project %s: created_at: %w", p.Slug, err)
	}
	if p.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return content.Project{}, fmt.Errorf("project %s: updated_at: %w", p.Slug, err)
	}
	return p, nil
}

// ListProjects returns all projects in display order.
func (s *Store) ListProjects(ctx context.Context) ([]content.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY sort_order ASC, title ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list projects: %v", content.ErrUnavailable, err)
	}
	defer rows.Close()

	var projects []content.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", content.ErrUnavailable, err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list projects: %v", content.ErrUnavailable, err)
	}
	return projects, nil
}

// GetProject returns a project by ID or slug.
func (s *Store) GetProject(ctx context.Context, idOrSlug string) (content.Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ? OR slug = ?`, idOrSlug, idOrSlug))
	if errors.Is(err, sql.ErrNoRows) {
		return content.Project{}, ErrNotFound
	}
	return p, err
}

// SaveProject upserts a project keyed by ID.
func (s *Store) SaveProject(ctx context.Context, p content.Project) (content.Project, error) {
	now := s.now().UTC()
	p.Title = strings.TrimSpace(p.Title)
	p.Slug = strings.TrimSpace(p.Slug)
	if p.Slug == "" {
		p.Slug = content.Slugify(p.Title)
	}
	if p.Slug == "" {
		return content.Project{}, ErrSlugRequired
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    slug = excluded.slug,
    title = excluded.title,
    description = excluded.description,
    body = excluded.body,
    stack = excluded.stack,
    repo = excluded.repo,
    live = excluded.live,
    thumbnail = excluded.thumbnail,
    featured = excluded.featured,
    sort_order = excluded.sort_order,
    updated_at = excluded.updated_at`,
		p.ID, p.Slug, p.Title, p.Description, p.Body, encodeTags(FilterEmpty(p.Stack)), p.Repo, p.Live, p.Thumbnail,
		boolInt(p.Featured), p.SortOrder, p.CreatedAt.UTC().Format(timeLayout), p.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return content.Project{}, uniqueViolation(err)
	}
	return s.GetProject(ctx, p.ID)
}

// DeleteProject removes a project by ID or slug.
func (s *Store) DeleteProject(ctx context.Context, idOrSlug string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ? OR slug = ?`, idOrSlug, idOrSlug)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// Import upserts posts and projects by slug in one transaction, keeping the
// existing ID of a slug that is already stored.
func (s *Store) Import(ctx context.Context, posts []content.Post, projects []content.Project) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.now().UTC()
	for _, p := range posts {
		if err := adoptIdentity(ctx, tx, "posts", p.Slug, &p.ID, &p.CreatedAt); err != nil {
			return fmt.Errorf("import post %s: %w", p.Slug, err)
		}
		if err := upsertPostTx(ctx, tx, p, now); err != nil {
			return fmt.Errorf("import post %s: %w", p.Slug, err)
		}
	}
	for _, p := range projects {
		if err := adoptIdentity(ctx, tx, "projects", p.Slug, &p.ID, &p.CreatedAt); err != nil {
			return fmt.Errorf("import project %s: %w", p.Slug, err)
		}
		if err := upsertProjectTx(ctx, tx, p, now); err != nil {
			return fmt.Errorf("import project %s: %w", p.Slug, err)
		}
	}
	return tx.Commit()
}

// adoptIdentity copies the stored ID and creation time of slug into id and
// created, or assigns a fresh ID when the slug is new.
func adoptIdentity(ctx context.Context, tx *sql.Tx, table, slug string, id *string, created *time.Time) error {
	var storedID, storedCreated string
	err := tx.QueryRowContext(ctx, `SELECT id, created_at FROM `+table+` WHERE slug = ?`, slug).Scan(&storedID, &storedCreated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if *id == "" {
			*id = uuid.NewString()
		}
		return nil
	case err != nil:
		return err
	}
	t, err := time.Parse(timeLayout, storedCreated)
	if err != nil {
		return err
	}
	*id, *created = storedID, t
	return nil
}

func upsertPostTx(ctx context.Context, tx *sql.Tx, p content.Post, now time.Time) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	var publishedAt sql.NullString
	if p.PublishedAt != nil {
		publishedAt = sql.NullString{String: p.PublishedAt.UTC().Format(timeLayout), Valid: true}
	}
	_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO posts (`+postColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Slug, p.Title, p.Excerpt, p.Content, encodeTags(FilterEmpty(p.Tags)), boolInt(p.Published), publishedAt,
		p.CreatedAt.UTC().Format(timeLayout), p.UpdatedAt.UTC().Format(timeLayout))
	return err
}

func upsertProjectTx(ctx context.Context, tx *sql.Tx, p content.Project, now time.Time) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Slug, p.Title, p.Description, p.Body, encodeTags(FilterEmpty(p.Stack)), p.Repo, p.Live, p.Thumbnail,
		boolInt(p.Featured), p.SortOrder, p.CreatedAt.UTC().Format(timeLayout), p.UpdatedAt.UTC().Format(timeLayout))
	return err
}

func uniqueViolation(err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrSlugTaken, err)
	}
	return err
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
