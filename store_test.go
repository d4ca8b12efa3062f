package folio

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/eringen/folio/content"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "folio.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr(t time.Time) *time.Time { return &t }

func TestNewStore(t *testing.T) {
	s := setupTestStore(t)
	if s.DB() == nil {
		t.Fatal("db should not be nil")
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestSaveAndGetPost(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	published := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	saved, err := s.SavePost(ctx, content.Post{
		Title:       "Test Post",
		Excerpt:     "A test post summary",
		Content:     "# Test Content\n\nThis is test content.",
		Tags:        []string{"go", " testing ", ""},
		Published:   true,
		PublishedAt: ptr(published),
	})
	if err != nil {
		t.Fatalf("SavePost failed: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected a generated ID")
	}
	if saved.Slug != "test-post" {
		t.Errorf("Slug = %q, want %q", saved.Slug, "test-post")
	}

	for _, key := range []string{saved.ID, "test-post"} {
		got, err := s.GetPost(ctx, key)
		if err != nil {
			t.Fatalf("GetPost(%q) failed: %v", key, err)
		}
		if got.Title != "Test Post" {
			t.Errorf("Title = %q, want %q", got.Title, "Test Post")
		}
		if got.Excerpt != "A test post summary" {
			t.Errorf("Excerpt = %q", got.Excerpt)
		}
		if len(got.Tags) != 2 || got.Tags[0] != "go" || got.Tags[1] != "testing" {
			t.Errorf("Tags = %v, want [go testing]", got.Tags)
		}
		if got.PublishedAt == nil || !got.PublishedAt.Equal(published) {
			t.Errorf("PublishedAt = %v, want %v", got.PublishedAt, published)
		}
	}
}

func TestSavePostUpdate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return first }
	p, err := s.SavePost(ctx, content.Post{Title: "Original"})
	if err != nil {
		t.Fatalf("SavePost failed: %v", err)
	}

	second := first.Add(time.Hour)
	s.now = func() time.Time { return second }
	p.Title = "Updated"
	p.Published = true
	updated, err := s.SavePost(ctx, p)
	if err != nil {
		t.Fatalf("SavePost update failed: %v", err)
	}
	if updated.ID != p.ID {
		t.Errorf("ID changed from %q to %q", p.ID, updated.ID)
	}
	if updated.Title != "Updated" {
		t.Errorf("Title = %q, want Updated", updated.Title)
	}
	if !updated.CreatedAt.Equal(first) {
		t.Errorf("CreatedAt = %v, want %v", updated.CreatedAt, first)
	}
	if !updated.UpdatedAt.Equal(second) {
		t.Errorf("UpdatedAt = %v, want %v", updated.UpdatedAt, second)
	}
	if updated.PublishedAt == nil || !updated.PublishedAt.Equal(second) {
		t.Errorf("publishing should stamp PublishedAt, got %v", updated.PublishedAt)
	}
}

func TestSavePostSlugTaken(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.SavePost(ctx, content.Post{Title: "Same"}); err != nil {
		t.Fatalf("SavePost failed: %v", err)
	}
	_, err := s.SavePost(ctx, content.Post{Title: "Other", Slug: "same"})
	if !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
}

func TestSavePostRequiresSlug(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.SavePost(context.Background(), content.Post{Title: "   "})
	if !errors.Is(err, ErrSlugRequired) {
		t.Fatalf("expected ErrSlugRequired, got %v", err)
	}
}

func TestGetPostNotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.GetPost(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPublishedPosts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	posts := []content.Post{
		{Title: "Old", Published: true, PublishedAt: ptr(time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC))},
		{Title: "New", Published: true, PublishedAt: ptr(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))},
		{Title: "Draft"},
	}
	for _, p := range posts {
		if _, err := s.SavePost(ctx, p); err != nil {
			t.Fatalf("SavePost(%s) failed: %v", p.Title, err)
		}
	}

	got, err := s.ListPublishedPosts(ctx)
	if err != nil {
		t.Fatalf("ListPublishedPosts failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 published posts, got %d", len(got))
	}
	if got[0].Title != "New" || got[1].Title != "Old" {
		t.Errorf("order = [%s %s], want [New Old]", got[0].Title, got[1].Title)
	}

	all, err := s.ListAllPosts(ctx)
	if err != nil {
		t.Fatalf("ListAllPosts failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 posts including the draft, got %d", len(all))
	}
}

func TestListTags(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	inputs := []content.Post{
		{Title: "A", Tags: []string{"Go", "Web"}, Published: true, PublishedAt: ptr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))},
		{Title: "B", Tags: []string{"Go"}, Published: true, PublishedAt: ptr(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))},
		{Title: "C", Tags: []string{"Secret"}},
	}
	for _, p := range inputs {
		if _, err := s.SavePost(ctx, p); err != nil {
			t.Fatalf("SavePost failed: %v", err)
		}
	}

	tags, err := s.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags failed: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("expected 2 tags from public posts, got %v", tags)
	}
	if tags[0].Slug != "go" || tags[1].Slug != "web" {
		t.Errorf("tags = %v, want go and web", tags)
	}
}

func TestDeletePost(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	p, err := s.SavePost(ctx, content.Post{Title: "To Delete"})
	if err != nil {
		t.Fatalf("SavePost failed: %v", err)
	}
	if err := s.DeletePost(ctx, p.Slug); err != nil {
		t.Fatalf("DeletePost failed: %v", err)
	}
	if _, err := s.GetPost(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeletePost(ctx, p.Slug); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleting twice should return ErrNotFound, got %v", err)
	}
}

func TestProjects(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	second, err := s.SaveProject(ctx, content.Project{Title: "Second", SortOrder: 2, Stack: []string{"Go", "SQLite"}})
	if err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}
	if _, err := s.SaveProject(ctx, content.Project{Title: "First", SortOrder: 1, Featured: true}); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	projects, err := s.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(projects) != 2 || projects[0].Title != "First" || projects[1].Title != "Second" {
		t.Fatalf("unexpected project order: %+v", projects)
	}
	if !projects[0].Featured {
		t.Error("expected First to be featured")
	}

	got, err := s.GetProject(ctx, "second")
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if got.ID != second.ID || len(got.Stack) != 2 || got.Stack[1] != "SQLite" {
		t.Errorf("GetProject = %+v", got)
	}

	if err := s.DeleteProject(ctx, second.ID); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}
	if _, err := s.GetProject(ctx, second.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestImportKeepsIdentityBySlug(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	existing, err := s.SavePost(ctx, content.Post{Title: "Hello World"})
	if err != nil {
		t.Fatalf("SavePost failed: %v", err)
	}

	posts := []content.Post{
		{Slug: "hello-world", Title: "Hello World, revised", Published: true, PublishedAt: ptr(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))},
		{Slug: "fresh", Title: "Fresh"},
	}
	projects := []content.Project{{Slug: "tool", Title: "Tool"}}
	if err := s.Import(ctx, posts, projects); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	got, err := s.GetPost(ctx, "hello-world")
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if got.ID != existing.ID {
		t.Errorf("ID = %q, want existing %q", got.ID, existing.ID)
	}
	if got.Title != "Hello World, revised" {
		t.Errorf("Title = %q", got.Title)
	}
	if _, err := s.GetPost(ctx, "fresh"); err != nil {
		t.Errorf("imported post missing: %v", err)
	}
	if _, err := s.GetProject(ctx, "tool"); err != nil {
		t.Errorf("imported project missing: %v", err)
	}
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{",go,web,", []string{"go", "web"}},
		{"go", []string{"go"}},
		{"", nil},
		{",,", nil},
		{", spaced , tags ,", []string{"spaced", "tags"}},
	}
	for _, tt := range tests {
		got := ParseTags(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("ParseTags(%q) = %v, want %v", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseTags(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}

func TestEncodeTagsRoundTrip(t *testing.T) {
	tags := []string{"go", "a,b"}
	got := ParseTags(encodeTags(tags))
	if len(got) != 2 || got[0] != "go" || got[1] != "ab" {
		t.Errorf("round trip = %v, want [go ab]", got)
	}
	if encodeTags(nil) != "" {
		t.Errorf("encodeTags(nil) should be empty")
	}
}
