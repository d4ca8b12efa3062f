package content

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemorySource is an in-process Source, used for fixtures and tests. Setting
// Err makes every read fail with an error wrapping ErrUnavailable.
type MemorySource struct {
	mu       sync.RWMutex
	posts    []Post
	projects []Project
	Err      error
}

// NewMemorySource returns a MemorySource holding copies of posts and projects.
func NewMemorySource(posts []Post, projects []Project) *MemorySource {
	m := &MemorySource{}
	m.Replace(posts, projects)
	return m
}

// Replace swaps the stored records.
func (m *MemorySource) Replace(posts []Post, projects []Project) {
	p := append([]Post(nil), posts...)
	pr := append([]Project(nil), projects...)
	m.mu.Lock()
	m.posts = p
	m.projects = pr
	m.mu.Unlock()
}

func (m *MemorySource) fail() error {
	if m.Err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, m.Err)
}

func (m *MemorySource) ListPublishedPosts(ctx context.Context) ([]Post, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	posts := PublicPosts(m.posts)
	m.mu.RUnlock()
	SortPostsByPublished(posts)
	return posts, nil
}

func (m *MemorySource) ListProjects(ctx context.Context) ([]Project, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	projects := append([]Project(nil), m.projects...)
	m.mu.RUnlock()
	SortProjects(projects)
	return projects, nil
}

func (m *MemorySource) ListTags(ctx context.Context) ([]Tag, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return TagsFromPosts(m.posts), nil
}

// Fixtures returns the demo content a fresh site starts with.
func Fixtures() *MemorySource {
	day := func(d int) time.Time { return time.Date(2024, time.January, d, 9, 0, 0, 0, time.UTC) }
	at := func(d int) *time.Time { t := day(d); return &t }

	posts := []Post{
		{
			ID:          "1",
			Slug:        "getting-started-with-nextjs-14",
			Title:       "Getting Started with Next.js 14",
			Excerpt:     "Learn the basics of Next.js 14 and its new features.",
			Content:     "# Getting Started\n\nContent about Next.js 14...",
			Tags:        []string{"nextjs", "react", "javascript"},
			Published:   true,
			PublishedAt: at(10),
			CreatedAt:   day(8),
			UpdatedAt:   day(10),
		},
		{
			ID:          "2",
			Slug:        "building-saas-with-typescript-prisma",
			Title:       "Building SaaS with TypeScript and Prisma",
			Excerpt:     "A comprehensive guide to building SaaS applications with modern tools.",
			Content:     "Content about building **SaaS** applications...",
			Tags:        []string{"typescript", "prisma", "saas"},
			Published:   true,
			PublishedAt: at(17),
			CreatedAt:   day(15),
			UpdatedAt:   day(18),
		},
		{
			ID:          "3",
			Slug:        "future-of-web-development-2024",
			Title:       "The Future of Web Development in 2024",
			Excerpt:     "Exploring the latest trends and technologies shaping web development.",
			Content:     "Content about web development trends...",
			Tags:        []string{"webdev", "trends", "2024"},
			Published:   true,
			PublishedAt: at(24),
			CreatedAt:   day(22),
			UpdatedAt:   day(24),
		},
	}
	projects := []Project{
		{
			ID:          "1",
			Slug:        "ai-powered-content-generator",
			Title:       "AI-Powered Content Generator",
			Description: "Generates drafts and summaries from short prompts.",
			Stack:       []string{"go", "openai"},
			Featured:    true,
			SortOrder:   1,
			CreatedAt:   day(2),
			UpdatedAt:   day(12),
		},
		{
			ID:          "2",
			Slug:        "drew-hub-saas-platform",
			Title:       "Drew Hub SaaS Platform",
			Description: "The platform behind this site.",
			Stack:       []string{"go", "sqlite"},
			SortOrder:   2,
			CreatedAt:   day(3),
			UpdatedAt:   day(20),
		},
		{
			ID:          "3",
			Slug:        "ecommerce-dashboard-analytics",
			Title:       "E-commerce Dashboard Analytics",
			Description: "Sales and traffic dashboards for small shops.",
			Stack:       []string{"go", "postgres"},
			SortOrder:   3,
			CreatedAt:   day(4),
			UpdatedAt:   day(21),
		},
	}
	return NewMemorySource(posts, projects)
}
