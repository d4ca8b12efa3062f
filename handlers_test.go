package folio

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/content"
)

const testPassword = "correct horse battery staple"

func newTestApp(t *testing.T, opts ...Option) *App {
	t.Helper()
	cfg := SiteConfig{
		Name:          "Drew Hub",
		URL:           "https://drew.example",
		Description:   "Notes on building software",
		AuthorName:    "Drew",
		AuthorEmail:   "drew@drew.example",
		DatabasePath:  filepath.Join(t.TempDir(), "folio.db"),
		AdminPassword: testPassword,
		SessionSecret: "0123456789abcdef0123456789abcdef",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(cfg, append([]Option{WithLogger(logger)}, opts...)...)
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// client replays cookies between requests like a browser.
type client struct {
	app     *App
	cookies map[string]*http.Cookie
}

func newClient(a *App) *client {
	return &client{app: a, cookies: make(map[string]*http.Cookie)}
}

func (cl *client) do(method, target string, body io.Reader, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	for _, ck := range cl.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	cl.app.Echo.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(cl.cookies, ck.Name)
			continue
		}
		cl.cookies[ck.Name] = ck
	}
	return rec
}

func (cl *client) get(target string) *httptest.ResponseRecorder {
	return cl.do(http.MethodGet, target, nil, nil)
}

// login fetches a CSRF token, signs in and returns the token for later writes.
func (cl *client) login(t *testing.T) string {
	t.Helper()
	rec := cl.get("/admin/")
	var status adminStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode admin status: %v", err)
	}
	if status.CSRFToken == "" {
		t.Fatal("expected a CSRF token")
	}
	form := url.Values{"password": {testPassword}, "_csrf": {status.CSRFToken}}
	rec = cl.do(http.MethodPost, "/admin/login/", strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d, body %s", rec.Code, rec.Body.String())
	}
	return status.CSRFToken
}

func (cl *client) writeJSON(method, target, token, body string) *httptest.ResponseRecorder {
	return cl.do(method, target, strings.NewReader(body), map[string]string{
		"Content-Type": "application/json",
		"X-CSRF-Token": token,
	})
}

func TestSitemapEndpoint(t *testing.T) {
	a := newTestApp(t, WithSource(content.Fixtures()))
	rec := newClient(a).get("/sitemap.xml")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("Content-Type = %q, want application/xml", ct)
	}
	body := rec.Body.String()
	if got := strings.Count(body, "<url>"); got != 20 {
		t.Errorf("expected 20 urls, got %d", got)
	}
	for _, want := range []string{
		"<loc>https://drew.example</loc>",
		"<loc>https://drew.example/blog/getting-started-with-nextjs-14</loc>",
		"<loc>https://drew.example/projects/drew-hub-saas-platform</loc>",
		"<loc>https://drew.example/blog/tags/nextjs</loc>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("sitemap missing %s", want)
		}
	}
}

func TestRobotsEndpoint(t *testing.T) {
	a := newTestApp(t, WithSource(content.Fixtures()))
	rec := newClient(a).get("/robots.txt")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=86400" {
		t.Errorf("Cache-Control = %q", cc)
	}
	body := rec.Body.String()
	for _, want := range []string{"User-agent: *", "Disallow: /api/", "Sitemap: https://drew.example/sitemap.xml"} {
		if !strings.Contains(body, want) {
			t.Errorf("robots.txt missing %q:\n%s", want, body)
		}
	}
}

func TestFeedEndpoints(t *testing.T) {
	a := newTestApp(t, WithSource(content.Fixtures()))
	cl := newClient(a)

	tests := []struct {
		path        string
		contentType string
		marker      string
	}{
		{"/rss.xml", "application/rss+xml; charset=utf-8", `<rss version="2.0"`},
		{"/feed.xml", "application/rss+xml; charset=utf-8", `<rss version="2.0"`},
		{"/atom.xml", "application/atom+xml; charset=utf-8", `<feed xmlns="http://www.w3.org/2005/Atom"`},
		{"/feed.json", "application/feed+json; charset=utf-8", `"version": "https://jsonfeed.org/version/1"`},
	}
	for _, tt := range tests {
		rec := cl.get(tt.path)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", tt.path, rec.Code)
			continue
		}
		if ct := rec.Header().Get("Content-Type"); ct != tt.contentType {
			t.Errorf("%s: Content-Type = %q, want %q", tt.path, ct, tt.contentType)
		}
		if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=3600, stale-while-revalidate=86400" {
			t.Errorf("%s: Cache-Control = %q", tt.path, cc)
		}
		body := rec.Body.String()
		if !strings.Contains(body, tt.marker) {
			t.Errorf("%s: body missing %s", tt.path, tt.marker)
		}
		if !strings.Contains(body, "The Future of Web Development in 2024") {
			t.Errorf("%s: body missing newest post", tt.path)
		}
	}
}

func TestDegradedSourceStillServes(t *testing.T) {
	src := content.Fixtures()
	src.Err = errors.New("database offline")
	a := newTestApp(t, WithSource(src))
	cl := newClient(a)

	rec := cl.get("/sitemap.xml")
	if rec.Code != http.StatusOK {
		t.Fatalf("sitemap status = %d", rec.Code)
	}
	if got := strings.Count(rec.Body.String(), "<url>"); got != 5 {
		t.Errorf("degraded sitemap should list the 5 static routes, got %d", got)
	}

	rec = cl.get("/rss.xml")
	if rec.Code != http.StatusOK {
		t.Fatalf("rss status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "<item>") {
		t.Error("degraded feed should have no items")
	}

	rec = cl.get("/metrics")
	body := rec.Body.String()
	for _, want := range []string{
		`folio_sitemap_builds_total{outcome="degraded"} 1`,
		`folio_feed_builds_total{format="rss",outcome="degraded"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestNewsletterEndpoints(t *testing.T) {
	a := newTestApp(t)
	cl := newClient(a)
	jsonHeader := map[string]string{"Content-Type": "application/json", "Origin": "https://elsewhere.example"}

	rec := cl.do(http.MethodPost, "/api/newsletter", strings.NewReader(`{"email":"  Reader@Example.COM ","name":"Reader"}`), jsonHeader)
	if rec.Code != http.StatusCreated {
		t.Fatalf("subscribe: status %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	var created struct {
		Message    string `json:"message"`
		Subscriber struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"subscriber"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Subscriber.Email != "reader@example.com" {
		t.Errorf("email = %q, want normalized", created.Subscriber.Email)
	}

	rec = cl.do(http.MethodPost, "/api/newsletter", strings.NewReader(`{"email":"reader@example.com"}`), jsonHeader)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate: status %d, want 409", rec.Code)
	}

	rec = cl.do(http.MethodPost, "/api/newsletter", strings.NewReader(`{"email":"nope"}`), jsonHeader)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid: status %d, want 400", rec.Code)
	}

	rec = cl.get("/api/newsletter")
	if !strings.Contains(rec.Body.String(), `"count":1`) {
		t.Errorf("count body = %s", rec.Body.String())
	}

	rec = cl.get("/api/newsletter/unsubscribe?token=" + created.Subscriber.ID)
	if rec.Code != http.StatusOK {
		t.Errorf("unsubscribe: status %d", rec.Code)
	}
	rec = cl.get("/api/newsletter")
	if !strings.Contains(rec.Body.String(), `"count":0`) {
		t.Errorf("count after unsubscribe = %s", rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	a := newTestApp(t, WithSource(content.Fixtures()))
	rec := newClient(a).do(http.MethodOptions, "/api/posts", nil, map[string]string{
		"Origin":                        "https://elsewhere.example",
		"Access-Control-Request-Method": "POST",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET,POST,PUT,DELETE,OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
}

func TestContentAPI(t *testing.T) {
	a := newTestApp(t, WithSource(content.Fixtures()))
	cl := newClient(a)

	rec := cl.get("/api/posts")
	var posts []content.Post
	if err := json.Unmarshal(rec.Body.Bytes(), &posts); err != nil {
		t.Fatalf("decode posts: %v", err)
	}
	if len(posts) != 3 || posts[0].Slug != "future-of-web-development-2024" {
		t.Fatalf("unexpected posts: %+v", posts)
	}

	for _, key := range []string{"2", "building-saas-with-typescript-prisma"} {
		rec = cl.get("/api/posts/" + key)
		if rec.Code != http.StatusOK {
			t.Errorf("GET /api/posts/%s: status %d", key, rec.Code)
		}
	}

	rec = cl.get("/api/posts/missing")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), `"error"`) {
		t.Errorf("missing post: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = cl.get("/api/projects")
	var projects []content.Project
	if err := json.Unmarshal(rec.Body.Bytes(), &projects); err != nil {
		t.Fatalf("decode projects: %v", err)
	}
	if len(projects) != 3 {
		t.Errorf("expected 3 projects, got %d", len(projects))
	}
}

func TestAdminWriteFlow(t *testing.T) {
	a := newTestApp(t)
	cl := newClient(a)

	rec := cl.get("/rss.xml")
	if strings.Contains(rec.Body.String(), "Hello Folio") {
		t.Fatal("feed should start empty")
	}

	token := cl.login(t)

	rec = cl.writeJSON(http.MethodPost, "/api/posts", token, `{"title":"Hello Folio","content":"Some **bold** text","tags":["go"],"published":true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", rec.Code, rec.Body.String())
	}
	var post content.Post
	if err := json.Unmarshal(rec.Body.Bytes(), &post); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if post.Slug != "hello-folio" || post.PublishedAt == nil {
		t.Fatalf("unexpected post: %+v", post)
	}

	rec = cl.get("/rss.xml")
	if !strings.Contains(rec.Body.String(), "Hello Folio") {
		t.Error("writes must invalidate the cache")
	}

	rec = cl.writeJSON(http.MethodPost, "/api/posts", token, `{"title":"Hello Folio"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate slug: status %d, want 409", rec.Code)
	}

	rec = cl.writeJSON(http.MethodPost, "/api/posts", token, `{"title":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing title: status %d, want 400", rec.Code)
	}

	rec = cl.writeJSON(http.MethodPut, "/api/posts/"+post.ID, token, `{"title":"Hello Again","slug":"hello-folio","published":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d, body %s", rec.Code, rec.Body.String())
	}
	rec = cl.get("/api/posts/hello-folio")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unpublished post should be hidden, status %d", rec.Code)
	}

	rec = cl.get("/api/admin/posts")
	if !strings.Contains(rec.Body.String(), "Hello Again") {
		t.Errorf("admin listing should include drafts: %s", rec.Body.String())
	}

	rec = cl.writeJSON(http.MethodPost, "/api/projects", token, `{"title":"Folio","stack":["go"],"sortOrder":1}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project: status %d, body %s", rec.Code, rec.Body.String())
	}
	rec = cl.get("/sitemap.xml")
	if !strings.Contains(rec.Body.String(), "<loc>https://drew.example/projects/folio</loc>") {
		t.Error("sitemap should list the new project")
	}
	rec = cl.writeJSON(http.MethodDelete, "/api/projects/folio", token, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete project: status %d", rec.Code)
	}

	rec = cl.writeJSON(http.MethodDelete, "/api/posts/"+post.ID, token, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: status %d", rec.Code)
	}
	rec = cl.writeJSON(http.MethodDelete, "/api/posts/"+post.ID, token, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status %d, want 404", rec.Code)
	}
}

func TestAdminUpdateKeepsPublishDate(t *testing.T) {
	a := newTestApp(t)
	cl := newClient(a)
	token := cl.login(t)

	rec := cl.writeJSON(http.MethodPost, "/api/posts", token, `{"title":"Dated","published":true,"publishedAt":"2024-01-15T10:00:00Z"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", rec.Code, rec.Body.String())
	}
	want := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	rec = cl.writeJSON(http.MethodPut, "/api/posts/dated", token, `{"title":"Dated, edited","slug":"dated","published":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d, body %s", rec.Code, rec.Body.String())
	}
	var post content.Post
	if err := json.Unmarshal(cl.get("/api/posts/dated").Body.Bytes(), &post); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if post.Title != "Dated, edited" {
		t.Errorf("Title = %q", post.Title)
	}
	if post.PublishedAt == nil || !post.PublishedAt.Equal(want) {
		t.Errorf("PublishedAt = %v, want %v", post.PublishedAt, want)
	}

	rec = cl.writeJSON(http.MethodPut, "/api/posts/dated", token, `{"title":"Dated, edited","slug":"dated","published":true,"publishedAt":"2024-02-01T00:00:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d, body %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &post); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !post.PublishedAt.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("explicit publishedAt should win, got %v", post.PublishedAt)
	}
}

func TestAdminWritesRequireSessionAndCSRF(t *testing.T) {
	a := newTestApp(t)
	cl := newClient(a)

	rec := cl.get("/admin/")
	var status adminStatus
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status.Authenticated {
		t.Fatal("fresh client should not be authenticated")
	}

	rec = cl.writeJSON(http.MethodPost, "/api/posts", status.CSRFToken, `{"title":"Sneaky"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without session: status %d, want 401", rec.Code)
	}

	token := cl.login(t)
	rec = cl.writeJSON(http.MethodPost, "/api/posts", "wrong-token", `{"title":"Forged"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("bad CSRF token: status %d, want 403", rec.Code)
	}

	rec = cl.do(http.MethodPost, "/admin/logout/", nil, map[string]string{"X-CSRF-Token": token})
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: status %d", rec.Code)
	}
	rec = cl.writeJSON(http.MethodPost, "/api/posts", token, `{"title":"After logout"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("after logout: status %d, want 401", rec.Code)
	}
}

func TestAdminLoginRejectsBadPassword(t *testing.T) {
	a := newTestApp(t)
	cl := newClient(a)

	rec := cl.get("/admin/")
	var status adminStatus
	json.Unmarshal(rec.Body.Bytes(), &status)

	attempt := func() int {
		form := url.Values{"password": {"guess"}, "_csrf": {status.CSRFToken}}
		return cl.do(http.MethodPost, "/admin/login/", strings.NewReader(form.Encode()), map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
		}).Code
	}
	for i := 0; i < 5; i++ {
		if code := attempt(); code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status %d, want 401", i+1, code)
		}
	}
	if code := attempt(); code != http.StatusTooManyRequests {
		t.Errorf("sixth attempt: status %d, want 429", code)
	}
}

func TestReadOnlySourceRejectsWrites(t *testing.T) {
	a := newTestApp(t, WithSource(content.Fixtures()))
	cl := newClient(a)
	token := cl.login(t)

	rec := cl.writeJSON(http.MethodPost, "/api/posts", token, `{"title":"Nope"}`)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status %d, want 405", rec.Code)
	}
}

func TestAdminTrailingSlashRedirect(t *testing.T) {
	a := newTestApp(t, WithSource(content.Fixtures()))
	rec := newClient(a).get("/admin")
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/admin/" {
		t.Errorf("Location = %q", loc)
	}
}

func TestErrorResponses(t *testing.T) {
	a := newTestApp(t, WithSource(content.Fixtures()))
	cl := newClient(a)

	rec := cl.get("/api/nothing-here")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("api: status %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		t.Errorf("api errors should be JSON, got %q", rec.Header().Get("Content-Type"))
	}

	rec = cl.get("/nothing-here")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("page: status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<h1>404</h1>") {
		t.Errorf("expected an HTML error page, got %s", rec.Body.String())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	a := newTestApp(t, WithSource(content.Fixtures()))
	cl := newClient(a)

	rec := cl.get("/healthz")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("healthz: status %d, body %s", rec.Code, rec.Body.String())
	}

	cl.get("/atom.xml")
	rec = cl.get("/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`folio_feed_builds_total{format="atom",outcome="ok"} 1`,
		`folio_feed_items{format="atom"} 3`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestCustomRoutes(t *testing.T) {
	a := newTestApp(t, WithSource(content.Fixtures()), WithCustomRoutes(func(a *App) {
		a.Echo.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	}))
	rec := newClient(a).get("/ping")
	if rec.Body.String() != "pong" {
		t.Errorf("custom route body = %q", rec.Body.String())
	}
}
