package folio

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/content"
)

type adminStatus struct {
	Authenticated bool   `json:"authenticated"`
	CSRFToken     string `json:"csrfToken"`
}

func (a *App) handleAdmin(c echo.Context) error {
	return c.JSON(http.StatusOK, adminStatus{Authenticated: IsAdmin(c), CSRFToken: CsrfToken(c)})
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.JSON(http.StatusTooManyRequests, apiError{Error: "Too many login attempts. Try again later."})
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) != 1 {
		a.loginLimiter.Record(ip)
		a.Logger.Warn("admin login failed", "ip", ip)
		return c.JSON(http.StatusUnauthorized, apiError{Error: "Invalid password"})
	}
	if err := setAdminSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, adminStatus{Authenticated: true, CSRFToken: CsrfToken(c)})
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, adminStatus{})
}

// writable rejects content writes when the site is not served from SQLite.
func (a *App) writable(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if a.source != content.Source(a.Store) {
			return c.JSON(http.StatusMethodNotAllowed, apiError{Error: "Content is read-only"})
		}
		return next(c)
	}
}

// writeError maps store errors onto API responses.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return c.JSON(http.StatusNotFound, apiError{Error: "Not found"})
	case errors.Is(err, ErrSlugTaken):
		return c.JSON(http.StatusConflict, apiError{Error: "Slug already in use"})
	case errors.Is(err, ErrSlugRequired):
		return c.JSON(http.StatusBadRequest, apiError{Error: "Title or slug is required"})
	}
	return err
}

type postInput struct {
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Excerpt     string     `json:"excerpt"`
	Content     string     `json:"content"`
	Tags        []string   `json:"tags"`
	Published   bool       `json:"published"`
	PublishedAt *time.Time `json:"publishedAt"`
}

func (in postInput) apply(p *content.Post) {
	p.Slug = in.Slug
	p.Title = in.Title
	p.Excerpt = in.Excerpt
	p.Content = in.Content
	p.Tags = in.Tags
	if in.PublishedAt != nil || !in.Published || !p.Published {
		p.PublishedAt = in.PublishedAt
	}
	p.Published = in.Published
}

func (a *App) handleAdminPosts(c echo.Context) error {
	posts, err := a.Store.ListAllPosts(c.Request().Context())
	if err != nil {
		return err
	}
	if posts == nil {
		posts = []content.Post{}
	}
	return c.JSON(http.StatusOK, posts)
}

func (a *App) handleCreatePost(c echo.Context) error {
	var in postInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, apiError{Error: "Invalid post"})
	}
	var p content.Post
	in.apply(&p)
	saved, err := a.Store.SavePost(c.Request().Context(), p)
	if err != nil {
		return writeError(c, err)
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusCreated, saved)
}

func (a *App) handleUpdatePost(c echo.Context) error {
	ctx := c.Request().Context()
	existing, err := a.Store.GetPost(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	var in postInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, apiError{Error: "Invalid post"})
	}
	in.apply(&existing)
	saved, err := a.Store.SavePost(ctx, existing)
	if err != nil {
		return writeError(c, err)
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, saved)
}

func (a *App) handleDeletePost(c echo.Context) error {
	if err := a.Store.DeletePost(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	a.Cache.Invalidate()
	return c.NoContent(http.StatusNoContent)
}

type projectInput struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Body        string   `json:"body"`
	Stack       []string `json:"stack"`
	Repo        string   `json:"repo"`
	Live        string   `json:"live"`
	Thumbnail   string   `json:"thumbnail"`
	Featured    bool     `json:"featured"`
	SortOrder   int      `json:"sortOrder"`
}

func (in projectInput) apply(p *content.Project) {
	p.Slug = in.Slug
	p.Title = in.Title
	p.Description = in.Description
	p.Body = in.Body
	p.Stack = in.Stack
	p.Repo = in.Repo
	p.Live = in.Live
	p.Thumbnail = in.Thumbnail
	p.Featured = in.Featured
	p.SortOrder = in.SortOrder
}

func (a *App) handleCreateProject(c echo.Context) error {
	var in projectInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, apiError{Error: "Invalid project"})
	}
	var p content.Project
	in.apply(&p)
	saved, err := a.Store.SaveProject(c.Request().Context(), p)
	if err != nil {
		return writeError(c, err)
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusCreated, saved)
}

func (a *App) handleUpdateProject(c echo.Context) error {
	ctx := c.Request().Context()
	existing, err := a.Store.GetProject(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	var in projectInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, apiError{Error: "Invalid project"})
	}
	in.apply(&existing)
	saved, err := a.Store.SaveProject(ctx, existing)
	if err != nil {
		return writeError(c, err)
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, saved)
}

func (a *App) handleDeleteProject(c echo.Context) error {
	if err := a.Store.DeleteProject(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	a.Cache.Invalidate()
	return c.NoContent(http.StatusNoContent)
}
