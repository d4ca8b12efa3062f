package folio

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/content"
	"github.com/eringen/folio/feed"
	"github.com/eringen/folio/sitemap"
)

type apiError struct {
	Error string `json:"error"`
}

// Content types of the generated documents.
const (
	mimeRSS  = "application/rss+xml; charset=utf-8"
	mimeAtom = "application/atom+xml; charset=utf-8"
	mimeJSON = "application/feed+json; charset=utf-8"
	mimeText = "text/plain; charset=utf-8"
)

func (a *App) handleSitemap(c echo.Context) error {
	body, err := a.Sitemap.Generate(c.Request().Context())
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationXML, body)
}

func (a *App) handleRobots(c echo.Context) error {
	return c.Blob(http.StatusOK, mimeText, []byte(sitemap.Robots(a.Config.URL, a.Config.Disallow)))
}

func (a *App) feedHandler(format feed.Format, contentType string) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := a.Feed.Generate(c.Request().Context(), format)
		if err != nil {
			return err
		}
		return c.Blob(http.StatusOK, contentType, body)
	}
}

func (a *App) handleHealth(c echo.Context) error {
	if a.Store != nil {
		if err := a.Store.Ping(c.Request().Context()); err != nil {
			a.Logger.Error("health check failed", "error", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleListPosts(c echo.Context) error {
	posts, err := a.Cache.ListPublishedPosts(c.Request().Context())
	if err != nil {
		return err
	}
	if posts == nil {
		posts = []content.Post{}
	}
	return c.JSON(http.StatusOK, posts)
}

func (a *App) handleGetPost(c echo.Context) error {
	post, err := a.Cache.GetPost(c.Request().Context(), c.Param("id"))
	if errors.Is(err, content.ErrNotFound) {
		return c.JSON(http.StatusNotFound, apiError{Error: "Post not found"})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (a *App) handleListProjects(c echo.Context) error {
	projects, err := a.Cache.ListProjects(c.Request().Context())
	if err != nil {
		return err
	}
	if projects == nil {
		projects = []content.Project{}
	}
	return c.JSON(http.StatusOK, projects)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}
	if code >= 500 {
		a.Logger.Error("server error",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"error", err,
		)
		message = http.StatusText(code)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		_ = c.JSON(code, apiError{Error: message})
		return
	}
	_ = RenderStatus(c, code, ErrorPage(a.Config.Name, code, message))
}
