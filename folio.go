// Package folio serves the syndication and discovery surface of a personal
// portfolio and blog: sitemap, robots policy, RSS/Atom/JSON feeds, a
// newsletter signup API and a small content JSON API.
//
// Content comes from a content.Source: the SQLite Store by default, a
// markdown directory when ContentDir is set, or any Source passed with
// WithSource.
package folio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/content"
	"github.com/eringen/folio/feed"
	"github.com/eringen/folio/newsletter"
	"github.com/eringen/folio/sitemap"
)

// App is the central folio application. It wires together the content
// source, cache, builders, newsletter, handlers and middleware.
type App struct {
	Config     SiteConfig
	Echo       *echo.Echo
	Store      *Store
	Cache      *ContentCache
	Sitemap    *sitemap.Builder
	Feed       *feed.Builder
	Newsletter *newsletter.Registrar
	Metrics    *Metrics
	Logger     *slog.Logger

	source            content.Source
	loginLimiter      *LoginLimiter
	newsletterHandler *newsletter.Handler
	customRoutes      []func(*App)
	stopWatch         context.CancelFunc
	watchDone         chan struct{}
	opened            bool
	initialized       bool
}

// New creates a new folio App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	a := &App{
		Config: cfg,
		Echo:   e,
	}

	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		a.Logger = slog.Default()
	}

	return a
}

// Open prepares the content side of the app: source, cache, metrics and the
// sitemap and feed builders. It does not touch HTTP state.
func (a *App) Open(ctx context.Context) error {
	if a.opened {
		return nil
	}
	if err := a.Config.Validate(); err != nil {
		return fmt.Errorf("folio: config: %w", err)
	}

	if a.source == nil {
		if a.Config.ContentDir != "" {
			a.source = content.NewDirSource(a.Config.ContentDir)
		} else {
			if err := a.openStore(); err != nil {
				return err
			}
			a.source = a.Store
		}
	}

	a.Cache = NewContentCache(a.source, a.Config.CacheTTL)
	a.Metrics = NewMetrics()

	a.Sitemap = sitemap.New(a.Config.URL, a.Cache,
		sitemap.WithRoutes(a.Config.Routes),
		sitemap.WithLogger(a.Logger),
		sitemap.WithRecorder(a.Metrics),
	)
	a.Feed = feed.New(feed.Config{
		SiteURL:     a.Config.URL,
		Title:       a.Config.Name,
		Description: a.Config.Description,
		Author: feed.Author{
			Name:  a.Config.AuthorName,
			Email: a.Config.AuthorEmail,
		},
	}, a.Cache,
		feed.WithLogger(a.Logger),
		feed.WithRecorder(a.Metrics),
	)

	a.opened = true
	return nil
}

func (a *App) openStore() error {
	if a.Store != nil {
		return nil
	}
	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("folio: init store: %w", err)
	}
	a.Store = store
	return nil
}

func (a *App) watch(root string) {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopWatch = cancel
	a.watchDone = make(chan struct{})
	go func() {
		defer close(a.watchDone)
		if err := content.Watch(ctx, root, a.Config.WatchDebounce, a.Cache.Invalidate, a.Logger); err != nil {
			a.Logger.Error("content watcher stopped", "dir", root, "error", err)
		}
	}()
}

// Init opens the app and sets up the newsletter, middleware and routes. It
// is called by Start; tests call it directly and drive a.Echo.
func (a *App) Init(ctx context.Context) error {
	if a.initialized {
		return nil
	}
	if a.Config.AdminPassword == "" {
		return errors.New("folio: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return errors.New("folio: SessionSecret is required")
	}
	if err := a.Open(ctx); err != nil {
		return err
	}

	// Subscribers and admin writes always live in SQLite.
	if err := a.openStore(); err != nil {
		return err
	}
	subscribers, err := newsletter.NewSQLStore(ctx, a.Store.DB())
	if err != nil {
		return fmt.Errorf("folio: init newsletter: %w", err)
	}
	a.Newsletter = newsletter.NewRegistrar(subscribers,
		newsletter.WithMailer(a.mailer()),
		newsletter.WithLogger(a.Logger),
		newsletter.WithRecorder(a.Metrics),
	)
	a.newsletterHandler = newsletter.NewHandler(a.Newsletter, newsletter.HandlerConfig{
		RateLimit: a.Config.NewsletterRateLimit,
		Logger:    a.Logger,
	})

	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	if dir, ok := a.source.(*content.DirSource); ok {
		a.watch(dir.Root())
	}

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}

	a.initialized = true
	return nil
}

func (a *App) mailer() newsletter.Mailer {
	if a.Config.ResendAPIKey == "" {
		return newsletter.LogMailer{Logger: a.Logger}
	}
	return newsletter.NewResendMailer(a.Config.ResendAPIKey, a.Config.MailFrom, newsletter.Welcome{
		SiteName: a.Config.Name,
		SiteURL:  a.Config.URL,
		Intro:    a.Config.WelcomeIntro,
	})
}

// Start initializes the app and starts the server. It returns nil after a
// graceful Shutdown.
func (a *App) Start() error {
	if err := a.Init(context.Background()); err != nil {
		return err
	}
	a.Logger.Info("folio listening", "addr", a.Config.Addr, "url", a.Config.URL)
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully and releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	return errors.Join(err, a.Close())
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/rss.xml", a.feedHandler(feed.RSS, mimeRSS))
	e.GET("/feed.xml", a.feedHandler(feed.RSS, mimeRSS))
	e.GET("/atom.xml", a.feedHandler(feed.Atom, mimeAtom))
	e.GET("/feed.json", a.feedHandler(feed.JSON, mimeJSON))
	e.GET("/healthz", a.handleHealth)
	e.GET("/metrics", echo.WrapHandler(a.Metrics.Handler()))

	api := e.Group("/api")
	api.GET("/posts", a.handleListPosts)
	api.GET("/posts/:id", a.handleGetPost)
	api.GET("/projects", a.handleListProjects)
	a.newsletterHandler.RegisterRoutes(api)

	// Content writes
	api.GET("/admin/posts", a.handleAdminPosts, requireAdmin)
	api.POST("/posts", a.handleCreatePost, requireAdmin, a.writable)
	api.PUT("/posts/:id", a.handleUpdatePost, requireAdmin, a.writable)
	api.DELETE("/posts/:id", a.handleDeletePost, requireAdmin, a.writable)
	api.POST("/projects", a.handleCreateProject, requireAdmin, a.writable)
	api.PUT("/projects/:id", a.handleUpdateProject, requireAdmin, a.writable)
	api.DELETE("/projects/:id", a.handleDeleteProject, requireAdmin, a.writable)

	// Admin session
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.stopWatch != nil {
		a.stopWatch()
		<-a.watchDone
		a.stopWatch = nil
	}
	if a.newsletterHandler != nil {
		a.newsletterHandler.Close()
	}
	if a.Newsletter != nil {
		a.Newsletter.Wait()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Close()
	}
	if a.Store != nil {
		err := a.Store.Close()
		a.Store = nil
		return err
	}
	return nil
}
