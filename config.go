package folio

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eringen/folio/content"
	"github.com/eringen/folio/sitemap"
)

// SiteConfig holds all configuration for a folio site.
type SiteConfig struct {
	Name        string `yaml:"name"`        // Site name (default "Blog")
	URL         string `yaml:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `yaml:"description"` // Site description for feeds
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`

	Addr         string `yaml:"addr"`          // Listen address (default ":3000")
	DatabasePath string `yaml:"database_path"` // SQLite path (default "data/folio.db")
	ContentDir   string `yaml:"content_dir"`   // Markdown content directory; empty uses SQLite

	AdminPassword string `yaml:"-"` // Required for serve: admin login password
	SessionSecret string `yaml:"-"` // Required for serve: session encryption secret
	CookieSecure  bool   `yaml:"cookie_secure"`

	CacheTTL      time.Duration `yaml:"cache_ttl"`      // Content cache TTL (default 5min)
	WatchDebounce time.Duration `yaml:"watch_debounce"` // Content dir change debounce (default 250ms)

	Routes   []sitemap.StaticRoute `yaml:"routes"`   // Sitemap static routes (default sitemap.DefaultStaticRoutes)
	Disallow []string              `yaml:"disallow"` // robots.txt disallow prefixes

	NewsletterRateLimit int    `yaml:"newsletter_rate_limit"` // Signups per IP per minute (default 5)
	ResendAPIKey        string `yaml:"-"`
	MailFrom            string `yaml:"mail_from"`
	WelcomeIntro        string `yaml:"welcome_intro"` // Markdown shown in the welcome email
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	c.URL = strings.TrimRight(c.URL, "/")
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/folio.db"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.WatchDebounce == 0 {
		c.WatchDebounce = 250 * time.Millisecond
	}
	if c.Routes == nil {
		c.Routes = sitemap.DefaultStaticRoutes()
	}
	if c.Disallow == nil {
		c.Disallow = sitemap.DefaultDisallow()
	}
	if c.NewsletterRateLimit == 0 {
		c.NewsletterRateLimit = 5
	}
	if c.MailFrom == "" {
		c.MailFrom = c.Name + " <noreply@" + hostOf(c.URL) + ">"
	}
}

func hostOf(u string) string {
	u = strings.TrimPrefix(strings.TrimPrefix(u, "https://"), "http://")
	if i := strings.IndexAny(u, "/:"); i >= 0 {
		u = u[:i]
	}
	return u
}

// Validate checks the values a running server depends on.
func (c *SiteConfig) Validate() error {
	var errs []error
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		errs = append(errs, fmt.Errorf("url %q must start with http:// or https://", c.URL))
	}
	if err := sitemap.ValidateRoutes(c.Routes); err != nil {
		errs = append(errs, err)
	}
	if c.CacheTTL < 0 {
		errs = append(errs, errors.New("cache_ttl must not be negative"))
	}
	return errors.Join(errs...)
}

// LoadConfigFile reads a YAML config file into cfg. A missing file is not an
// error; cfg is left unchanged.
func LoadConfigFile(path string, cfg *SiteConfig) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("folio: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("folio: parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with the environment variables that are set.
func ApplyEnv(cfg *SiteConfig, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("SITE_NAME", &cfg.Name)
	str("SITE_URL", &cfg.URL)
	str("SITE_DESCRIPTION", &cfg.Description)
	str("SITE_AUTHOR", &cfg.AuthorName)
	str("SITE_AUTHOR_EMAIL", &cfg.AuthorEmail)
	str("ADDR", &cfg.Addr)
	str("DATABASE_PATH", &cfg.DatabasePath)
	str("CONTENT_DIR", &cfg.ContentDir)
	str("ADMIN_PASSWORD", &cfg.AdminPassword)
	str("ADMIN_SESSION_SECRET", &cfg.SessionSecret)
	str("RESEND_API_KEY", &cfg.ResendAPIKey)
	str("MAIL_FROM", &cfg.MailFrom)
	str("WELCOME_INTRO", &cfg.WelcomeIntro)

	if v := getenv("COOKIE_SECURE"); v != "" {
		cfg.CookieSecure = strings.EqualFold(v, "true")
	}
	if v := getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("folio: CACHE_TTL: %w", err)
		}
		cfg.CacheTTL = d
	}
	if v := getenv("NEWSLETTER_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("folio: NEWSLETTER_RATE_LIMIT: %w", err)
		}
		cfg.NewsletterRateLimit = n
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithSource serves content from src instead of SQLite or ContentDir.
func WithSource(src content.Source) Option {
	return func(a *App) {
		a.source = src
	}
}

// WithLogger sets the application logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}
