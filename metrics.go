package folio

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eringen/folio/feed"
)

// Metrics records builder and newsletter activity on a private registry.
// It implements sitemap.Recorder, feed.Recorder and newsletter.Recorder.
type Metrics struct {
	reg            *prom.Registry
	feedBuilds     *prom.CounterVec
	feedItems      *prom.GaugeVec
	sitemapBuilds  *prom.CounterVec
	sitemapEntries prom.Gauge
	subscriptions  *prom.CounterVec
	welcomeEmails  *prom.CounterVec
}

// NewMetrics registers the folio collectors plus the Go and process
// collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{reg: prom.NewRegistry()}
	m.feedBuilds = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "folio",
		Name:      "feed_builds_total",
		Help:      "Feed builds by format and outcome",
	}, []string{"format", "outcome"})
	m.feedItems = prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "folio",
		Name:      "feed_items",
		Help:      "Items in the last built feed per format",
	}, []string{"format"})
	m.sitemapBuilds = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "folio",
		Name:      "sitemap_builds_total",
		Help:      "Sitemap builds by outcome",
	}, []string{"outcome"})
	m.sitemapEntries = prom.NewGauge(prom.GaugeOpts{
		Namespace: "folio",
		Name:      "sitemap_entries",
		Help:      "Entries in the last built sitemap",
	})
	m.subscriptions = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "folio",
		Name:      "newsletter_subscriptions_total",
		Help:      "Newsletter subscription attempts by outcome",
	}, []string{"outcome"})
	m.welcomeEmails = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "folio",
		Name:      "newsletter_welcome_emails_total",
		Help:      "Welcome email sends by result",
	}, []string{"result"})
	m.reg.MustRegister(
		m.feedBuilds, m.feedItems, m.sitemapBuilds, m.sitemapEntries, m.subscriptions, m.welcomeEmails,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func outcome(degraded bool) string {
	if degraded {
		return "degraded"
	}
	return "ok"
}

func (m *Metrics) FeedBuilt(format feed.Format, items int, degraded bool) {
	m.feedBuilds.WithLabelValues(string(format), outcome(degraded)).Inc()
	m.feedItems.WithLabelValues(string(format)).Set(float64(items))
}

func (m *Metrics) SitemapBuilt(entries int, degraded bool) {
	m.sitemapBuilds.WithLabelValues(outcome(degraded)).Inc()
	m.sitemapEntries.Set(float64(entries))
}

func (m *Metrics) Subscription(outcome string) {
	m.subscriptions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) WelcomeEmail(result string) {
	m.welcomeEmails.WithLabelValues(result).Inc()
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prom.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
