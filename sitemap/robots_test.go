package sitemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRobotsDefault(t *testing.T) {
	got := Robots("https://example.com/", DefaultDisallow())
	want := "User-agent: *\n" +
		"Allow: /\n" +
		"Disallow: /dashboard/\n" +
		"Disallow: /api/\n" +
		"Disallow: /admin/\n" +
		"\n" +
		"Sitemap: https://example.com/sitemap.xml\n"
	assert.Equal(t, want, got)
}

func TestRobotsSkipsBlankEntries(t *testing.T) {
	got := Robots("http://localhost:3000", []string{" ", "/private/"})
	assert.Equal(t, "User-agent: *\nAllow: /\nDisallow: /private/\n\nSitemap: http://localhost:3000/sitemap.xml\n", got)
}
