package sitemap

import "strings"

// DefaultDisallow lists the private path prefixes crawlers are asked to skip.
func DefaultDisallow() []string {
	return []string{"/dashboard/", "/api/", "/admin/"}
}

// Robots returns the robots.txt policy: allow everything except the
// disallowed prefixes, and point crawlers at the sitemap.
func Robots(baseURL string, disallow []string) string {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Allow: /\n")
	for _, d := range disallow {
		if d = strings.TrimSpace(d); d != "" {
			b.WriteString("Disallow: " + d + "\n")
		}
	}
	b.WriteString("\nSitemap: " + strings.TrimRight(baseURL, "/") + "/sitemap.xml\n")
	return b.String()
}
