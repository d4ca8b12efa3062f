package folio

import (
	"strings"
)

// ParseTags splits a comma-delimited tag string (e.g. ",go,web,") into a slice.
func ParseTags(tagString string) []string {
	tagString = strings.Trim(tagString, ",")
	if tagString == "" {
		return nil
	}
	parts := strings.Split(tagString, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// encodeTags is the inverse of ParseTags. Commas inside a tag are dropped.
func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	clean := make([]string, len(tags))
	for i, t := range tags {
		clean[i] = strings.ReplaceAll(t, ",", "")
	}
	return "," + strings.Join(clean, ",") + ","
}

// FilterEmpty trims values and removes empty/whitespace-only strings.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
