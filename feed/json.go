package feed

import (
	"encoding/json"
	"fmt"
	"time"
)

const jsonFeedVersion = "https://jsonfeed.org/version/1"

type jsonFeed struct {
	Version     string      `json:"version"`
	Title       string      `json:"title"`
	HomePageURL string      `json:"home_page_url"`
	FeedURL     string      `json:"feed_url"`
	Description string      `json:"description,omitempty"`
	Icon        string      `json:"icon,omitempty"`
	Favicon     string      `json:"favicon,omitempty"`
	Author      *jsonAuthor `json:"author,omitempty"`
	Items       []jsonItem  `json:"items"`
}

type jsonAuthor struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

type jsonItem struct {
	ID            string      `json:"id"`
	URL           string      `json:"url"`
	Title         string      `json:"title"`
	ContentHTML   string      `json:"content_html,omitempty"`
	Summary       string      `json:"summary,omitempty"`
	DatePublished string      `json:"date_published"`
	DateModified  string      `json:"date_modified"`
	Author        *jsonAuthor `json:"author,omitempty"`
	Tags          []string    `json:"tags,omitempty"`
}

func jsonAuthorOf(a Author) *jsonAuthor {
	if a.Name == "" && a.Link == "" {
		return nil
	}
	return &jsonAuthor{Name: a.Name, URL: a.Link}
}

// JSON serializes the feed as JSON Feed version 1.
func (f *Feed) JSON() ([]byte, error) {
	doc := jsonFeed{
		Version:     jsonFeedVersion,
		Title:       f.Title,
		HomePageURL: f.Link,
		FeedURL:     f.Links.JSON,
		Description: f.Description,
		Icon:        f.Image,
		Favicon:     f.Favicon,
		Author:      jsonAuthorOf(f.Author),
		Items:       make([]jsonItem, 0, len(f.Items)),
	}
	for _, it := range f.Items {
		doc.Items = append(doc.Items, jsonItem{
			ID:            it.ID,
			URL:           it.Link,
			Title:         it.Title,
			ContentHTML:   it.Content,
			Summary:       it.Description,
			DatePublished: it.Published.UTC().Format(time.RFC3339),
			DateModified:  it.Updated.UTC().Format(time.RFC3339),
			Author:        jsonAuthorOf(it.Author),
			Tags:          it.Categories,
		})
	}
	out, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("feed: encode json: %w", err)
	}
	return out, nil
}
