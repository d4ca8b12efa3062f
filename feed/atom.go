package feed

import (
	"encoding/xml"
	"time"
)

const atomNS = "http://www.w3.org/2005/Atom"

type atomFeed struct {
	XMLName   xml.Name    `xml:"feed"`
	XMLNS     string      `xml:"xmlns,attr"`
	ID        string      `xml:"id"`
	Title     string      `xml:"title"`
	Updated   string      `xml:"updated"`
	Generator string      `xml:"generator"`
	Author    *atomPerson `xml:"author,omitempty"`
	Links     []atomLink  `xml:"link"`
	Subtitle  string      `xml:"subtitle,omitempty"`
	Logo      string      `xml:"logo,omitempty"`
	Icon      string      `xml:"icon,omitempty"`
	Rights    string      `xml:"rights,omitempty"`
	Entries   []atomEntry `xml:"entry"`
}

type atomPerson struct {
	Name  string `xml:"name"`
	Email string `xml:"email,omitempty"`
	URI   string `xml:"uri,omitempty"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr,omitempty"`
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr,omitempty"`
}

type atomText struct {
	Type string `xml:"type,attr,omitempty"`
	Body string `xml:",chardata"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomEntry struct {
	Title      atomText       `xml:"title"`
	ID         string         `xml:"id"`
	Links      []atomLink     `xml:"link"`
	Updated    string         `xml:"updated"`
	Published  string         `xml:"published"`
	Summary    *atomText      `xml:"summary,omitempty"`
	Content    *atomText      `xml:"content,omitempty"`
	Authors    []atomPerson   `xml:"author"`
	Categories []atomCategory `xml:"category"`
}

func atomAuthor(a Author) *atomPerson {
	if a.Name == "" {
		return nil
	}
	return &atomPerson{Name: a.Name, Email: a.Email, URI: a.Link}
}

// Atom serializes the feed as Atom 1.0.
func (f *Feed) Atom() ([]byte, error) {
	doc := atomFeed{
		XMLNS:     atomNS,
		ID:        f.ID,
		Title:     f.Title,
		Updated:   f.Updated.UTC().Format(time.RFC3339),
		Generator: f.Generator,
		Author:    atomAuthor(f.Author),
		Links: []atomLink{
			{Rel: "alternate", Href: f.Link},
			{Rel: "self", Href: f.Links.Atom, Type: "application/atom+xml"},
		},
		Subtitle: f.Description,
		Logo:     f.Image,
		Icon:     f.Favicon,
		Rights:   f.Copyright,
		Entries:  make([]atomEntry, 0, len(f.Items)),
	}
	for _, it := range f.Items {
		e := atomEntry{
			Title:     atomText{Type: "text", Body: it.Title},
			ID:        it.ID,
			Links:     []atomLink{{Rel: "alternate", Href: it.Link}},
			Updated:   it.Updated.UTC().Format(time.RFC3339),
			Published: it.Published.UTC().Format(time.RFC3339),
		}
		if it.Description != "" {
			e.Summary = &atomText{Type: "html", Body: it.Description}
		}
		if it.Content != "" {
			e.Content = &atomText{Type: "html", Body: it.Content}
		}
		if p := atomAuthor(it.Author); p != nil {
			e.Authors = []atomPerson{*p}
		}
		for _, c := range it.Categories {
			e.Categories = append(e.Categories, atomCategory{Term: c})
		}
		doc.Entries = append(doc.Entries, e)
	}
	return encodeXML(doc)
}
