package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"
)

type rssXML struct {
	XMLName      xml.Name   `xml:"rss"`
	Version      string     `xml:"version,attr"`
	NSDublinCore string     `xml:"xmlns:dc,attr"`
	NSContent    string     `xml:"xmlns:content,attr"`
	NSAtom       string     `xml:"xmlns:atom,attr"`
	Channel      rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Docs          string    `xml:"docs"`
	Generator     string    `xml:"generator"`
	Language      string    `xml:"language"`
	Copyright     string    `xml:"copyright"`
	Image         *rssImage `xml:"image,omitempty"`
	SelfLink      rssLink   `xml:"atom:link"`
	Items         []rssItem `xml:"item"`
}

type rssImage struct {
	URL   string `xml:"url"`
	Title string `xml:"title"`
	Link  string `xml:"link"`
}

type rssLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type cdata struct {
	Value string `xml:",cdata"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        rssGUID  `xml:"guid"`
	PubDate     string   `xml:"pubDate"`
	Description string   `xml:"description"`
	Content     *cdata   `xml:"content:encoded,omitempty"`
	Author      string   `xml:"author,omitempty"`
	Creator     string   `xml:"dc:creator,omitempty"`
	Categories  []string `xml:"category"`
}

// RSS serializes the feed as RSS 2.0.
func (f *Feed) RSS() ([]byte, error) {
	ch := rssChannel{
		Title:         f.Title,
		Link:          f.Link,
		Description:   f.Description,
		LastBuildDate: f.Updated.UTC().Format(time.RFC1123Z),
		Docs:          "https://validator.w3.org/feed/docs/rss2.html",
		Generator:     f.Generator,
		Language:      f.Language,
		Copyright:     f.Copyright,
		SelfLink:      rssLink{Href: f.Links.RSS, Rel: "self", Type: "application/rss+xml"},
		Items:         make([]rssItem, 0, len(f.Items)),
	}
	if f.Image != "" {
		ch.Image = &rssImage{URL: f.Image, Title: f.Title, Link: f.Link}
	}
	for _, it := range f.Items {
		item := rssItem{
			Title:       it.Title,
			Link:        it.Link,
			GUID:        rssGUID{IsPermaLink: it.ID == it.Link, Value: it.ID},
			PubDate:     it.Published.UTC().Format(time.RFC1123Z),
			Description: it.Description,
			Author:      rssAuthor(it.Author),
			Creator:     it.Author.Name,
			Categories:  it.Categories,
		}
		if it.Content != "" {
			item.Content = &cdata{Value: it.Content}
		}
		ch.Items = append(ch.Items, item)
	}
	doc := rssXML{
		Version:      "2.0",
		NSDublinCore: "http://purl.org/dc/elements/1.1/",
		NSContent:    "http://purl.org/rss/1.0/modules/content/",
		NSAtom:       "http://www.w3.org/2005/Atom",
		Channel:      ch,
	}
	return encodeXML(doc)
}

// rssAuthor formats the RSS author element, which must carry an email.
func rssAuthor(a Author) string {
	switch {
	case a.Email == "":
		return ""
	case a.Name == "":
		return a.Email
	default:
		return fmt.Sprintf("%s (%s)", a.Email, a.Name)
	}
}

func encodeXML(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("feed: encode: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
