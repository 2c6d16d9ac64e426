// internal/crawler/parser.go
package crawler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// PageInfo holds what the crawler needs from an HTML page to decide
// whether and how it goes into the sitemap.
type PageInfo struct {
	Title      string
	Canonical  string
	NoIndex    bool
	NoFollow   bool
	ModifiedAt time.Time
	Links      []string
}

// ParsePage extracts sitemap-relevant metadata from a parsed page.
// header may be nil.
func ParsePage(doc *goquery.Selection, header http.Header) *PageInfo {
	info := &PageInfo{}

	info.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if info.Title == "" {
		if og, exists := doc.Find("meta[property='og:title']").Attr("content"); exists {
			info.Title = strings.TrimSpace(og)
		}
	}
	if info.Title == "" {
		info.Title = strings.Join(strings.Fields(doc.Find("h1").First().Text()), " ")
	}

	if href, exists := doc.Find("link[rel='canonical']").Attr("href"); exists {
		info.Canonical = strings.TrimSpace(href)
	}

	doc.Find("meta[name='robots'], meta[name='googlebot']").Each(func(i int, s *goquery.Selection) {
		content, exists := s.Attr("content")
		if !exists {
			return
		}
		for _, directive := range strings.Split(content, ",") {
			switch strings.ToLower(strings.TrimSpace(directive)) {
			case "noindex":
				info.NoIndex = true
			case "nofollow":
				info.NoFollow = true
			case "none":
				info.NoIndex = true
				info.NoFollow = true
			}
		}
	})
	if header != nil {
		tag := strings.ToLower(header.Get("X-Robots-Tag"))
		if strings.Contains(tag, "noindex") || strings.Contains(tag, "none") {
			info.NoIndex = true
		}
	}

	info.ModifiedAt = modifiedAt(doc, header)

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		if rel, _ := s.Attr("rel"); strings.Contains(strings.ToLower(rel), "nofollow") {
			return
		}
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") ||
			strings.HasPrefix(strings.ToLower(href), "mailto:") {
			return
		}
		info.Links = append(info.Links, href)
	})

	return info
}

// ParseHTMLContent parses raw HTML and extracts page metadata.
func ParseHTMLContent(content string, header http.Header) (*PageInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}
	return ParsePage(doc.Selection, header), nil
}

var modifiedSelectors = []string{
	"meta[property='article:modified_time']",
	"meta[property='og:updated_time']",
	"meta[name='last-modified']",
	"meta[name='dcterms.modified']",
}

func modifiedAt(doc *goquery.Selection, header http.Header) time.Time {
	for _, sel := range modifiedSelectors {
		if content, exists := doc.Find(sel).Attr("content"); exists {
			if t, ok := parseTimestamp(content); ok {
				return t
			}
		}
	}
	if header != nil {
		if lm := header.Get("Last-Modified"); lm != "" {
			if t, err := http.ParseTime(lm); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
