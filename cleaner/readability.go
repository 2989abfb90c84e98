package cleaner

import (
	"log/slog"
	nurl "net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/use-agent/scrapedeck/models"
)

// Metadata gathers best-effort page information from a fetched document using
// the Mozilla Readability algorithm. It never fails: when readability cannot
// run, the <title> and Open Graph tags are read directly.
func Metadata(rawHTML string, sourceURL string) models.PageMetadata {
	var meta models.PageMetadata

	parsedURL, err := nurl.Parse(sourceURL)
	if err == nil {
		article, rerr := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
		if rerr == nil {
			meta = models.PageMetadata{
				Title:       article.Title,
				Description: article.Excerpt,
				SiteName:    article.SiteName,
				Author:      article.Byline,
				Language:    article.Language,
			}
		} else {
			slog.Debug("readability: metadata extraction failed", "url", sourceURL, "error", rerr)
		}
	}

	if meta.Title == "" || meta.Description == "" {
		fillFromHead(rawHTML, &meta)
	}
	return meta
}

func fillFromHead(rawHTML string, meta *models.PageMetadata) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if meta.Title == "" {
		meta.Title = doc.Find(`meta[property="og:title"]`).AttrOr("content", "")
	}
	if meta.Description == "" {
		meta.Description = doc.Find(`meta[name="description"]`).AttrOr("content", "")
	}
	if meta.Description == "" {
		meta.Description = doc.Find(`meta[property="og:description"]`).AttrOr("content", "")
	}
	if meta.SiteName == "" {
		meta.SiteName = doc.Find(`meta[property="og:site_name"]`).AttrOr("content", "")
	}
	if meta.Language == "" {
		meta.Language = doc.Find("html").AttrOr("lang", "")
	}
}
