package cleaner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/scrapedeck/models"
)

// Cleaner renders extracted fragments for display. The Markdown converter is
// created once and shared (goroutine-safe).
type Cleaner struct {
	mdConverter *converter.Converter
}

// NewCleaner initialises the Cleaner with a pre-configured Markdown converter.
func NewCleaner() *Cleaner {
	return &Cleaner{
		mdConverter: newMarkdownConverter(),
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Render presents fragment in the given mode. It is a pure function of its
// inputs. baseURL only affects Markdown link resolution.
//
//   - Markup and RawText return the fragment unchanged.
//   - CleanText returns the fragment's text with whitespace runs collapsed
//     to single newlines.
//   - Markdown converts the fragment with html-to-markdown.
func (c *Cleaner) Render(fragment string, mode models.OutputMode, baseURL string) (string, error) {
	switch mode {
	case models.OutputMarkup, models.OutputRawText:
		return fragment, nil
	case models.OutputCleanText:
		return CleanText(fragment)
	case models.OutputMarkdown:
		md, err := ToMarkdown(c.mdConverter, fragment, baseURL)
		if err != nil {
			return "", fmt.Errorf("markdown: %w", err)
		}
		return md, nil
	default:
		return "", fmt.Errorf("unsupported output mode %s", mode)
	}
}

// CleanText parses fragment and returns its text content, one run per line.
func CleanText(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("clean text: %w", err)
	}
	text := whitespaceRun.ReplaceAllString(doc.Text(), "\n")
	return strings.TrimSpace(text), nil
}
