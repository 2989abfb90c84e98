package cleaner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/use-agent/scrapedeck/models"
)

// FragmentSeparator joins matched elements in an extracted fragment.
const FragmentSeparator = "<br>\n"

// excludedTags never appear in an extracted fragment: they carry no visible
// content or wrap large unrelated subtrees.
var excludedTags = map[string]bool{
	"script":   true,
	"meta":     true,
	"head":     true,
	"noscript": true,
	"svg":      true,
	"html":     true,
	"aside":    true,
	"main":     true,
}

// Extract narrows doc to the elements selected by pattern under mode and
// returns their markup joined by FragmentSeparator, in document order.
//
// An empty pattern returns the whole document prettified. Elements with an
// excluded tag name are skipped, and an element whose markup equals one
// already collected is dropped. No match yields "".
func Extract(doc *html.Node, pattern string, mode models.FilterMode) (string, error) {
	if pattern == "" {
		return Prettify(doc), nil
	}

	var (
		matches []*html.Node
		err     error
	)
	switch mode {
	case models.FilterByClass:
		matches, err = matchClass(doc, pattern)
	case models.FilterByText:
		matches = matchText(doc, pattern)
	case models.FilterBySelector:
		matches, err = matchSelector(doc, pattern)
	default:
		err = fmt.Errorf("unsupported filter mode %s", mode)
	}
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeExtraction, "invalid filter pattern", err)
	}

	return join(matches)
}

// ExtractOrDescribe is Extract with failures turned into their description,
// so a bad pattern shows up as the fragment instead of an error.
func ExtractOrDescribe(doc *html.Node, pattern string, mode models.FilterMode) string {
	out, err := Extract(doc, pattern, mode)
	if err != nil {
		return err.Error()
	}
	return out
}

func matchClass(doc *html.Node, pattern string) ([]*html.Node, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	var out []*html.Node
	goquery.NewDocumentFromNode(doc).Find("*").Each(func(_ int, s *goquery.Selection) {
		if excludedTags[goquery.NodeName(s)] {
			return
		}
		class, ok := s.Attr("class")
		if !ok {
			return
		}
		if classMatches(re, class) {
			out = append(out, s.Get(0))
		}
	})
	return out, nil
}

// classMatches tries each class value on its own, then the whole attribute.
func classMatches(re *regexp.Regexp, class string) bool {
	for _, v := range strings.Fields(class) {
		if re.MatchString(v) {
			return true
		}
	}
	return re.MatchString(class)
}

// matchText also skips body: it holds every text run of the page, so it
// would match any pattern that matches anywhere.
func matchText(doc *html.Node, pattern string) []*html.Node {
	var out []*html.Node
	goquery.NewDocumentFromNode(doc).Find("*").Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		if excludedTags[name] || name == "body" {
			return
		}
		if strings.Contains(s.Text(), pattern) {
			out = append(out, s.Get(0))
		}
	})
	return out
}

func matchSelector(doc *html.Node, pattern string) ([]*html.Node, error) {
	sel, err := cascadia.ParseGroup(pattern)
	if err != nil {
		return nil, err
	}
	var out []*html.Node
	for _, n := range cascadia.QueryAll(doc, sel) {
		if !excludedTags[n.Data] {
			out = append(out, n)
		}
	}
	return out, nil
}

func join(nodes []*html.Node) (string, error) {
	seen := make(map[string]bool, len(nodes))
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		markup, err := OuterHTML(n)
		if err != nil {
			return "", models.NewScrapeError(models.ErrCodeExtraction, "serialize element", err)
		}
		if seen[markup] {
			continue
		}
		seen[markup] = true
		parts = append(parts, markup)
	}
	return strings.Join(parts, FragmentSeparator), nil
}
