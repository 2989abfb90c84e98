package simhash

import (
	"strings"

	"golang.org/x/net/html"
)

// LayoutDriftThreshold is the distance above which two layouts are treated
// as different pages. A filter pattern written for one often matches nothing
// on the other.
const LayoutDriftThreshold = 12

// Layout computes a SimHash fingerprint of a document's tag sequence,
// ignoring text and attributes.
func Layout(htmlStr string) uint64 {
	tags := extractTags(htmlStr)
	if len(tags) == 0 {
		return 0
	}

	shingles := makeShingles(tags, 3)
	if len(shingles) == 0 {
		return Fingerprint(strings.Join(tags, " "))
	}
	return Fingerprint(strings.Join(shingles, " "))
}

// LayoutDrifted reports whether the layout moved past LayoutDriftThreshold.
// A zero prev never counts as drift.
func LayoutDrifted(prev, next uint64) bool {
	return prev != 0 && Distance(prev, next) > LayoutDriftThreshold
}

// extractTags walks HTML with the tokenizer and collects open tag names in order.
func extractTags(htmlStr string) []string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	var tags []string

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return tags
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, _ := tokenizer.TagName()
			tags = append(tags, string(tn))
		}
	}
}

// makeShingles creates n-gram shingles from a slice of tokens.
func makeShingles(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}

	shingles := make([]string, 0, len(tokens)-n+1)
	for i := 0; i <= len(tokens)-n; i++ {
		shingles = append(shingles, strings.Join(tokens[i:i+n], "_"))
	}
	return shingles
}
