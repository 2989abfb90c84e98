package cleaner

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// Parse parses raw markup into a document tree. The HTML5 parser recovers
// from malformed input, so an error here means the reader itself failed.
func Parse(raw string) (*html.Node, error) {
	return html.Parse(strings.NewReader(raw))
}

// OuterHTML serializes n and its subtree.
func OuterHTML(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// voidElements never have children or closing tags.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// rawTextElements keep their text verbatim.
var rawTextElements = map[string]bool{
	"script": true, "style": true, "pre": true, "textarea": true,
}

// Prettify renders the tree one tag or text run per line, indenting each
// nesting level by one space. Whitespace-only text nodes are dropped.
func Prettify(n *html.Node) string {
	var sb strings.Builder
	prettify(&sb, n, 0, false)
	return sb.String()
}

func prettify(sb *strings.Builder, n *html.Node, depth int, raw bool) {
	indent := strings.Repeat(" ", depth)

	switch n.Type {
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			prettify(sb, c, depth, raw)
		}

	case html.DoctypeNode:
		sb.WriteString("<!DOCTYPE " + n.Data + ">\n")

	case html.CommentNode:
		sb.WriteString(indent + "<!--" + n.Data + "-->\n")

	case html.TextNode:
		if raw {
			sb.WriteString(n.Data)
			if !strings.HasSuffix(n.Data, "\n") {
				sb.WriteByte('\n')
			}
			return
		}
		text := strings.TrimSpace(n.Data)
		if text == "" {
			return
		}
		sb.WriteString(indent + html.EscapeString(text) + "\n")

	case html.ElementNode:
		sb.WriteString(indent + "<" + n.Data)
		for _, a := range n.Attr {
			key := a.Key
			if a.Namespace != "" {
				key = a.Namespace + ":" + key
			}
			sb.WriteString(" " + key + `="` + html.EscapeString(a.Val) + `"`)
		}
		if voidElements[n.Data] {
			sb.WriteString("/>\n")
			return
		}
		sb.WriteString(">\n")
		childRaw := raw || rawTextElements[n.Data]
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			prettify(sb, c, depth+1, childRaw)
		}
		sb.WriteString(indent + "</" + n.Data + ">\n")
	}
}
