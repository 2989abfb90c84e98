package cleaner

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// newMarkdownConverter creates a reusable, goroutine-safe Converter:
//
//   - base plugin: strips script, style, iframe, noscript, head, meta, link
//     and comments.
//   - commonmark plugin: headings, lists, links, code blocks, emphasis.
//   - table plugin: keeps table structure with minimal cell padding.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// ToMarkdown converts a fragment to Markdown. domain resolves relative links
// and may be empty.
func ToMarkdown(conv *converter.Converter, fragment string, domain string) (string, error) {
	if domain == "" {
		return conv.ConvertString(fragment)
	}
	return conv.ConvertString(fragment, converter.WithDomain(domain))
}
