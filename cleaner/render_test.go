package cleaner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/scrapedeck/models"
)

func TestRender_Modes(t *testing.T) {
	c := NewCleaner()
	fragment := "<div class=\"a\">\n  first\n\n   line </div><br>\n<h1>Head</h1>"

	tests := []struct {
		mode models.OutputMode
		want string
	}{
		{models.OutputMarkup, fragment},
		{models.OutputRawText, fragment},
		{models.OutputCleanText, "first\nline\nHead"},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			got, err := c.Render(fragment, tt.mode, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_Markdown(t *testing.T) {
	c := NewCleaner()

	got, err := c.Render(`<h1>Title</h1><p>See <a href="/doc">docs</a></p>`, models.OutputMarkdown, "https://example.test")
	require.NoError(t, err)

	assert.Contains(t, got, "# Title")
	assert.Contains(t, got, "[docs](https://example.test/doc)")
}

func TestRender_IsIdempotent(t *testing.T) {
	c := NewCleaner()
	fragment := `<ul><li>one</li><li>two</li></ul>`

	for _, mode := range []models.OutputMode{
		models.OutputMarkup, models.OutputCleanText, models.OutputRawText, models.OutputMarkdown,
	} {
		first, err := c.Render(fragment, mode, "")
		require.NoError(t, err)
		second, err := c.Render(fragment, mode, "")
		require.NoError(t, err)
		assert.Equal(t, first, second, mode.String())
	}
}

func TestRender_UnknownMode(t *testing.T) {
	_, err := NewCleaner().Render("x", models.OutputMode(9), "")
	assert.Error(t, err)
}

func TestMetadata_FallsBackToHead(t *testing.T) {
	raw := `<html lang="en"><head><title>Board Page</title>` +
		`<meta property="og:site_name" content="Example"></head>` +
		`<body><p>short</p></body></html>`

	meta := Metadata(raw, "https://example.test/page")

	assert.Equal(t, "Board Page", meta.Title)
	assert.Equal(t, "Example", meta.SiteName)
	assert.Equal(t, "en", meta.Language)
}
