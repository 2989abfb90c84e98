package scraper

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/scrapedeck/cleaner"
	"github.com/use-agent/scrapedeck/models"
)

func newTestBoard(f Fetcher) *Board {
	return NewBoard(f, cleaner.NewCleaner(), 0)
}

func TestBoard_AddRemove(t *testing.T) {
	b := newTestBoard(newFakeFetcher())

	first := b.Add()
	second := b.Add()
	third := b.Add()
	assert.Equal(t, []string{"0", "1", "2"}, []string{first.ID(), second.ID(), third.ID()})
	assert.Equal(t, "Added new entity", b.Status())

	got, ok := b.Get("1")
	require.True(t, ok)
	assert.Same(t, second, got)

	assert.True(t, b.Remove("1"))
	assert.False(t, b.Remove("1"))
	assert.Equal(t, "Cannot remove entity 1", b.Status())

	assert.True(t, b.RemoveLast())
	assert.Equal(t, "Removed bottom most entity", b.Status())
	require.Equal(t, 1, b.Len())
	assert.Equal(t, "0", b.List()[0].ID())

	assert.Equal(t, "3", b.Add().ID(), "ids are never reused")

	assert.Equal(t, 2, b.RemoveAll())
	assert.False(t, b.RemoveLast())
	assert.Equal(t, "Cannot remove entity", b.Status())
}

func TestBoard_FetchAllRunsInOrder(t *testing.T) {
	f := newFakeFetcher()
	f.serve("https://example.test/a", 200, `<p class="x">a</p>`)
	f.serve("https://example.test/c", 503, "")
	b := newTestBoard(f)

	for _, u := range []string{"https://example.test/a", "https://example.test/b", "https://example.test/c", "bogus"} {
		b.Add().SetSource(u, "x", models.FilterByClass)
	}

	reports := b.FetchAll(context.Background())

	require.Len(t, reports, 4)
	assert.Nil(t, reports[0].Error)
	assert.Equal(t, models.ErrCodeFetchFailed, reports[1].Error.Code)
	assert.Equal(t, models.ErrCodeNonSuccessStatus, reports[2].Error.Code)
	assert.Equal(t, models.ErrCodeInvalidURL, reports[3].Error.Code)
	assert.Equal(t, []string{"https://example.test/a", "https://example.test/b", "https://example.test/c"}, f.calls)
	assert.Equal(t, "Fetched 4 entities (3 failed)", b.Status())
}

func TestBoard_SaveLoadRoundTrip(t *testing.T) {
	f := newFakeFetcher()
	f.serve("https://example.test/a", 200, `<p class="x">alpha</p>`)
	f.serve("https://example.test/b", 200, `<p>beta</p>`)
	b := newTestBoard(f)

	a := b.Add()
	a.SetSource("https://example.test/a", "x", models.FilterByClass)
	a.SetOutputMode(models.OutputCleanText)
	require.NoError(t, a.SetTransform(`func f(s string) string { return strings.ToUpper(s) }`, true))

	bb := b.Add()
	bb.SetSource("https://example.test/b", "beta", models.FilterByText)
	bb.SetOutputMode(models.OutputRawText)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, b.Save(path))
	assert.True(t, strings.HasPrefix(b.Status(), "Config saved to "))
	want := b.Records()

	loaded := newTestBoard(f)
	loaded.Add()
	require.NoError(t, loaded.Load(context.Background(), path))

	assert.Equal(t, want, loaded.Records())
	assert.Equal(t, "Load config succeeded.", loaded.Status())

	views := loaded.Snapshots()
	require.Len(t, views, 2)
	assert.Equal(t, "ALPHA", views[0].Text, "transform restored after fetch")
	assert.Equal(t, "<p>beta</p>", views[1].Text)
}

func TestBoard_LoadedBoardIsTheBaseline(t *testing.T) {
	f := newFakeFetcher()
	f.serve("https://example.test/a", 200, `<p class="x">alpha</p>`)
	b := newTestBoard(f)
	a := b.Add()
	a.SetSource("https://example.test/a", "x", models.FilterByClass)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, b.Save(path))

	loaded := newTestBoard(f)
	require.NoError(t, loaded.Load(context.Background(), path))

	reports := loaded.FetchAll(context.Background())
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Changed)

	f.serve("https://example.test/a", 200, `<p class="x">omega</p>`)
	reports = loaded.FetchAll(context.Background())
	assert.True(t, reports[0].Changed)
	assert.Equal(t, 3, f.callCount(), "one fetch for the load and one per pass")
}

func TestBoard_LoadFailuresLeaveBoardEmpty(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte(`{"0": `), 0o644))

	tests := []struct {
		name   string
		path   string
		status string
	}{
		{"missing", filepath.Join(dir, "missing.json"), "not found"},
		{"corrupt", corrupt, "may be corrupted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBoard(newFakeFetcher())
			b.Add()
			b.Add()

			err := b.Load(context.Background(), tt.path)

			require.Error(t, err)
			assert.Equal(t, models.ErrCodeConfigLoad, models.CodeOf(err))
			assert.Zero(t, b.Len())
			assert.Contains(t, b.Status(), tt.status)
		})
	}
}

func TestBoard_LoadKeepsEntitiesThatFailToFetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"1": {"url": "https://down.test/"}, "0": {"url": "not a url"}}`), 0o644))

	b := newTestBoard(newFakeFetcher())
	require.NoError(t, b.Load(context.Background(), path))

	list := b.List()
	require.Len(t, list, 2)
	assert.Equal(t, "not a url", list[0].Record().URL)
	assert.Equal(t, StateFetchFailed, list[0].State())
	assert.Equal(t, StateFetchFailed, list[1].State())
}
