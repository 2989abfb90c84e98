package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/scrapedeck/models"
)

func sampleRecords() []models.Record {
	return []models.Record{
		{URL: "https://example.test/a", Filter: "headline", IsWithCSS: true, OutputOption: 1},
		{URL: "https://example.test/b", Filter: "Price", IsWithCSS: false, OutputOption: 2,
			IsWithTransform: true, Transform: "func f(x string) string { return x }"},
		{URL: "https://example.test/c", Filter: "div.card", IsWithCSS: true, FilterMode: "selector", OutputOption: 3},
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	for _, name := range []string{"board.json", "board.yaml", "board.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			records := sampleRecords()

			require.NoError(t, Save(path, records))
			entries, err := Load(path)
			require.NoError(t, err)

			require.Len(t, entries, len(records))
			for i, e := range entries {
				assert.Equal(t, records[i], e.Record)
			}
			assert.Equal(t, "0", entries[0].Key)
		})
	}
}

func TestLoad_OrdersKeysNumerically(t *testing.T) {
	records := make([]models.Record, 12)
	for i := range records {
		records[i] = models.Record{URL: "https://example.test/" + string(rune('a'+i)), IsWithCSS: true}
	}
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, Save(path, records))

	entries, err := Load(path)
	require.NoError(t, err)

	for i, e := range entries {
		assert.Equal(t, records[i].URL, e.Record.URL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_Malformed(t *testing.T) {
	tests := map[string]string{
		"truncated":  `{"0": {"url": "https://example.test"`,
		"not object": `[1, 2, 3]`,
		"wrong type": `{"0": {"url": 5}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			_, err := Load(path)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestLoad_DefaultsAbsentFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"0": {"url": "https://example.test"}, "1": {}}`), 0o644))

	entries, err := Load(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "", entries[1].Record.URL)

	rec := entries[0].Record
	assert.True(t, rec.IsWithCSS)
	assert.Equal(t, models.FilterByClass, rec.Mode())
	assert.Equal(t, models.OutputMarkup, rec.Output())
}
