package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/scrapedeck/models"
)

func writeBoard(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "board.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SCRAPEDECK_ENGINE", "http")
	t.Setenv("SCRAPEDECK_LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCmd(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<div class="x">alpha</div><div class="y">beta</div>`))
	}))
	defer site.Close()

	path := writeBoard(t, `{
		"0": {"url": "`+site.URL+`/", "filter": "x", "is_with_css": true, "output_option": 1},
		"1": {"url": "nope", "filter": "", "is_with_css": true, "output_option": 0}
	}`)

	out, err := execute(t, "run", "--config", path)
	require.NoError(t, err)
	assert.Equal(t,
		"[0] "+site.URL+"/ (fetched)\nalpha\n\n[1] nope (failed)\n! "+
			"The provided URL is invalid. It must start with http://, https:// or ftp://.\n",
		out)

	out, err = execute(t, "run", "--config", path, "--id", "0")
	require.NoError(t, err)
	assert.Equal(t, "[0] "+site.URL+"/ (fetched)\nalpha\n", out)

	_, err = execute(t, "run", "--config", path, "--id", "7")
	assert.EqualError(t, err, "no entity with id 7")
}

func TestRunCmd_MissingBoard(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.json")
	_, err := execute(t, "run", "--config", missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "scrapedeck version ")
}

func TestPrintChanges(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer

	printChanges(&buf, []models.FetchReport{
		{ID: "0", URL: "https://a.test/", Changed: true, Text: "new text"},
		{ID: "1", URL: "https://b.test/"},
		{ID: "2", URL: "https://c.test/", Error: &models.ErrorDetail{Code: models.ErrCodeFetchFailed, Message: "timeout"}},
		{ID: "3", URL: "https://d.test/", Changed: true, LayoutDrifted: true, Text: "x"},
	}, at)

	assert.Equal(t, "2024-05-01 12:00:00 [0] https://a.test/ changed\nnew text\n"+
		"2024-05-01 12:00:00 [2] https://c.test/ failed: timeout\n"+
		"2024-05-01 12:00:00 [3] https://d.test/ changed\nx\n"+
		"2024-05-01 12:00:00 [3] page layout drifted, check the filter\n",
		buf.String())
}
