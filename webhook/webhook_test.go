package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/scrapedeck/models"
)

type capture struct {
	mu     sync.Mutex
	events []Event
	sigs   []string
	bodies [][]byte
}

func (c *capture) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev Event
		_ = json.Unmarshal(body, &ev)

		c.mu.Lock()
		c.events = append(c.events, ev)
		c.sigs = append(c.sigs, r.Header.Get(SignatureHeader))
		c.bodies = append(c.bodies, body)
		c.mu.Unlock()

		w.WriteHeader(status)
	}
}

func TestNotify_SendsSignedEventsForChangedAndFailed(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(http.StatusOK))
	defer srv.Close()

	n := NewNotifier(srv.URL, "s3cret")
	n.now = func() time.Time { return time.Unix(1700000000, 0) }

	reports := []models.FetchReport{
		{ID: "1", URL: "https://example.test/a", StatusCode: 200, Changed: true},
		{ID: "2", URL: "https://example.test/b", StatusCode: 200},
		{ID: "3", URL: "https://example.test/c", StatusCode: 503,
			Error: &models.ErrorDetail{Code: models.ErrCodeNonSuccessStatus, Message: "503 Service Unavailable"}},
	}

	require.NoError(t, n.Notify(context.Background(), reports))

	require.Len(t, c.events, 2)
	assert.Equal(t, EventEntityChanged, c.events[0].Type)
	assert.Equal(t, "1", c.events[0].EntityID)
	assert.Equal(t, int64(1700000000), c.events[0].Timestamp)
	assert.Equal(t, EventEntityFailed, c.events[1].Type)
	assert.Equal(t, models.ErrCodeNonSuccessStatus, c.events[1].Data.Error.Code)

	for i, body := range c.bodies {
		assert.Equal(t, "sha256="+Sign("s3cret", body), c.sigs[i])
	}
}

func TestNotify_EndpointErrorIsReturned(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(http.StatusInternalServerError))
	defer srv.Close()

	err := NewNotifier(srv.URL, "").Notify(context.Background(),
		[]models.FetchReport{{ID: "1", Changed: true}})

	require.Error(t, err)
	assert.Empty(t, c.sigs[0], "unsigned without a secret")
}

func TestNotifyAsync_RetriesUntilDelivered(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
		close(done)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "")
	n.delays = []time.Duration{0, time.Millisecond, time.Millisecond}

	n.NotifyAsync([]models.FetchReport{{ID: "1", Changed: true}})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("webhook was not retried")
	}
}

func TestSign_KnownVector(t *testing.T) {
	// RFC 4231 test case 2.
	got := Sign("Jefe", []byte("what do ya want for nothing?"))
	assert.Equal(t, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", got)
}
