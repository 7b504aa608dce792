package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-net/internal/testutil"
	"github.com/gaborage/go-bricks-net/logger"
)

const (
	testIssuePath  = testutil.IssuePath
	testIssueKey   = testutil.IssueKey
	testAPIVersion = testutil.APIVersionHeader
)

func newIPv4TestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	return testutil.NewIPv4Server(t, handler)
}

// syncBuffer is a bytes.Buffer safe for the concurrent writes of the
// progress reporter and the dispatching goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) entries(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, raw := range bytes.Split(bytes.TrimSpace([]byte(b.String())), []byte("\n")) {
		if len(raw) == 0 {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal(raw, &entry))
		out = append(out, entry)
	}
	return out
}

// withMessage returns the entries whose message equals msg.
func (b *syncBuffer) withMessage(t *testing.T, msg string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, e := range b.entries(t) {
		if e["message"] == msg {
			out = append(out, e)
		}
	}
	return out
}

func newTestBuilder(t *testing.T, baseURL string) (*Builder, *syncBuffer) {
	t.Helper()
	buf := &syncBuffer{}
	log := logger.NewWithWriter("debug", false, buf, nil)
	return NewBuilder(baseURL, log).
		WithTimeout(5 * time.Second).
		WithProgressInterval(5 * time.Millisecond), buf
}

func newTestClient(t *testing.T, baseURL string) (*Client, *syncBuffer) {
	t.Helper()
	b, buf := newTestBuilder(t, baseURL)
	c, err := b.Build()
	require.NoError(t, err)
	return c, buf
}

func slowHandler(delay time.Duration) http.HandlerFunc {
	return testutil.SlowHandler(delay)
}

type recordingMetrics struct {
	mu        sync.Mutex
	requests  []int
	kinds     []string
	inFlight  int64
	retries   []int
	transfers map[string]int64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{transfers: map[string]int64{}}
}

func (m *recordingMetrics) RecordRequest(_ context.Context, _ string, statusCode int, errorKind string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, statusCode)
	m.kinds = append(m.kinds, errorKind)
}

func (m *recordingMetrics) RecordInFlight(_ context.Context, _ string, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight += delta
}

func (m *recordingMetrics) RecordRetry(_ context.Context, attempt int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries = append(m.retries, attempt)
}

func (m *recordingMetrics) RecordTransfer(_ context.Context, direction string, bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers[direction] += bytes
}
