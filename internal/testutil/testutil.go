// Package testutil provides HTTP fixtures and constants shared by the
// client, metrics and config tests.
package testutil

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const (
	// IssuePath is a Jira-style resource path used as a request target.
	IssuePath = "/rest/api/2/issue/PROJ-1"
	// IssueKey is the key served at IssuePath.
	IssueKey = "PROJ-1"
	// APIVersionHeader is a common header set on test clients.
	APIVersionHeader = "X-Api-Version"
)

// NewIPv4Server starts an httptest server bound to 127.0.0.1 and closes it
// when the test ends. The test is skipped when no IPv4 listener is available.
func NewIPv4Server(t testing.TB, handler http.Handler) *httptest.Server {
	t.Helper()
	lc := net.ListenConfig{}
	listener, err := lc.Listen(context.Background(), "tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: unable to bind IPv4 listener: %v", err)
		return &httptest.Server{}
	}

	server := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second},
	}
	server.Start()
	t.Cleanup(server.Close)
	return server
}

// SlowHandler answers 200 after delay unless the client goes away first.
func SlowHandler(delay time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
			w.WriteHeader(http.StatusOK)
		case <-r.Context().Done():
		}
	}
}
