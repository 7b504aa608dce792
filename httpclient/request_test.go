package httpclient

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-net/codec"
)

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestRequestConstructors(t *testing.T) {
	assert.Equal(t, "GET", Get("/a").Method)
	assert.Equal(t, "POST", Post("/a").Method)
	assert.Equal(t, "PUT", Put("/a").Method)
	assert.Equal(t, "PATCH", Patch("/a").Method)
	assert.Equal(t, "DELETE", Delete("/a").Method)
	assert.Equal(t, "PATCH", NewRequest("patch", "/a").Method)
	assert.Equal(t, "GET /a", Get("/a").String())
}

func TestRequestIsImmutable(t *testing.T) {
	base := Get(testIssuePath).WithHeader("Accept", "application/json")

	derived := base.
		WithHeader("Accept", "text/plain").
		WithHeader(testAPIVersion, "2").
		WithQueryItem("expand", "names").
		WithTimeout(time.Second)

	accept, ok := base.Header("Accept")
	require.True(t, ok)
	assert.Equal(t, "application/json", accept)
	_, ok = base.Header(testAPIVersion)
	assert.False(t, ok)
	assert.Empty(t, base.Query())
	assert.Zero(t, base.Timeout())

	accept, _ = derived.Header("accept")
	assert.Equal(t, "text/plain", accept)
	assert.Equal(t, time.Second, derived.Timeout())
}

func TestRequestHeaderReplacesInPlace(t *testing.T) {
	req := Get("/").
		WithHeader("x-first", "1").
		WithHeader("X-Second", "2").
		WithHeader("X-FIRST", "3")

	require.Len(t, req.headers, 2)
	assert.Equal(t, headerField{name: "X-First", value: "3"}, req.headers[0])
	assert.Equal(t, "2", req.Headers().Get("X-Second"))
}

func TestRequestWithHeadersSorted(t *testing.T) {
	req := Get("/").WithHeaders(map[string]string{"B": "2", "A": "1"})
	require.Len(t, req.headers, 2)
	assert.Equal(t, "A", req.headers[0].name)
	assert.Equal(t, "B", req.headers[1].name)
}

func TestRequestQueryItems(t *testing.T) {
	req := Get("/search").WithQueryItems(
		QueryItem{Name: "jql", Value: "project = PROJ"},
		QueryItem{Name: "maxResults", Value: "50"},
		QueryItem{Name: "jql", Value: "project = OPS"},
	)

	assert.Equal(t, []QueryItem{
		{Name: "jql", Value: "project = OPS"},
		{Name: "maxResults", Value: "50"},
	}, req.Query())

	q := req.Query()
	q[0].Value = "mutated"
	assert.Equal(t, "project = OPS", req.Query()[0].Value)
}

func TestRequestURL(t *testing.T) {
	base := mustParseURL(t, "https://jira.example.com/jira/")

	tests := []struct {
		name     string
		req      Request
		base     *url.URL
		expected string
	}{
		{name: "relative path", req: Get(testIssuePath), base: base, expected: "https://jira.example.com/jira/rest/api/2/issue/PROJ-1"},
		{name: "path without leading slash", req: Get("rest/api/2/myself"), base: base, expected: "https://jira.example.com/jira/rest/api/2/myself"},
		{name: "query items escaped", req: Get("/search").WithQueryItem("jql", "a = b&c"), base: base, expected: "https://jira.example.com/jira/search?jql=a+%3D+b%26c"},
		{name: "inline query kept", req: Get("/search?fields=summary").WithQueryItem("startAt", "10"), base: base, expected: "https://jira.example.com/jira/search?fields=summary&startAt=10"},
		{name: "absolute url", req: Get("https://gitlab.example.com/api/v4/projects"), base: base, expected: "https://gitlab.example.com/api/v4/projects"},
		{name: "absolute url without base", req: Get("http://localhost:8080/health"), base: nil, expected: "http://localhost:8080/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := tt.req.URL(tt.base)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, u.String())
		})
	}

	t.Run("relative path without base", func(t *testing.T) {
		_, err := Get("/x").URL(nil)
		assert.Error(t, err)
	})

	t.Run("base is not modified", func(t *testing.T) {
		_, err := Get("/a").WithQueryItem("k", "v").URL(base)
		require.NoError(t, err)
		assert.Equal(t, "https://jira.example.com/jira/", base.String())
	})
}

func TestRequestEncodeBody(t *testing.T) {
	type comment struct {
		Body string `json:"body"`
	}

	t.Run("no body", func(t *testing.T) {
		data, ct, err := Get("/").encodeBody(codec.JSON{})
		require.NoError(t, err)
		assert.Nil(t, data)
		assert.Empty(t, ct)
	})

	t.Run("fallback serializer", func(t *testing.T) {
		data, ct, err := Post("/").WithBody(comment{Body: "done"}).encodeBody(codec.JSON{})
		require.NoError(t, err)
		assert.JSONEq(t, `{"body":"done"}`, string(data))
		assert.Equal(t, "application/json", ct)
	})

	t.Run("request serializer wins", func(t *testing.T) {
		req := Post("/oauth/token").
			WithSerializer(codec.Form{}).
			WithBody(map[string]any{"grant_type": "client_credentials"})
		data, ct, err := req.encodeBody(codec.JSON{})
		require.NoError(t, err)
		assert.Equal(t, "grant_type=client_credentials", string(data))
		assert.Equal(t, "application/x-www-form-urlencoded", ct)
	})

	t.Run("raw body replaces value body", func(t *testing.T) {
		raw := []byte("plain")
		req := Post("/").WithBody(comment{}).WithRawBody(raw, "text/plain")
		raw[0] = 'X'

		data, ct, err := req.encodeBody(codec.JSON{})
		require.NoError(t, err)
		assert.Equal(t, "plain", string(data))
		assert.Equal(t, "text/plain", ct)
		_, ok := req.Body()
		assert.False(t, ok)
	})

	t.Run("serializer failure", func(t *testing.T) {
		_, _, err := Post("/").WithBody(make(chan int)).encodeBody(codec.JSON{})
		assert.ErrorIs(t, err, codec.ErrUnsupportedType)
	})
}
