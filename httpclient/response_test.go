package httpclient

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-net/codec"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code     int
		expected StatusClass
	}{
		{0, Undefined},
		{99, Undefined},
		{100, Informational},
		{199, Informational},
		{200, Success},
		{204, Success},
		{299, Success},
		{300, Redirection},
		{399, Redirection},
		{400, ClientError},
		{499, ClientError},
		{500, ServerError},
		{599, ServerError},
		{600, Undefined},
		{-1, Undefined},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Classify(tt.code), "code %d", tt.code)
	}
}

func TestStatusClassString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "client_error", ClientError.String())
	assert.Equal(t, "server_error", ServerError.String())
	assert.Equal(t, "undefined", StatusClass(42).String())
}

func TestResponseHelpers(t *testing.T) {
	resp := &Response{
		StatusCode: http.StatusOK,
		Status:     Success,
		Headers:    http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(`{"key":"PROJ-1"}`),
	}
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, "application/json", resp.ContentType())

	var out struct {
		Key string `json:"key"`
	}
	require.NoError(t, resp.Decode(codec.JSON{}, &out))
	assert.Equal(t, testIssueKey, out.Key)

	var nilResp *Response
	assert.False(t, nilResp.IsSuccess())
	assert.Empty(t, nilResp.ContentType())
}

func TestResponseDecodeFailure(t *testing.T) {
	resp := &Response{StatusCode: http.StatusOK, Status: Success, Body: []byte("<html>")}

	var out map[string]any
	err := resp.Decode(codec.JSON{}, &out)
	require.Error(t, err)

	ne, ok := AsNetworkingError(err)
	require.True(t, ok)
	assert.Equal(t, KindDecode, ne.Kind)
	assert.Equal(t, []byte("<html>"), ne.RawBody)
	assert.Same(t, resp, ne.Response)
}
