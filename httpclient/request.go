package httpclient

import (
	"fmt"
	"net/http"
	"net/textproto"
	"net/url"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/gaborage/go-bricks-net/codec"
)

// QueryItem is one name/value pair of a request query string.
type QueryItem struct {
	Name  string
	Value string
}

type headerField struct {
	name  string
	value string
}

// Request describes one HTTP call before dispatch. It is a value type: every
// With* method returns a modified copy and leaves the receiver untouched, so
// a Request can be shared between goroutines and reused across retries.
type Request struct {
	Method string `validate:"required,oneof=GET POST PUT PATCH DELETE"`
	// Path is resolved against the client base URL. An absolute http(s) URL
	// is used as is.
	Path string `validate:"required"`

	headers    []headerField
	query      []QueryItem
	body       any
	hasBody    bool
	rawBody    []byte
	rawType    string
	hasRaw     bool
	timeout    time.Duration
	serializer codec.Serializer
}

// NewRequest creates a request for method and path. The method is upper-cased.
func NewRequest(method, path string) Request {
	return Request{Method: strings.ToUpper(method), Path: path}
}

// Get creates a GET request for path.
func Get(path string) Request { return NewRequest(http.MethodGet, path) }

// Post creates a POST request for path.
func Post(path string) Request { return NewRequest(http.MethodPost, path) }

// Put creates a PUT request for path.
func Put(path string) Request { return NewRequest(http.MethodPut, path) }

// Patch creates a PATCH request for path.
func Patch(path string) Request { return NewRequest(http.MethodPatch, path) }

// Delete creates a DELETE request for path.
func Delete(path string) Request { return NewRequest(http.MethodDelete, path) }

// WithHeader sets a header. Names are case-insensitive; setting an existing
// name replaces its value in place.
func (r Request) WithHeader(name, value string) Request {
	r.headers = setHeaderField(r.headers, name, value)
	return r
}

// WithHeaders sets every header in h, in sorted name order.
func (r Request) WithHeaders(h map[string]string) Request {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r = r.WithHeader(name, h[name])
	}
	return r
}

// setHeaderField returns a copy of fields with name set to value, replacing
// an existing entry in place.
func setHeaderField(fields []headerField, name, value string) []headerField {
	key := textproto.CanonicalMIMEHeaderKey(name)
	fields = slices.Clone(fields)
	for i := range fields {
		if fields[i].name == key {
			fields[i].value = value
			return fields
		}
	}
	return append(fields, headerField{name: key, value: value})
}

// Header returns the value of a header set on the request.
func (r Request) Header(name string) (string, bool) {
	key := textproto.CanonicalMIMEHeaderKey(name)
	for _, h := range r.headers {
		if h.name == key {
			return h.value, true
		}
	}
	return "", false
}

// Headers returns a copy of the request headers.
func (r Request) Headers() http.Header {
	out := make(http.Header, len(r.headers))
	for _, h := range r.headers {
		out.Set(h.name, h.value)
	}
	return out
}

// WithQueryItem sets a query parameter. A later item with the same name
// replaces the earlier value at its original position.
func (r Request) WithQueryItem(name, value string) Request {
	r.query = slices.Clone(r.query)
	for i := range r.query {
		if r.query[i].Name == name {
			r.query[i].Value = value
			return r
		}
	}
	r.query = append(r.query, QueryItem{Name: name, Value: value})
	return r
}

// WithQueryItems applies items in order.
func (r Request) WithQueryItems(items ...QueryItem) Request {
	for _, item := range items {
		r = r.WithQueryItem(item.Name, item.Value)
	}
	return r
}

// Query returns a copy of the query items in order.
func (r Request) Query() []QueryItem {
	return slices.Clone(r.query)
}

// WithBody sets a value to be encoded by the request or client serializer.
func (r Request) WithBody(v any) Request {
	r.body, r.hasBody = v, true
	r.rawBody, r.rawType, r.hasRaw = nil, "", false
	return r
}

// WithRawBody sets pre-encoded body bytes sent with contentType.
func (r Request) WithRawBody(b []byte, contentType string) Request {
	r.rawBody, r.rawType, r.hasRaw = slices.Clone(b), contentType, true
	r.body, r.hasBody = nil, false
	return r
}

// Body returns the value set through WithBody.
func (r Request) Body() (any, bool) {
	return r.body, r.hasBody
}

// WithTimeout overrides the client timeout for this request. The smaller of
// the two applies. Zero removes the override.
func (r Request) WithTimeout(d time.Duration) Request {
	r.timeout = d
	return r
}

// Timeout returns the per-request timeout override, zero when unset.
func (r Request) Timeout() time.Duration {
	return r.timeout
}

// WithSerializer encodes this request's body with s instead of the client serializer.
func (r Request) WithSerializer(s codec.Serializer) Request {
	r.serializer = s
	return r
}

// String renders the request as "METHOD path" for logs and errors.
func (r Request) String() string {
	return r.Method + " " + r.Path
}

// URL resolves the request path and query against base.
func (r Request) URL(base *url.URL) (*url.URL, error) {
	path, rawQuery, _ := strings.Cut(r.Path, "?")

	var u *url.URL
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		parsed, err := url.Parse(path)
		if err != nil {
			return nil, fmt.Errorf("parse request URL %q: %w", r.Path, err)
		}
		u = parsed
	} else {
		if base == nil {
			return nil, fmt.Errorf("relative path %q without base URL", r.Path)
		}
		joined := *base
		joined.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(path, "/")
		joined.RawPath = ""
		joined.Fragment = ""
		u = &joined
	}

	parts := make([]string, 0, 2+len(r.query))
	if u.RawQuery != "" {
		parts = append(parts, u.RawQuery)
	}
	if rawQuery != "" {
		parts = append(parts, rawQuery)
	}
	for _, item := range r.query {
		parts = append(parts, url.QueryEscape(item.Name)+"="+url.QueryEscape(item.Value))
	}
	u.RawQuery = strings.Join(parts, "&")
	return u, nil
}

// encodeBody returns the body bytes and content type to send. It reports
// no body when neither WithBody nor WithRawBody was used.
func (r Request) encodeBody(fallback codec.Serializer) ([]byte, string, error) {
	switch {
	case r.hasRaw:
		return r.rawBody, r.rawType, nil
	case r.hasBody:
		s := r.serializer
		if s == nil {
			s = fallback
		}
		data, err := s.Serialize(r.body)
		if err != nil {
			return nil, "", err
		}
		return data, s.ContentType(), nil
	}
	return nil, "", nil
}
