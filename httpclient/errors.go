package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrorKind classifies a NetworkingError.
type ErrorKind string

const (
	// KindTransport covers DNS, connection, TLS and body read failures.
	KindTransport ErrorKind = "transport"
	// KindHTTPStatus is a received response whose status is not 2xx.
	KindHTTPStatus ErrorKind = "http_status"
	// KindDecode is a 2xx body the deserializer could not decode.
	KindDecode ErrorKind = "decode"
	// KindTimeout is an elapsed client, request or await deadline.
	KindTimeout ErrorKind = "timeout"
	// KindCancelled is an externally cancelled operation.
	KindCancelled ErrorKind = "cancelled"
	// KindInvalidRequest is a programmer error caught before dispatch.
	KindInvalidRequest ErrorKind = "invalid_request"
)

const snippetLength = 256

// Sentinels for errors.Is. Matching compares kinds only.
var (
	ErrTransport      = &NetworkingError{Kind: KindTransport}
	ErrHTTPStatus     = &NetworkingError{Kind: KindHTTPStatus}
	ErrDecode         = &NetworkingError{Kind: KindDecode}
	ErrTimeout        = &NetworkingError{Kind: KindTimeout}
	ErrCancelled      = &NetworkingError{Kind: KindCancelled}
	ErrInvalidRequest = &NetworkingError{Kind: KindInvalidRequest}
)

// NetworkingError is the single failure type surfaced by the client.
type NetworkingError struct {
	Kind  ErrorKind
	Cause error
	// Response is set for KindHTTPStatus and KindDecode.
	Response *Response
	// RawBody holds the undecodable payload for KindDecode.
	RawBody []byte
	// Timeout is the deadline that elapsed for KindTimeout, when known.
	Timeout time.Duration
}

func (e *NetworkingError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		msg := "http status " + strings.TrimSpace(fmt.Sprintf("%d %s", e.StatusCode(), http.StatusText(e.StatusCode())))
		if s := e.Snippet(); s != "" {
			msg += ": " + s
		}
		return msg
	case KindDecode:
		return fmt.Sprintf("decode failure (%d bytes): %v", len(e.RawBody), e.Cause)
	case KindTimeout:
		if e.Timeout > 0 {
			return fmt.Sprintf("timed out after %s", e.Timeout)
		}
		return "timed out"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.kindLabel(), e.Cause)
	}
	return e.kindLabel()
}

func (e *NetworkingError) kindLabel() string {
	switch e.Kind {
	case KindTransport:
		return "transport failure"
	case KindCancelled:
		return "cancelled"
	case KindInvalidRequest:
		return "invalid request"
	}
	return string(e.Kind)
}

func (e *NetworkingError) Unwrap() error {
	return e.Cause
}

// Is matches any *NetworkingError of the same kind.
func (e *NetworkingError) Is(target error) bool {
	t, ok := target.(*NetworkingError)
	return ok && t.Kind == e.Kind
}

// StatusCode returns the response status, or 0 when no response was received.
func (e *NetworkingError) StatusCode() int {
	if e.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}

// Snippet returns the start of the captured payload, cut at a rune boundary.
func (e *NetworkingError) Snippet() string {
	body := e.RawBody
	if body == nil && e.Response != nil {
		body = e.Response.Body
	}
	if len(body) <= snippetLength {
		if !utf8.Valid(body) {
			return fmt.Sprintf("<%d bytes>", len(body))
		}
		return string(body)
	}
	cut := snippetLength
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	if !utf8.Valid(body[:cut]) {
		return fmt.Sprintf("<%d bytes>", len(body))
	}
	return string(body[:cut]) + "..."
}

// AsNetworkingError extracts a *NetworkingError from err's chain.
func AsNetworkingError(err error) (*NetworkingError, bool) {
	var ne *NetworkingError
	if errors.As(err, &ne) {
		return ne, true
	}
	return nil, false
}

// IsKind reports whether err carries a NetworkingError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	ne, ok := AsNetworkingError(err)
	return ok && ne.Kind == kind
}

// IsHTTPStatus reports whether err is an http_status error with the given code.
func IsHTTPStatus(err error, code int) bool {
	ne, ok := AsNetworkingError(err)
	return ok && ne.Kind == KindHTTPStatus && ne.StatusCode() == code
}

func newTransportError(cause error) *NetworkingError {
	return &NetworkingError{Kind: KindTransport, Cause: cause}
}

func newHTTPStatusError(resp *Response) *NetworkingError {
	return &NetworkingError{Kind: KindHTTPStatus, Response: resp}
}

func newDecodeError(cause error, resp *Response) *NetworkingError {
	return &NetworkingError{Kind: KindDecode, Cause: cause, Response: resp, RawBody: resp.Body}
}

func newTimeoutError(timeout time.Duration, cause error) *NetworkingError {
	return &NetworkingError{Kind: KindTimeout, Cause: cause, Timeout: timeout}
}

func newCancelledError(cause error) *NetworkingError {
	return &NetworkingError{Kind: KindCancelled, Cause: cause}
}

func newInvalidRequestError(cause error) *NetworkingError {
	return &NetworkingError{Kind: KindInvalidRequest, Cause: cause}
}
