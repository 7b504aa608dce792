package httpclient

import (
	"net/http"
	"time"

	"github.com/gaborage/go-bricks-net/codec"
)

// StatusClass groups HTTP status codes by numeric range.
type StatusClass int

const (
	Undefined StatusClass = iota
	Informational
	Success
	Redirection
	ClientError
	ServerError
)

func (s StatusClass) String() string {
	switch s {
	case Informational:
		return "informational"
	case Success:
		return "success"
	case Redirection:
		return "redirection"
	case ClientError:
		return "client_error"
	case ServerError:
		return "server_error"
	default:
		return "undefined"
	}
}

// Classify maps a status code to its class. Codes outside 100-599 are Undefined.
func Classify(code int) StatusClass {
	switch {
	case code >= 100 && code <= 199:
		return Informational
	case code >= 200 && code <= 299:
		return Success
	case code >= 300 && code <= 399:
		return Redirection
	case code >= 400 && code <= 499:
		return ClientError
	case code >= 500 && code <= 599:
		return ServerError
	default:
		return Undefined
	}
}

// Response is a completed call. It is read-only once returned.
type Response struct {
	StatusCode    int
	Status        StatusClass
	Headers       http.Header
	Body          []byte
	Elapsed       time.Duration
	CorrelationID string
}

// IsSuccess reports whether the status is 2xx.
func (r *Response) IsSuccess() bool {
	return r != nil && r.Status == Success
}

// ContentType returns the Content-Type response header.
func (r *Response) ContentType() string {
	if r == nil {
		return ""
	}
	return r.Headers.Get("Content-Type")
}

// Decode decodes the body with d. A failure is returned as a decode NetworkingError.
func (r *Response) Decode(d codec.Deserializer, out any) error {
	if err := d.Deserialize(r.Body, out); err != nil {
		return newDecodeError(err, r)
	}
	return nil
}
