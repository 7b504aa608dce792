package httpclient

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gaborage/go-bricks-net/logger"
)

// Verbosity selects which client events reach the logger.
type Verbosity int

const (
	// VerbositySilent logs nothing.
	VerbositySilent Verbosity = iota
	// VerbosityErrors logs failures and unexpected-behaviour warnings. Request
	// and success lines are emitted at debug level only.
	VerbosityErrors
	// VerbosityVerbose logs every request, response and progress line.
	VerbosityVerbose
)

func (v Verbosity) String() string {
	switch v {
	case VerbositySilent:
		return "silent"
	case VerbosityErrors:
		return "errors"
	default:
		return "verbose"
	}
}

// ParseVerbosity parses "silent", "errors" or "verbose".
func ParseVerbosity(s string) (Verbosity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent":
		return VerbositySilent, nil
	case "errors", "errors-only", "errors_only":
		return VerbosityErrors, nil
	case "verbose", "":
		return VerbosityVerbose, nil
	}
	return VerbosityVerbose, fmt.Errorf("unknown verbosity %q", s)
}

const (
	directionOutbound = "outbound"
	directionInbound  = "inbound"
)

// requestLogger emits the client's structured events: a request line before
// transmission, a response or failure line after settlement keyed by the same
// correlation id, transfer progress, and unexpected-behaviour warnings.
type requestLogger struct {
	log        logger.Logger
	filter     *logger.SensitiveDataFilter
	verbosity  Verbosity
	maxPayload int
}

func newRequestLogger(log logger.Logger, verbosity Verbosity, maxPayload int) *requestLogger {
	if log == nil {
		log = logger.Nop()
	}
	var filter *logger.SensitiveDataFilter
	if f, ok := log.(interface {
		Filter() *logger.SensitiveDataFilter
	}); ok {
		filter = f.Filter()
	}
	if filter == nil {
		filter = logger.NewSensitiveDataFilter(nil)
	}
	return &requestLogger{log: log, filter: filter, verbosity: verbosity, maxPayload: maxPayload}
}

// routine returns the event for a line that is informational at the current
// verbosity, or nil when it should be dropped.
func (l *requestLogger) routine() logger.LogEvent {
	switch l.verbosity {
	case VerbosityVerbose:
		return l.log.Info()
	case VerbosityErrors:
		return l.log.Debug()
	}
	return nil
}

func (l *requestLogger) request(id, method string, target *url.URL, headers http.Header, body []byte, bodyNote string) {
	event := l.routine()
	if event == nil {
		return
	}
	event = event.
		Str("correlation_id", id).
		Str("direction", directionOutbound).
		Str("method", method).
		Str("url", target.Redacted()).
		Interface("headers", l.filter.FilterHeaders(headers))
	switch {
	case bodyNote != "":
		event = event.Str("body", bodyNote)
	case len(body) > 0:
		event = event.Str("body", l.filter.FilterBody(headers.Get("Content-Type"), body, l.maxPayload))
	}
	event.Msg("HTTP request")
}

func (l *requestLogger) response(id, method string, target *url.URL, resp *Response) {
	if l.verbosity == VerbositySilent {
		return
	}

	var event logger.LogEvent
	outcome := "failure"
	switch resp.Status {
	case Success:
		outcome = "success"
		event = l.routine()
	case Informational, Redirection:
		event = l.log.Warn()
	case ClientError:
		event = l.log.Warn()
	default:
		event = l.log.Error()
	}
	if event == nil {
		return
	}

	event = event.
		Str("correlation_id", id).
		Str("direction", directionInbound).
		Str("method", method).
		Str("url", target.Redacted()).
		Int("status", resp.StatusCode).
		Str("status_class", resp.Status.String()).
		Str("outcome", outcome).
		Dur("elapsed", resp.Elapsed)
	if l.verbosity == VerbosityVerbose {
		event = event.Interface("headers", l.filter.FilterHeaders(resp.Headers))
	}
	if len(resp.Body) > 0 {
		event = event.Str("body", l.filter.FilterBody(resp.ContentType(), resp.Body, l.maxPayload))
	}
	event.Msg("HTTP response")
}

func (l *requestLogger) failure(id, method string, target *url.URL, err *NetworkingError, elapsed time.Duration) {
	if l.verbosity == VerbositySilent {
		return
	}
	event := l.log.Error()
	if err.Kind == KindCancelled {
		event = l.log.Warn()
	}
	event.
		Str("correlation_id", id).
		Str("direction", directionInbound).
		Str("method", method).
		Str("url", target.Redacted()).
		Str("outcome", "failure").
		Str("error_kind", string(err.Kind)).
		Dur("elapsed", elapsed).
		Err(err).
		Msg("HTTP request failed")
}

func (l *requestLogger) progress(id string, p TransferProgress) {
	event := l.routine()
	if event == nil {
		return
	}
	event.
		Str("correlation_id", id).
		Str("direction", string(p.Direction)).
		Str("description", p.Description).
		Int64("bytes_transferred", p.BytesTransferred).
		Int64("bytes_expected", p.BytesExpected).
		Msg("Transfer progress: " + p.String())
}

func (l *requestLogger) transferDone(id string, p TransferProgress, completed bool) {
	event := l.routine()
	if event == nil {
		return
	}
	msg := "Transfer done: "
	if !completed {
		msg = "Transfer aborted: "
	}
	event.
		Str("correlation_id", id).
		Str("direction", string(p.Direction)).
		Str("description", p.Description).
		Int64("bytes_transferred", p.BytesTransferred).
		Int64("bytes_expected", p.BytesExpected).
		Bool("completed", completed).
		Msg(msg + p.String())
}

func (l *requestLogger) retrying(attempt, maxAttempts int, err error) {
	event := l.routine()
	if event == nil {
		return
	}
	event.
		Int("attempt", attempt).
		Int("max_attempts", maxAttempts).
		Err(err).
		Msg("Retrying HTTP operation")
}

// unexpected logs a warning that is independent of any request.
func (l *requestLogger) unexpected(msg string, fields map[string]any) {
	if l.verbosity == VerbositySilent {
		return
	}
	event := l.log.Warn().Str("channel", "unexpected")
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg("Unexpected behaviour: " + msg)
}

func (l *requestLogger) decodeFailure(id string, err error) {
	if l.verbosity == VerbositySilent {
		return
	}
	l.log.Error().
		Str("correlation_id", id).
		Str("error_kind", string(KindDecode)).
		Err(err).
		Msg("HTTP response decode failed")
}
