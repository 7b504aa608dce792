package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/gaborage/go-bricks-net/codec"
	"github.com/gaborage/go-bricks-net/internal/tracking"
	"github.com/gaborage/go-bricks-net/logger"
	gotrace "github.com/gaborage/go-bricks-net/trace"
	"github.com/gaborage/go-bricks-net/validation"
)

const (
	// DefaultTimeout is the default request timeout duration
	DefaultTimeout = 30 * time.Second

	// DefaultMaxPayloadLogBytes caps logged request and response bodies
	DefaultMaxPayloadLogBytes = 4096

	// DefaultProgressInterval is the default period between progress lines
	DefaultProgressInterval = 500 * time.Millisecond
)

// MetricsRecorder receives per-dispatch measurements. The default records
// through OpenTelemetry; metrics.PrometheusRecorder is an alternative.
type MetricsRecorder interface {
	RecordRequest(ctx context.Context, method string, statusCode int, errorKind string, elapsed time.Duration)
	RecordInFlight(ctx context.Context, method string, delta int64)
	RecordRetry(ctx context.Context, attempt int)
	RecordTransfer(ctx context.Context, direction string, bytes int64)
}

// Client executes Requests against a base URL. It is safe for concurrent
// use; its configuration is fixed at Build time.
type Client struct {
	baseURL          *url.URL
	httpClient       *http.Client
	headers          []headerField
	timeout          time.Duration
	serializer       codec.Serializer
	deserializer     codec.Deserializer
	log              *requestLogger
	limiter          *rate.Limiter
	metrics          MetricsRecorder
	tracer           *tracking.Tracer
	progressInterval time.Duration
	cancelGrace      time.Duration
}

// Builder provides a fluent interface for configuring the client
type Builder struct {
	baseURL          string
	log              logger.Logger
	timeout          time.Duration
	headers          []headerField
	serializer       codec.Serializer
	deserializer     codec.Deserializer
	verbosity        Verbosity
	maxPayload       int
	session          Session
	httpClient       *http.Client
	tlsConfig        *tls.Config
	limiter          *rate.Limiter
	metrics          MetricsRecorder
	meterProvider    metric.MeterProvider
	tracerProvider   trace.TracerProvider
	progressInterval time.Duration
	cancelGrace      time.Duration
}

// NewBuilder creates a new client builder for baseURL. A nil log discards output.
func NewBuilder(baseURL string, log logger.Logger) *Builder {
	return &Builder{
		baseURL:          baseURL,
		log:              log,
		timeout:          DefaultTimeout,
		serializer:       codec.JSON{},
		deserializer:     codec.JSON{},
		verbosity:        VerbosityVerbose,
		maxPayload:       DefaultMaxPayloadLogBytes,
		progressInterval: DefaultProgressInterval,
		cancelGrace:      DefaultCancelGrace,
	}
}

// WithTimeout sets the client-wide timeout. Zero disables it, leaving
// per-request overrides and Await deadlines in charge.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeout = timeout
	return b
}

// WithCommonHeader adds a header sent with every request. Request headers
// with the same name take precedence.
func (b *Builder) WithCommonHeader(name, value string) *Builder {
	b.headers = setHeaderField(b.headers, name, value)
	return b
}

// WithCommonHeaders adds several common headers.
func (b *Builder) WithCommonHeaders(h map[string]string) *Builder {
	b.headers = Request{headers: b.headers}.WithHeaders(h).headers
	return b
}

// WithSerializer sets the default body serializer.
func (b *Builder) WithSerializer(s codec.Serializer) *Builder {
	b.serializer = s
	return b
}

// WithDeserializer sets the deserializer used by Perform.
func (b *Builder) WithDeserializer(d codec.Deserializer) *Builder {
	b.deserializer = d
	return b
}

// WithVerbosity selects which events are logged.
func (b *Builder) WithVerbosity(v Verbosity) *Builder {
	b.verbosity = v
	return b
}

// WithMaxPayloadLogBytes caps logged bodies; zero logs them whole.
func (b *Builder) WithMaxPayloadLogBytes(n int) *Builder {
	b.maxPayload = n
	return b
}

// WithSession selects the cookie behaviour of the underlying transport.
func (b *Builder) WithSession(s Session) *Builder {
	b.session = s
	return b
}

// WithHTTPClient uses hc (copied) instead of a client built from http.DefaultTransport.
func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	b.httpClient = hc
	return b
}

// WithTLSConfig sets the TLS configuration of the built transport. It is
// ignored when WithHTTPClient is used.
func (b *Builder) WithTLSConfig(cfg *tls.Config) *Builder {
	b.tlsConfig = cfg
	return b
}

// WithRateLimit throttles dispatches to limit per second with the given burst.
func (b *Builder) WithRateLimit(limit rate.Limit, burst int) *Builder {
	b.limiter = rate.NewLimiter(limit, burst)
	return b
}

// WithMetrics replaces the default OpenTelemetry recorder.
func (b *Builder) WithMetrics(m MetricsRecorder) *Builder {
	b.metrics = m
	return b
}

// WithMeterProvider sets the provider for the default recorder.
func (b *Builder) WithMeterProvider(mp metric.MeterProvider) *Builder {
	b.meterProvider = mp
	return b
}

// WithTracerProvider sets the provider for dispatch spans.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithProgressInterval sets the default period between progress lines.
func (b *Builder) WithProgressInterval(d time.Duration) *Builder {
	b.progressInterval = d
	return b
}

// WithCancelGrace sets the grace used by AwaitOptions.
func (b *Builder) WithCancelGrace(d time.Duration) *Builder {
	b.cancelGrace = d
	return b
}

// Build creates the client. A malformed base URL or an unknown session
// profile is reported here, before any request is made.
func (b *Builder) Build() (*Client, error) {
	if !validation.IsBaseURL(b.baseURL) {
		return nil, fmt.Errorf("httpclient: invalid base URL %q: must be an absolute http or https URL", b.baseURL)
	}
	base, err := url.Parse(b.baseURL)
	if err != nil {
		return nil, fmt.Errorf("httpclient: invalid base URL %q: %w", b.baseURL, err)
	}
	if b.serializer == nil || b.deserializer == nil {
		return nil, errors.New("httpclient: serializer and deserializer are required")
	}

	hc, err := buildHTTPClient(b.httpClient, b.tlsConfig, b.session)
	if err != nil {
		return nil, err
	}

	metrics := b.metrics
	if metrics == nil {
		metrics = tracking.NewRecorder(b.meterProvider)
	}

	interval := b.progressInterval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}

	return &Client{
		baseURL:          base,
		httpClient:       hc,
		headers:          slices.Clone(b.headers),
		timeout:          b.timeout,
		serializer:       b.serializer,
		deserializer:     b.deserializer,
		log:              newRequestLogger(b.log, b.verbosity, b.maxPayload),
		limiter:          b.limiter,
		metrics:          metrics,
		tracer:           tracking.NewTracer(b.tracerProvider),
		progressInterval: interval,
		cancelGrace:      b.cancelGrace,
	}, nil
}

// MustBuild is Build for call sites that treat a bad configuration as fatal.
func (b *Builder) MustBuild() *Client {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}
	return c
}

// BaseURL returns a copy of the client base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Timeout returns the client-wide timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Send returns an operation that dispatches req. A non-2xx status yields
// both the Response and a KindHTTPStatus error carrying it.
func (c *Client) Send(req Request) Operation[*Response] {
	return func(ctx context.Context) (*Response, error) {
		return c.do(ctx, req, nil)
	}
}

// SendWithRetry is Retry(c.Send(req), policy) with retries counted and logged.
func (c *Client) SendWithRetry(req Request, policy RetryPolicy) Operation[*Response] {
	return retry(c.Send(req), policy, c.onRetry)
}

// SendAndWait dispatches req and blocks for at most timeout.
func (c *Client) SendAndWait(ctx context.Context, req Request, timeout time.Duration) (*Response, error) {
	return Run(ctx, c.Send(req), timeout, c.AwaitOptions()...)
}

// Perform returns an operation that dispatches req and decodes a 2xx body
// into T with the client deserializer. Use codec.Empty for bodiless calls.
func Perform[T any](c *Client, req Request) Operation[T] {
	return func(ctx context.Context) (T, error) {
		var out T
		resp, err := c.do(ctx, req, nil)
		if err != nil {
			return out, err
		}
		if err := c.decode(resp, &out); err != nil {
			var zero T
			return zero, err
		}
		return out, nil
	}
}

// PerformWithRetry is Retry(Perform[T](c, req), policy) with retries counted and logged.
func PerformWithRetry[T any](c *Client, req Request, policy RetryPolicy) Operation[T] {
	return retry(Perform[T](c, req), policy, c.onRetry)
}

// Call performs req and blocks for at most timeout.
func Call[T any](ctx context.Context, c *Client, req Request, timeout time.Duration) (T, error) {
	return Run(ctx, Perform[T](c, req), timeout, c.AwaitOptions()...)
}

// AwaitOptions returns the cancel grace and warning channel configured on c.
func (c *Client) AwaitOptions() []AwaitOption {
	return []AwaitOption{WithCancelGrace(c.cancelGrace), WithWarnings(c)}
}

// Unexpected logs a warning on the unexpected-behaviour channel.
func (c *Client) Unexpected(msg string, fields map[string]any) {
	c.log.unexpected(msg, fields)
}

func (c *Client) onRetry(ctx context.Context, attempt, maxAttempts int, err error) {
	c.metrics.RecordRetry(ctx, attempt)
	c.log.retrying(attempt, maxAttempts, err)
}

func (c *Client) decode(resp *Response, out any) error {
	if len(resp.Body) == 0 {
		switch out.(type) {
		case *codec.Empty, *[]byte, *string:
			return nil
		}
		err := newDecodeError(errors.New("empty response body"), resp)
		c.log.decodeFailure(resp.CorrelationID, err)
		return err
	}
	if _, ok := out.(*codec.Empty); ok {
		return nil
	}
	if err := resp.Decode(c.deserializer, out); err != nil {
		c.log.decodeFailure(resp.CorrelationID, err)
		return err
	}
	return nil
}

// do performs one dispatch: validate, encode, log the request, send, then
// log the response or failure under the same correlation id.
func (c *Client) do(ctx context.Context, req Request, x *transfer) (*Response, error) {
	if err := validation.Struct(req); err != nil {
		return nil, newInvalidRequestError(err)
	}
	target, err := req.URL(c.baseURL)
	if err != nil {
		return nil, newInvalidRequestError(err)
	}

	var (
		body        []byte
		contentType string
		bodyNote    string
	)
	if x != nil && x.direction == DirectionUpload {
		contentType = contentTypeOctetStream
		bodyNote = fmt.Sprintf("<upload %s>", formatBytes(x.size))
	} else {
		body, contentType, err = req.encodeBody(c.serializer)
		if err != nil {
			return nil, newInvalidRequestError(fmt.Errorf("encode body: %w", err))
		}
	}

	id := gotrace.NewCorrelationID()
	headers := c.mergeHeaders(req, contentType, id)

	timeout := effectiveTimeout(c.timeout, req.Timeout())
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx = gotrace.WithCorrelationID(ctx, id)

	ctx, span := c.tracer.Start(ctx, req.Method, target, id)
	c.tracer.Inject(ctx, headers)

	// Measurements outlive the request context.
	mctx := context.WithoutCancel(ctx)
	c.metrics.RecordInFlight(mctx, req.Method, 1)
	defer c.metrics.RecordInFlight(mctx, req.Method, -1)

	start := time.Now()
	c.log.request(id, req.Method, target, headers, body, bodyNote)

	resp, nerr := c.exchange(ctx, req.Method, target, headers, body, x, id, timeout)
	elapsed := time.Since(start)

	if nerr != nil {
		c.log.failure(id, req.Method, target, nerr, elapsed)
		c.metrics.RecordRequest(mctx, req.Method, 0, string(nerr.Kind), elapsed)
		tracking.EndSpan(span, 0, string(nerr.Kind), nerr)
		return nil, nerr
	}

	resp.Elapsed = elapsed
	resp.CorrelationID = id
	c.log.response(id, req.Method, target, resp)

	if !resp.IsSuccess() {
		herr := newHTTPStatusError(resp)
		c.metrics.RecordRequest(mctx, req.Method, resp.StatusCode, string(herr.Kind), elapsed)
		tracking.EndSpan(span, resp.StatusCode, string(herr.Kind), herr)
		return resp, herr
	}

	c.metrics.RecordRequest(mctx, req.Method, resp.StatusCode, "", elapsed)
	tracking.EndSpan(span, resp.StatusCode, "", nil)
	return resp, nil
}

// exchange sends the prepared request and reads the response. Every failure
// is classified into a NetworkingError; the response body is always closed.
func (c *Client) exchange(ctx context.Context, method string, target *url.URL, headers http.Header, body []byte, x *transfer, id string, timeout time.Duration) (*Response, *NetworkingError) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, classifyError(ctx, err, timeout)
		}
	}

	var (
		reader        io.Reader
		contentLength int64 = -1
		upload        *progressMeter
	)
	switch {
	case x != nil && x.direction == DirectionUpload:
		src, err := x.source()
		if err != nil {
			return nil, newInvalidRequestError(err)
		}
		upload = c.newMeter(id, x, x.size)
		reader = &countingReader{r: src, meter: upload}
		contentLength = x.size
	case body != nil:
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, newInvalidRequestError(err)
	}
	httpReq.Header = headers
	if upload != nil && contentLength >= 0 {
		httpReq.ContentLength = contentLength
	}

	if upload != nil {
		upload.start()
	}
	httpResp, err := c.httpClient.Do(httpReq)
	if upload != nil {
		upload.finish(err == nil)
		c.metrics.RecordTransfer(context.WithoutCancel(ctx), string(DirectionUpload), upload.transferred())
	}
	if err != nil {
		return nil, classifyError(ctx, err, timeout)
	}
	defer httpResp.Body.Close()

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Status:     Classify(httpResp.StatusCode),
		Headers:    httpResp.Header,
	}

	if x != nil && x.direction == DirectionDownload && resp.Status == Success {
		meter := c.newMeter(id, x, httpResp.ContentLength)
		meter.start()
		_, err := io.Copy(&countingWriter{w: x.dst, meter: meter}, httpResp.Body)
		meter.finish(err == nil)
		c.metrics.RecordTransfer(context.WithoutCancel(ctx), string(DirectionDownload), meter.transferred())
		if err != nil {
			return nil, classifyError(ctx, err, timeout)
		}
		return resp, nil
	}

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyError(ctx, err, timeout)
	}
	resp.Body = data
	return resp, nil
}

// mergeHeaders layers common headers, the body content type, and request
// headers, in that order; later layers win. X-Request-ID carries the
// correlation id unless the request sets it.
func (c *Client) mergeHeaders(req Request, contentType, id string) http.Header {
	h := make(http.Header, len(c.headers)+len(req.headers)+2)
	for _, f := range c.headers {
		h.Set(f.name, f.value)
	}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	for _, f := range req.headers {
		h.Set(f.name, f.value)
	}
	if h.Get(gotrace.HeaderXRequestID) == "" {
		h.Set(gotrace.HeaderXRequestID, id)
	}
	return h
}

// effectiveTimeout returns the smaller positive timeout, or zero when neither is set.
func effectiveTimeout(client, request time.Duration) time.Duration {
	switch {
	case request <= 0:
		return client
	case client <= 0:
		return request
	case request < client:
		return request
	default:
		return client
	}
}

// classifyError maps a dispatch failure to its kind. A cancellation cause
// that is already a NetworkingError (set by Await) is returned as is.
func classifyError(ctx context.Context, err error, timeout time.Duration) *NetworkingError {
	var sinkErr *destinationError
	if errors.As(err, &sinkErr) {
		return newTransportError(err)
	}
	if ctx.Err() != nil {
		if ne, ok := AsNetworkingError(context.Cause(ctx)); ok {
			return ne
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return newTimeoutError(timeout, err)
		}
		return newCancelledError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newTimeoutError(timeout, err)
	}
	return newTransportError(err)
}
