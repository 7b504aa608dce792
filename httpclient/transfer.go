package httpclient

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
)

const contentTypeOctetStream = "application/octet-stream"

// transfer carries the streaming side of a Download or Upload through a dispatch.
type transfer struct {
	direction Direction
	dst       io.Writer
	src       io.Reader
	size      int64
	opts      transferOptions
	used      atomic.Bool
}

// source returns the upload reader for a new attempt. Seekable sources are
// rewound; other sources can only be sent once.
func (x *transfer) source() (io.Reader, error) {
	if x.used.Swap(true) {
		seeker, ok := x.src.(io.Seeker)
		if !ok {
			return nil, errors.New("upload source cannot be replayed: it does not implement io.Seeker")
		}
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
	}
	return x.src, nil
}

func newTransfer(direction Direction, opts []TransferOption) *transfer {
	x := &transfer{direction: direction, size: -1}
	for _, opt := range opts {
		opt(&x.opts)
	}
	return x
}

// Download returns an operation that streams a 2xx response body into dst
// while reporting progress. The returned Response has an empty Body. For
// non-2xx responses the body is captured in the Response as usual.
func (c *Client) Download(req Request, dst io.Writer, opts ...TransferOption) Operation[*Response] {
	x := newTransfer(DirectionDownload, opts)
	x.dst = dst
	return func(ctx context.Context) (*Response, error) {
		if dst == nil {
			return nil, newInvalidRequestError(errors.New("download destination is nil"))
		}
		return c.do(ctx, req, x)
	}
}

// Upload returns an operation that streams size bytes from src as the
// request body while reporting progress. A negative size sends the body
// chunked with an unknown total. Any body set on req is ignored; a
// Content-Type header on req overrides application/octet-stream.
func (c *Client) Upload(req Request, src io.Reader, size int64, opts ...TransferOption) Operation[*Response] {
	x := newTransfer(DirectionUpload, opts)
	x.src = src
	if size >= 0 {
		x.size = size
	}
	return func(ctx context.Context) (*Response, error) {
		if src == nil {
			return nil, newInvalidRequestError(errors.New("upload source is nil"))
		}
		return c.do(ctx, req, x)
	}
}

type countingReader struct {
	r     io.Reader
	meter *progressMeter
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.meter.add(n)
	return n, err
}

// destinationError marks a failed write to the download destination so it
// is not mistaken for a network failure.
type destinationError struct {
	err error
}

func (e *destinationError) Error() string { return "write download destination: " + e.err.Error() }
func (e *destinationError) Unwrap() error { return e.err }

type countingWriter struct {
	w     io.Writer
	meter *progressMeter
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.meter.add(n)
	if err != nil {
		return n, &destinationError{err: err}
	}
	return n, nil
}
