package httpclient

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Direction tells uploads from downloads.
type Direction string

const (
	DirectionDownload Direction = "download"
	DirectionUpload   Direction = "upload"
)

// TransferProgress is a snapshot of an in-flight transfer. BytesExpected is
// -1 when the size is unknown.
type TransferProgress struct {
	Description      string
	Direction        Direction
	BytesTransferred int64
	BytesExpected    int64
}

// Fraction returns the completed share in [0, 1], or false when the total is unknown.
func (p TransferProgress) Fraction() (float64, bool) {
	if p.BytesExpected < 0 {
		return 0, false
	}
	if p.BytesExpected == 0 {
		return 1, true
	}
	f := float64(p.BytesTransferred) / float64(p.BytesExpected)
	if f > 1 {
		f = 1
	}
	return f, true
}

// String renders "12 B / 100 B (12%)" or "12 B / unknown".
func (p TransferProgress) String() string {
	f, known := p.Fraction()
	if !known {
		return formatBytes(p.BytesTransferred) + " / unknown"
	}
	return fmt.Sprintf("%s / %s (%d%%)", formatBytes(p.BytesTransferred), formatBytes(p.BytesExpected), int(f*100))
}

func formatBytes(n int64) string {
	if n < 0 {
		return "unknown"
	}
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// TransferOption tunes one Download or Upload.
type TransferOption func(*transferOptions)

type transferOptions struct {
	description string
	interval    time.Duration
	observers   []func(TransferProgress)
}

// WithProgressObserver registers fn to receive every snapshot, including the
// final one. Snapshots are delivered from a single goroutine in order.
func WithProgressObserver(fn func(TransferProgress)) TransferOption {
	return func(o *transferOptions) {
		if fn != nil {
			o.observers = append(o.observers, fn)
		}
	}
}

// WithProgressDescription labels progress lines, e.g. "ipa upload".
func WithProgressDescription(desc string) TransferOption {
	return func(o *transferOptions) {
		o.description = desc
	}
}

// WithProgressInterval overrides the client progress interval for one transfer.
func WithProgressInterval(d time.Duration) TransferOption {
	return func(o *transferOptions) {
		if d > 0 {
			o.interval = d
		}
	}
}

// progressMeter counts bytes on the I/O path and reports snapshots from its
// own goroutine, so reporting never slows the transfer or its completion.
type progressMeter struct {
	id        string
	base      TransferProgress
	interval  time.Duration
	observers []func(TransferProgress)
	log       *requestLogger

	count     atomic.Int64
	completed atomic.Bool
	stopOnce  sync.Once
	stop      chan struct{}
	finished  chan struct{}
}

func (c *Client) newMeter(id string, x *transfer, expected int64) *progressMeter {
	if expected < 0 {
		expected = -1
	}
	interval := x.opts.interval
	if interval <= 0 {
		interval = c.progressInterval
	}
	description := x.opts.description
	if description == "" {
		description = string(x.direction)
	}
	return &progressMeter{
		id:        id,
		base:      TransferProgress{Description: description, Direction: x.direction, BytesExpected: expected},
		interval:  interval,
		observers: x.opts.observers,
		log:       c.log,
		stop:      make(chan struct{}),
		finished:  make(chan struct{}),
	}
}

func (m *progressMeter) add(n int) {
	if n > 0 {
		m.count.Add(int64(n))
	}
}

func (m *progressMeter) transferred() int64 {
	return m.count.Load()
}

func (m *progressMeter) snapshot() TransferProgress {
	p := m.base
	p.BytesTransferred = m.count.Load()
	return p
}

func (m *progressMeter) start() {
	go m.report()
}

// finish stops reporting without waiting for the reporter to drain.
func (m *progressMeter) finish(completed bool) {
	m.stopOnce.Do(func() {
		m.completed.Store(completed)
		close(m.stop)
	})
}

func (m *progressMeter) report() {
	defer close(m.finished)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	last := m.snapshot()
	m.publish(last)
	for {
		select {
		case <-ticker.C:
			p := m.snapshot()
			if p.BytesTransferred != last.BytesTransferred {
				last = p
				m.publish(p)
			}
		case <-m.stop:
			final := m.snapshot()
			completed := m.completed.Load()
			if completed && final.BytesExpected < 0 {
				final.BytesExpected = final.BytesTransferred
			}
			for _, fn := range m.observers {
				fn(final)
			}
			m.log.transferDone(m.id, final, completed)
			return
		}
	}
}

func (m *progressMeter) publish(p TransferProgress) {
	for _, fn := range m.observers {
		fn(p)
	}
	m.log.progress(m.id, p)
}
