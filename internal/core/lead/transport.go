package lead

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"campaigncollector/internal/core/version"
	perr "campaigncollector/internal/platform/errors"
)

// DefaultTimeout bounds one blocking delivery
const DefaultTimeout = 10 * time.Second

// Reporter receives delivery failures; deliveries are never retried
type Reporter interface {
	Report(ctx context.Context, err error, p *Payload)
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(ctx context.Context, err error, p *Payload)

// Report implements Reporter
func (f ReporterFunc) Report(ctx context.Context, err error, p *Payload) { f(ctx, err, p) }

// HTTPTransport posts JSON and waits for the response
type HTTPTransport struct {
	Client  *http.Client
	Timeout time.Duration
}

// Post delivers body to endpoint; any non-2xx status is an error
func (t *HTTPTransport) Post(ctx context.Context, endpoint string, body []byte) error {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "lead: build request for %s", endpoint)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "lead: post")
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return perr.Newf(perr.ErrorCodeUnavailable, "lead: endpoint answered %d", res.StatusCode)
	}
	return nil
}

// beaconErr marks a failure of a queued delivery
type beaconErr struct{ err error }

func (e beaconErr) Error() string { return "beacon: " + e.err.Error() }
func (e beaconErr) Unwrap() error { return e.err }

// TransportOf names the transport a reported error came from: beacon or http
func TransportOf(err error) string {
	var b beaconErr
	if errors.As(err, &b) {
		return "beacon"
	}
	return "http"
}

type job struct {
	ctx      context.Context
	endpoint string
	body     []byte
	payload  *Payload
}

// Beacon is the best-effort, non-blocking transport: a bounded queue drained by
// one worker goroutine
type Beacon struct {
	queue    chan job
	http     *HTTPTransport
	reporter Reporter

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewBeacon starts the worker; size bounds the queue
func NewBeacon(size int, t *HTTPTransport, r Reporter) *Beacon {
	if size <= 0 {
		size = 64
	}
	b := &Beacon{
		queue:    make(chan job, size),
		http:     t,
		reporter: r,
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

// Enqueue hands the body to the worker; false when the queue is full or closed
func (b *Beacon) Enqueue(ctx context.Context, endpoint string, body []byte, p *Payload) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false
	}
	select {
	case b.queue <- job{ctx: context.WithoutCancel(ctx), endpoint: endpoint, body: body, payload: p}:
		return true
	default:
		return false
	}
}

func (b *Beacon) run() {
	defer close(b.done)
	for j := range b.queue {
		if err := b.http.Post(j.ctx, j.endpoint, j.body); err != nil && b.reporter != nil {
			b.reporter.Report(j.ctx, beaconErr{err: err}, j.payload)
		}
	}
}

// Close stops accepting work and waits for the queue to drain or ctx to end
func (b *Beacon) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
