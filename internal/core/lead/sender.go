package lead

import (
	"context"
	"encoding/json"
	"sync"

	perr "campaigncollector/internal/platform/errors"
	"campaigncollector/internal/platform/logger"
)

// ErrNotConfigured is returned synchronously when no endpoint is set
var ErrNotConfigured = perr.New(perr.ErrorCodeInvalidArgument, "lead: endpoint not configured")

// Sender delivers payloads fire-and-forget: the beacon queue first, a blocking
// post on its own goroutine when the queue refuses
type Sender struct {
	endpoint string
	beacon   *Beacon
	http     *HTTPTransport
	reporter Reporter
	inflight sync.WaitGroup
}

// SenderOptions configures a Sender
type SenderOptions struct {
	Endpoint string
	// Beacon may be nil, every send then takes the blocking path
	Beacon   *Beacon
	HTTP     *HTTPTransport
	Reporter Reporter
}

// NewSender builds a Sender; a nil Reporter logs failures at warn
func NewSender(opt SenderOptions) *Sender {
	s := &Sender{
		endpoint: opt.Endpoint,
		beacon:   opt.Beacon,
		http:     opt.HTTP,
		reporter: opt.Reporter,
	}
	if s.http == nil {
		s.http = &HTTPTransport{}
	}
	if s.reporter == nil {
		s.reporter = LogReporter()
	}
	return s
}

// Configured reports whether an endpoint is set
func (s *Sender) Configured() bool { return s.endpoint != "" }

// Send queues p for delivery and returns at once
// only a missing endpoint or an unencodable payload is returned; delivery
// failures go to the Reporter
func (s *Sender) Send(ctx context.Context, p *Payload) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	body, err := json.Marshal(p)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "lead: encode payload")
	}
	if s.beacon != nil && s.beacon.Enqueue(ctx, s.endpoint, body, p) {
		return nil
	}

	bg := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := s.http.Post(bg, s.endpoint, body); err != nil {
			s.reporter.Report(bg, err, p)
		}
	}()
	return nil
}

// Wait blocks until fallback deliveries started so far have finished
func (s *Sender) Wait() { s.inflight.Wait() }

// LogReporter logs delivery failures
func LogReporter() Reporter {
	return ReporterFunc(func(ctx context.Context, err error, p *Payload) {
		ev := logger.C(ctx).Warn().Err(err)
		if p != nil {
			ev = ev.Str("event_id", p.EventID).Str("event", p.Event)
		}
		ev.Msg("lead delivery failed")
	})
}
