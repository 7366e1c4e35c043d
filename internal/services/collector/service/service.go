// Package service contains collector workflows: the long-lived Service and the
// per-request Collector that runs one page evaluation
package service

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"campaigncollector/internal/core/accessor"
	"campaigncollector/internal/core/formfill"
	"campaigncollector/internal/core/kv"
	"campaigncollector/internal/core/lead"
	"campaigncollector/internal/core/params"
	"campaigncollector/internal/core/referrer"
	"campaigncollector/internal/modkit/repokit"
	perr "campaigncollector/internal/platform/errors"
	"campaigncollector/internal/platform/logger"
	"campaigncollector/internal/platform/metrics"
	"campaigncollector/internal/services/collector/domain"
	"campaigncollector/internal/services/collector/repo"
)

// Options are the Service's collaborators
type Options struct {
	// DB backs local storage and lead intake; nil keeps local storage in
	// process and leaves intake unavailable
	DB     repokit.TxRunner
	Binder repokit.Binder[repo.Repo]
	// Table overrides the local storage table
	Table   kv.Table
	Client  *http.Client
	Metrics *metrics.Metrics
	Log     *logger.Logger
	Now     func() time.Time
}

// Service owns what every evaluation shares; safe for concurrent use
type Service struct {
	cfg        Config
	extractor  *params.Extractor
	classifier *referrer.Classifier
	filters    map[string]accessor.Filter
	fields     formfill.FieldMap
	targeting  formfill.Targeting
	sender     *lead.Sender
	beacon     *lead.Beacon
	table      kv.Table
	db         repokit.TxRunner
	binder     repokit.Binder[repo.Repo]
	metrics    *metrics.Metrics
	log        *logger.Logger
	now        func() time.Time
}

// New validates cfg and builds the shared pieces
func New(cfg Config, opt Options) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	table, err := referrer.Load(referrer.LoadOptions{File: cfg.Referrer.RulesFile, Enable: cfg.Referrer.Enable})
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "collector: referrer rules")
	}

	s := &Service{
		cfg:        cfg.Clone(),
		classifier: referrer.New(table),
		db:         opt.DB,
		binder:     opt.Binder,
		metrics:    opt.Metrics,
		log:        opt.Log,
		now:        opt.Now,
	}
	if s.log == nil {
		s.log = logger.Named("collector")
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.binder == nil {
		s.binder = repo.NewPG()
	}

	var vendor *params.Vendor
	if cfg.Params.VendorNamespace != "" {
		vendor = &params.Vendor{
			Namespace: cfg.Params.VendorNamespace,
			Marker:    cfg.Params.VendorMarker,
			Fields:    cfg.Params.VendorFields,
		}
	}
	s.extractor = params.New(params.Options{Namespace: cfg.Namespace, Vendor: vendor, Remap: cfg.Params.Remap})
	s.filters = BuildFilters(cfg.Collect.Filters, s.metrics)
	s.fields = formfill.DefaultFieldMap(cfg.Namespace).Merge(cfg.Fill.Fields)
	s.targeting = formfill.Targeting{Methods: cfg.Fill.Methods, DataAttribute: cfg.Fill.DataAttribute}

	switch {
	case opt.Table != nil:
		s.table = opt.Table
	case s.db != nil:
		s.table = s.binder.Bind(s.db)
	default:
		s.table = kv.NewMemoryTable()
	}

	transport := &lead.HTTPTransport{Client: opt.Client, Timeout: cfg.Lead.Timeout}
	reporter := s.leadReporter()
	if cfg.Lead.Endpoint != "" {
		s.beacon = lead.NewBeacon(cfg.Lead.QueueSize, transport, reporter)
	}
	s.sender = lead.NewSender(lead.SenderOptions{
		Endpoint: cfg.Lead.Endpoint,
		Beacon:   s.beacon,
		HTTP:     transport,
		Reporter: reporter,
	})
	return s, nil
}

// Config returns a copy of the effective configuration
func (s *Service) Config() Config { return s.cfg.Clone() }

// Classifier exposes the referrer classifier
func (s *Service) Classifier() *referrer.Classifier { return s.classifier }

// EnsureSchema creates the collector tables when postgres is wired
func (s *Service) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return repokit.MustBind(s.binder, s.db).EnsureSchema(ctx)
}

// Close drains the lead queue and waits for fallback deliveries
func (s *Service) Close(ctx context.Context) error {
	var err error
	if s.beacon != nil {
		err = s.beacon.Close(ctx)
	}
	s.sender.Wait()
	return err
}

// Intake stores a lead posted to the first-party endpoint; a replayed event id
// is acknowledged without a second row
func (s *Service) Intake(ctx context.Context, p *lead.Payload) (domain.LeadAck, error) {
	if s.db == nil {
		s.metrics.Intake(false)
		return domain.LeadAck{}, perr.Unavailablef("collector: lead intake needs postgres")
	}
	body, err := json.Marshal(p)
	if err != nil {
		s.metrics.Intake(false)
		return domain.LeadAck{}, perr.Wrap(err, perr.ErrorCodeJSON, "collector: encode lead")
	}
	row := repo.RowLead{
		EventID:     p.EventID,
		Event:       p.Event,
		AnonymousID: p.AnonymousID,
		PageURL:     p.PageURL,
		OccurredAt:  time.Unix(p.Timestamp, 0).UTC(),
		Payload:     body,
	}

	var stored bool
	err = repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		var err error
		stored, err = repokit.MustBind(s.binder, q).InsertLead(ctx, row)
		return err
	})
	s.metrics.Intake(err == nil)
	if err != nil {
		return domain.LeadAck{}, err
	}
	if !stored {
		logger.C(ctx).Debug().Str("event_id", p.EventID).Msg("duplicate lead ignored")
	}
	return domain.LeadAck{EventID: p.EventID}, nil
}

func (s *Service) leadReporter() lead.Reporter {
	logged := lead.LogReporter()
	return lead.ReporterFunc(func(ctx context.Context, err error, p *lead.Payload) {
		s.metrics.Lead(lead.TransportOf(err), false)
		logged.Report(ctx, err, p)
	})
}
