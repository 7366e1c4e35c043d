package touchpoint

import (
	"context"
	"errors"
	"time"

	"campaigncollector/internal/core/kv"
	"campaigncollector/internal/core/params"
	perr "campaigncollector/internal/platform/errors"
	"campaigncollector/internal/platform/logger"
)

// DefaultKeyPrefix yields the keys _lvl_first and _lvl_last
const DefaultKeyPrefix = "_lvl"

// Config configures a Store
type Config struct {
	KeyPrefix string
	Namespace string
	Base64    bool
	FirstTTL  Duration
	LastTTL   Duration
	Now       func() time.Time
	Log       *logger.Logger
}

func (c Config) withDefaults() Config {
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	if c.Namespace == "" {
		c.Namespace = params.DefaultNamespace
	}
	if c.FirstTTL.IsZero() {
		c.FirstTTL = DefaultFirstTTL
	}
	if c.LastTTL.IsZero() {
		c.LastTTL = DefaultLastTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Log == nil {
		c.Log = logger.Named("touchpoint")
	}
	return c
}

// Store reads and writes the two slots through a kv.Store
// one Store serves one page evaluation and is not safe for concurrent use
type Store struct {
	kv    kv.Store
	cfg   Config
	codec Codec
	cache map[Name]*Record
}

// NewStore binds cfg to a storage adapter
func NewStore(s kv.Store, cfg Config) *Store {
	cfg = cfg.withDefaults()
	return &Store{
		kv:    s,
		cfg:   cfg,
		codec: Codec{Namespace: cfg.Namespace, Base64: cfg.Base64},
		cache: map[Name]*Record{},
	}
}

// Key returns the storage key for a slot
func (s *Store) Key(n Name) string { return s.cfg.KeyPrefix + "_" + string(n) }

// TTL returns the slot's configured lifetime
func (s *Store) TTL(n Name) Duration {
	if n == First {
		return s.cfg.FirstTTL
	}
	return s.cfg.LastTTL
}

// Namespace returns the custom bucket key
func (s *Store) Namespace() string { return s.cfg.Namespace }

// Now returns the store clock in epoch seconds
func (s *Store) Now() int64 { return s.cfg.Now().Unix() }

// Get returns the stored record as written, references unresolved
// a malformed value is logged and reads as absent
func (s *Store) Get(ctx context.Context, n Name) *Record {
	if r, ok := s.cache[n]; ok {
		return r.Clone()
	}
	raw, ok := s.kv.Get(ctx, s.Key(n))
	if !ok {
		return nil
	}
	r, err := s.codec.Decode(raw)
	if err != nil {
		if !errors.Is(err, errEmpty) {
			s.cfg.Log.Warn().Str("key", s.Key(n)).Err(err).Msg("malformed touchpoint record, treating as absent")
		}
		return nil
	}
	if r != nil {
		s.cache[n] = r
	}
	return r.Clone()
}

// Set persists r under n: CreatedAt is stamped when zero and ExpiresAt is always
// recomputed from the slot TTL; the stored copy is returned
func (s *Store) Set(ctx context.Context, n Name, r *Record) (*Record, error) {
	if _, err := ParseName(string(n)); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, perr.InvalidArgf("touchpoint: nil record for %s", n)
	}
	rec := r.Clone()
	now := s.Now()
	if rec.CreatedAt == 0 {
		rec.CreatedAt = now
	}
	ttl := s.TTL(n)
	rec.ExpiresAt = now + ttl.Seconds()
	if rec.Namespace == "" {
		rec.Namespace = s.cfg.Namespace
	}

	val, err := s.codec.Encode(rec)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "touchpoint: encode %s", n)
	}
	if err := s.kv.Set(ctx, s.Key(n), val, ttl.Std()); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "touchpoint: write %s", n)
	}
	s.cache[n] = rec
	return rec.Clone(), nil
}

// End deletes the slot and drops the cached copy
func (s *Store) End(ctx context.Context, n Name) error {
	delete(s.cache, n)
	if err := s.kv.Delete(ctx, s.Key(n)); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "touchpoint: delete %s", n)
	}
	return nil
}

// Detach returns a Store over a private in-memory adapter seeded with the current
// slots; writes to it never reach the original storage
func (s *Store) Detach(ctx context.Context) *Store {
	d := NewStore(kv.NewMemory(), s.cfg)
	for _, n := range []Name{First, Last} {
		if r := s.Get(ctx, n); r != nil {
			d.cache[n] = r
		}
	}
	return d
}

// Resolve follows a single reference hop to first and merges: the payload comes
// from first, timestamps from r. Only first may be referenced, and a first that
// is itself a reference or expired resolves to nil.
func (s *Store) Resolve(ctx context.Context, r *Record) *Record {
	if r == nil || !r.IsReference() {
		return r.Clone()
	}
	if r.Ref != First {
		return nil
	}
	target := s.Get(ctx, First)
	if target == nil || target.IsReference() || target.Expired(s.Now()) {
		return nil
	}
	out := target.Clone()
	out.CreatedAt = r.CreatedAt
	out.ExpiresAt = r.ExpiresAt
	return out
}
