// Package logger is the process-wide zerolog setup plus request-scoped children
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"campaigncollector/internal/platform/config/raw"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Options configures the root logger
type Options struct {
	Level        string
	Format       string // console or json
	Service      string
	Component    string
	Writer       io.Writer
	WithCaller   bool
	SampleEvery  int
	StaticFields map[string]string
}

// FromEnv reads LOG_* through the raw reader; config itself logs, so it cannot be used here
func FromEnv() Options { return fromRaw(raw.New()) }

func fromRaw(rc raw.Conf) Options {
	rc = rc.Prefix("LOG_")
	return Options{
		Level:       strings.ToLower(rc.Get("LEVEL", "info")),
		Format:      strings.ToLower(rc.Get("FORMAT", "console")),
		Service:     rc.Get("SERVICE", ""),
		Component:   rc.Get("COMPONENT", ""),
		WithCaller:  rc.GetBool("CALLER", false),
		SampleEvery: rc.GetInt("SAMPLE_EVERY", 0),
	}
}

// Logger is the project logging type
type Logger = zerolog.Logger

var (
	once   sync.Once
	root   atomic.Pointer[zerolog.Logger]
	inited atomic.Bool
)

// Get returns the root logger, initializing it from env on first use
func Get() *Logger {
	if !inited.Load() {
		Init(FromEnv())
	}
	return root.Load()
}

// Init builds the root logger; only the first call has any effect
func Init(opt Options) {
	once.Do(func() {
		l := build(opt)
		root.Store(&l)
		inited.Store(true)
	})
}

func build(opt Options) zerolog.Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var w io.Writer = os.Stdout
	if opt.Writer != nil {
		w = opt.Writer
	}
	if opt.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	zc := zerolog.New(w).Level(parseLevel(opt.Level)).With().Timestamp()
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		zc = zc.Str("go_version", bi.GoVersion)
	}
	if opt.Service != "" {
		zc = zc.Str("service", opt.Service)
	}
	if opt.Component != "" {
		zc = zc.Str("component", opt.Component)
	}
	for k, v := range opt.StaticFields {
		zc = zc.Str(k, v)
	}

	l := zc.Logger()
	if opt.WithCaller {
		l = l.With().Caller().Logger()
	}
	if opt.SampleEvery > 1 {
		l = l.Sample(&zerolog.BasicSampler{N: uint32(opt.SampleEvery)})
	}
	return l
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "off", "disabled":
		return zerolog.Disabled
	}
	return zerolog.InfoLevel
}

type ctxKey uint8

const (
	keyRequestID ctxKey = iota
	keyAnonID
)

// WithRequest tags ctx with the request id
func WithRequest(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		return ctx
	}
	return context.WithValue(ctx, keyRequestID, reqID)
}

// WithAnon tags ctx with the visitor's anonymous id
func WithAnon(ctx context.Context, anonID string) context.Context {
	if anonID == "" {
		return ctx
	}
	return context.WithValue(ctx, keyAnonID, anonID)
}

// C returns a child of the root logger carrying request_id and anon_id from ctx
func C(ctx context.Context) *Logger { return With(ctx, Get()) }

// With returns a child of l carrying request_id and anon_id from ctx
func With(ctx context.Context, l *Logger) *Logger {
	if l == nil {
		l = Get()
	}
	if ctx == nil {
		return l
	}
	reqID, _ := ctx.Value(keyRequestID).(string)
	anonID, _ := ctx.Value(keyAnonID).(string)
	if reqID == "" && anonID == "" {
		return l
	}
	b := l.With()
	if reqID != "" {
		b = b.Str("request_id", reqID)
	}
	if anonID != "" {
		b = b.Str("anon_id", anonID)
	}
	child := b.Logger()
	return &child
}

// Named returns a child logger with a component field
func Named(component string) *Logger {
	if component == "" {
		return Get()
	}
	child := Get().With().Str("component", component).Logger()
	return &child
}

// Nop returns a disabled logger for tests and optional wiring
func Nop() *Logger {
	l := zerolog.Nop()
	return &l
}
