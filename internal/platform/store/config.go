package store

import "time"

// Config aggregates per backend configuration
type Config struct {
	AppName string
	PG      PGConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	ConnectRetries int           // ping attempts at boot, default 20
	PingTimeout    time.Duration // per attempt, default 3s
}

func (c PGConfig) withDefaults() PGConfig {
	if c.ConnectRetries <= 0 {
		c.ConnectRetries = 20
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 3 * time.Second
	}
	return c
}
