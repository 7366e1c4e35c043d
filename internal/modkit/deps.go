// Package modkit wires service modules onto the api router
package modkit

import (
	"campaigncollector/internal/modkit/repokit"
	"campaigncollector/internal/platform/config"
	"campaigncollector/internal/platform/logger"
	"campaigncollector/internal/platform/metrics"
)

// Deps are the process-wide dependencies handed to every module
// PG and Metrics may be nil; modules fall back to in-memory storage and no-op counters
type Deps struct {
	Log     *logger.Logger
	Cfg     config.Conf
	PG      repokit.TxRunner
	Metrics *metrics.Metrics
}

// Logger returns Log or the root logger
func (d Deps) Logger() *logger.Logger {
	if d.Log != nil {
		return d.Log
	}
	return logger.Get()
}

// HasPG reports whether a postgres seam was wired
func (d Deps) HasPG() bool { return d.PG != nil }
