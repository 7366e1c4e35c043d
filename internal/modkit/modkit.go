package modkit

import (
	phttp "campaigncollector/internal/platform/net/http"
)

// Module is what the api mount needs from a service module
type Module interface {
	// MountRoutes mounts the module under its prefix on r
	MountRoutes(r phttp.Router)
	// Ports returns the module's port set for cross wiring, or nil
	Ports() any
	// Name is the registry key
	Name() string
}

// Builder constructs a Module from shared deps and options
type Builder func(Deps, ...Option) Module
