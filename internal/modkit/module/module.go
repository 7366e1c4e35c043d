// Package module is the Module contract plus the port registry used at boot
package module

import (
	phttp "campaigncollector/internal/platform/net/http"
)

// Module mirrors modkit.Module; it lives here so a module's ports package can import it without a cycle
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
