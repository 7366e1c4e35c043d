package httpkit

import (
	"net/http"

	pstrings "campaigncollector/internal/platform/strings"
)

// MountUnder mounts a subrouter at prefix with per-module middleware
// an empty or "/" prefix mounts in a group on r itself
func MountUnder(r Router, prefix string, mw []func(http.Handler) http.Handler, mount func(Router)) {
	attach := func(sub Router) {
		if len(mw) > 0 {
			sub.Use(mw...)
		}
		mount(sub)
	}
	if prefix == "" || prefix == "/" {
		r.Group(attach)
		return
	}
	r.Route(pstrings.MustPrefix(prefix), attach)
}
