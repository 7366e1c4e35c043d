package service

import (
	"net"
	"net/http"
	"strings"

	"campaigncollector/internal/core/accessor"
)

// RequestGlobals resolves global paths against the request:
//
//	header.<Name>   request header
//	query.<key>     raw query value
//	request.host, request.path, request.method, request.ip, request.user_agent
func RequestGlobals(r *http.Request) accessor.GlobalResolver {
	return func(path string) (any, bool) {
		scope, key, ok := strings.Cut(path, ".")
		if !ok || key == "" {
			return nil, false
		}
		var v string
		switch scope {
		case "header":
			v = r.Header.Get(key)
		case "query":
			v = r.URL.Query().Get(key)
		case "request":
			v = requestField(r, key)
		default:
			return nil, false
		}
		return v, v != ""
	}
}

func requestField(r *http.Request, key string) string {
	switch key {
	case "host":
		return r.Host
	case "path":
		return r.URL.Path
	case "method":
		return r.Method
	case "user_agent":
		return r.UserAgent()
	case "ip":
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return ""
}
