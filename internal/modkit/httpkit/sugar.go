package httpkit

import (
	"net/http"
)

// Get mounts a body-less GET
func Get(r Router, path string, h func(*http.Request) (any, error)) {
	r.Get(path, Call(h))
}

// Post mounts a POST that reads no JSON body
func Post(r Router, path string, h func(*http.Request) (any, error)) {
	r.Post(path, Call(h))
}

// PostJSON mounts a POST with a bound and validated T body
func PostJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Post(path, JSON(h))
}

// PostRaw mounts a POST whose handler owns the response shape
func PostRaw(r Router, path string, h func(*http.Request) Response) {
	r.Post(path, Handle(h))
}
