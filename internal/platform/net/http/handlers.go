package http

import (
	"net/http"

	"campaigncollector/internal/platform/net/http/bind"
)

// JSONHandler binds and validates a T body, then envelopes fn's result
// fn may return a Response to pick its own status
func JSONHandler[T any](fn func(*http.Request, T) (any, error)) Handler {
	return Handle(func(r *http.Request) Response {
		in, err := bind.ParseJSON[T](r)
		if err != nil {
			return Error(err)
		}
		return result(fn(r, in))
	})
}

// NoBodyHandler envelopes fn's result without reading a body
func NoBodyHandler(fn func(*http.Request) (any, error)) Handler {
	return Handle(func(r *http.Request) Response { return result(fn(r)) })
}

func result(out any, err error) Response {
	if err != nil {
		return Error(err)
	}
	if resp, ok := out.(Response); ok {
		return resp
	}
	return OK(out)
}

// GetJSON mounts a body-less GET
func GetJSON(r Router, path string, h func(*http.Request) (any, error)) {
	r.Get(path, NoBodyHandler(h))
}

// PostJSON mounts a POST with a bound T body
func PostJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Post(path, JSONHandler(h))
}

// PostNoBody mounts a POST that ignores its body
func PostNoBody(r Router, path string, h func(*http.Request) (any, error)) {
	r.Post(path, NoBodyHandler(h))
}
