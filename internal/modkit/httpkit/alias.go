// Package httpkit re-exports the platform http helpers modules use
// modules import this instead of internal/platform/net/http
package httpkit

import (
	"net/http"

	phttp "campaigncollector/internal/platform/net/http"
)

type (
	// Envelope is the JSON response envelope
	Envelope = phttp.Envelope

	// Response is a handler result
	Response = phttp.Response

	// Handler is the platform handler type
	Handler = phttp.Handler

	// Router is the platform router seam
	Router = phttp.Router
)

// OK returns a 200 response
func OK(data any) Response { return phttp.OK(data) }

// Accepted returns a 202 response
func Accepted(data any) Response { return phttp.Accepted(data) }

// NoContent returns a 204 response
func NoContent() Response { return phttp.NoContent() }

// Error maps err to its status and envelope
func Error(err error) Response { return phttp.Error(err) }

// Raw writes body unenveloped with contentType
func Raw(status int, contentType string, body []byte) Response {
	return phttp.Raw(status, contentType, body)
}

// JSON binds and validates a T body
func JSON[T any](fn func(*http.Request, T) (any, error)) Handler { return phttp.JSONHandler(fn) }

// Call adapts a handler that reads no JSON body
func Call(fn func(*http.Request) (any, error)) Handler { return phttp.NoBodyHandler(fn) }

// Handle adapts a Response-returning function
func Handle(fn func(*http.Request) Response) Handler { return phttp.Handle(fn) }
