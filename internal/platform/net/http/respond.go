// Package http is the collector's JSON envelope, handler adapters and server
package http

import (
	"encoding/json"
	stdhttp "net/http"

	perr "campaigncollector/internal/platform/errors"
	pnet "campaigncollector/internal/platform/net"
)

// Envelope wraps every JSON response
type Envelope struct {
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	Code       perr.ErrorCode `json:"code,omitempty"`
	Error      string         `json:"error,omitempty"`
	Field      string         `json:"field,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Data       any            `json:"data,omitempty"`
}

// JSON writes v with status
func JSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func okEnvelope(r *stdhttp.Request, status int, data any) Envelope {
	return Envelope{
		StatusCode: status,
		Status:     stdhttp.StatusText(status),
		RequestID:  pnet.RequestID(r.Context()),
		Data:       data,
	}
}

func errEnvelope(r *stdhttp.Request, err error) (int, Envelope) {
	status, wr := perr.HTTP(err)
	return status, Envelope{
		StatusCode: status,
		Status:     stdhttp.StatusText(status),
		Code:       wr.Code,
		Error:      wr.Message,
		Field:      wr.Field,
		RequestID:  pnet.RequestID(r.Context()),
	}
}

// RespondOK writes a 200 envelope
func RespondOK(w stdhttp.ResponseWriter, r *stdhttp.Request, data any) {
	JSON(w, stdhttp.StatusOK, okEnvelope(r, stdhttp.StatusOK, data))
}

// RespondError maps err to its status and writes the error envelope
func RespondError(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	status, env := errEnvelope(r, err)
	JSON(w, status, env)
}

// Response is what return-style handlers produce
type Response struct {
	Status int
	Body   any
	Header stdhttp.Header

	// raw bodies skip the envelope, e.g. rewritten HTML
	raw         []byte
	contentType string
}

// Handle adapts a Response-returning function
func Handle(h func(r *stdhttp.Request) Response) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		h(r).write(w, r)
	}
}

func (resp Response) write(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	if err, ok := resp.Body.(error); ok && err != nil {
		RespondError(w, r, err)
		return
	}
	status := resp.Status
	if status == 0 {
		status = stdhttp.StatusOK
	}
	switch {
	case status == stdhttp.StatusNoContent:
		w.WriteHeader(status)
	case resp.contentType != "":
		w.Header().Set("Content-Type", resp.contentType)
		w.WriteHeader(status)
		_, _ = w.Write(resp.raw)
	default:
		JSON(w, status, okEnvelope(r, status, resp.Body))
	}
}

// OK is a 200 envelope
func OK(data any) Response { return Response{Status: stdhttp.StatusOK, Body: data} }

// Accepted is a 202 envelope
func Accepted(data any) Response { return Response{Status: stdhttp.StatusAccepted, Body: data} }

// NoContent is a bare 204
func NoContent() Response { return Response{Status: stdhttp.StatusNoContent} }

// Error maps err to status and envelope
func Error(err error) Response { return Response{Body: err} }

// Raw writes body as is with the given content type
func Raw(status int, contentType string, body []byte) Response {
	return Response{Status: status, raw: body, contentType: contentType}
}
