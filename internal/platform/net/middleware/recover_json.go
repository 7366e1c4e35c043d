package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	perr "campaigncollector/internal/platform/errors"
	"campaigncollector/internal/platform/logger"
	pnet "campaigncollector/internal/platform/net"
)

type panicBody struct {
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	Code       perr.ErrorCode `json:"code"`
	Error      string         `json:"error"`
	RequestID  string         `json:"request_id,omitempty"`
}

// RecoverJSON turns a panic into a JSON 500 and logs the stack
// http.ErrAbortHandler is re-panicked so net/http can drop the connection
func RecoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			reqID := pnet.RequestID(r.Context())
			logger.C(r.Context()).Error().
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			err := perr.PanicErrf("internal error")
			status := perr.HTTPStatus(err)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(panicBody{
				StatusCode: status,
				Status:     http.StatusText(status),
				Code:       perr.CodeOf(err),
				Error:      err.Error(),
				RequestID:  reqID,
			})
		}()
		next.ServeHTTP(w, r)
	})
}
