package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"
	"sync/atomic"

	"tour-server/utils/errors"
)

var showDetails atomic.Bool

// ShowErrorDetails controls whether responses carry internal error details.
// It is switched on in development.
func ShowErrorDetails(on bool) {
	showDetails.Store(on)
}

// ErrorMiddleware turns a panic in a handler into a 500 response.
func ErrorMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Printf("Panic recovered on %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
					WriteError(w, errors.ErrInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type errorBody struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// WriteError writes err as a JSON response. Client errors have status
// "fail", server errors "error". Server errors keep their generic message
// and only carry details when ShowErrorDetails is on.
func WriteError(w http.ResponseWriter, err error) {
	apiErr := errors.Translate(err)

	body := errorBody{Status: "fail", Code: apiErr.Code, Message: apiErr.Message}
	if !apiErr.Operational() {
		body.Status = "error"
		log.Printf("Server error %s (Details: %s)", apiErr.Error(), apiErr.Details)
		if !showDetails.Load() {
			body.Message = errors.ErrInternal.Message
		}
	}
	if showDetails.Load() {
		body.Details = apiErr.Details
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to write error response: %v", err)
	}
}
