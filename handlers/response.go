package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"log"
	"net/http"

	"tour-server/middleware"
	"tour-server/utils/errors"
)

var errBodyTooLarge = errors.NewAPIError("BODY_TOO_LARGE", "Request body is too large", http.StatusRequestEntityTooLarge)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// sendData writes {"status": "success", "data": {key: value}}.
func sendData(w http.ResponseWriter, status int, key string, value any) {
	writeJSON(w, status, map[string]any{
		"status": "success",
		"data":   map[string]any{key: value},
	})
}

// sendList is sendData with a results count.
func sendList[T any](w http.ResponseWriter, key string, items []T) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"results": len(items),
		"data":    map[string]any{key: items},
	})
}

func sendNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// decodeJSON reads the request body into dst. Unknown fields are ignored.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return nil
	}
	var tooLarge *http.MaxBytesError
	switch {
	case stderrors.As(err, &tooLarge):
		return errBodyTooLarge
	case stderrors.Is(err, io.EOF):
		return errors.BadRequest("Request body is empty")
	}
	return errors.ErrInvalidInput.WithDetails(err.Error())
}

// fail is a shorthand used by every handler.
func fail(w http.ResponseWriter, err error) {
	middleware.WriteError(w, err)
}
