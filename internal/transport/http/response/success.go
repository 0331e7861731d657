package response

import (
	"encoding/json"
	"net/http"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

type Envelope struct {
	Data any `json:"data"`
}

// WriteJSON writes v as JSON with the given status code.
// It sets Content-Type to application/json; charset=utf-8 if not already set.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a 200 response with {"data": ...}.
func OK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Envelope{Data: data})
}

// NoContent writes a 204 response with no body.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// AddHeaders appends rememberer headers. Set-Cookie may repeat.
func AddHeaders(w http.ResponseWriter, headers []domain.Header) {
	for _, h := range headers {
		w.Header().Add(h.Name, h.Value)
	}
}

// Redirect emits a bodiless 302 after appending headers.
func Redirect(w http.ResponseWriter, location string, headers []domain.Header) {
	AddHeaders(w, headers)
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusFound)
}
