// utilitário pequeno para formatação dos headers e corpos de resposta.

package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"

	"fixedwindow-gateway/middleware/ratelimit/domain"
)

const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"

	tooManyRequestsMessage = "Too many requests. Please try again later."
	unavailableMessage     = "rate limiter unavailable"
)

type deniedBody struct {
	Message           string `json:"message"`
	RetryAfterSeconds int64  `json:"retryAfterSeconds"`
}

type errorBody struct {
	Message string `json:"message"`
}

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }

func setRateLimitHeaders(h http.Header, dec domain.Decision) {
	h.Set(HeaderLimit, formatInt(dec.Limit))
	h.Set(HeaderRemaining, formatInt(dec.Remaining))
	h.Set(HeaderReset, formatInt(dec.ResetSeconds()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDenied(w http.ResponseWriter, status int, dec domain.Decision) {
	w.Header().Set("Retry-After", formatInt(dec.ResetSeconds()))
	writeJSON(w, status, deniedBody{Message: tooManyRequestsMessage, RetryAfterSeconds: dec.ResetSeconds()})
}

func writeUnavailable(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, errorBody{Message: unavailableMessage})
}
