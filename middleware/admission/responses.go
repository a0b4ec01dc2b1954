package admission

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"codalyzer-backend/middleware/admission/domain"
)

// rejectionBody é o corpo JSON das respostas de rejeição do middleware.
type rejectionBody struct {
	Success      bool   `json:"success"`
	Error        string `json:"error"`
	Message      string `json:"message"`
	ResetAt      string `json:"reset_at,omitempty"`
	RequestsMade int64  `json:"requests_made,omitempty"`
	Limit        int64  `json:"limit,omitempty"`
}

func writeRejected(w http.ResponseWriter, dec domain.Decision) {
	reset := dec.ResetAt.UTC().Format(time.RFC3339)
	retryAfter := formatInt(retryAfterSeconds(dec.ResetAt))

	h := w.Header()
	h.Set("Retry-After", retryAfter)
	h.Set("X-RateLimit-Reset", reset)

	if dec.Scope == domain.ScopeGlobal {
		h.Set("X-RateLimit-Global-Limit", formatInt64(dec.GlobalLimit))
		h.Set("X-RateLimit-Global-Remaining", "0")
		writeJSON(w, http.StatusTooManyRequests, rejectionBody{
			Error:   "global_limit_exceeded",
			Message: fmt.Sprintf("Global rate limit of %d requests per day exceeded", dec.GlobalLimit),
			ResetAt: reset,
		})
		return
	}

	h.Set("X-RateLimit-Limit", formatInt64(dec.ClientLimit))
	h.Set("X-RateLimit-Remaining", "0")
	writeJSON(w, http.StatusTooManyRequests, rejectionBody{
		Error:        "rate_limit_exceeded",
		Message:      fmt.Sprintf("Rate limit of %d requests per day exceeded", dec.ClientLimit),
		ResetAt:      reset,
		RequestsMade: dec.ClientCount,
		Limit:        dec.ClientLimit,
	})
}

func writeDegraded(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, rejectionBody{
		Error:   "service_unavailable",
		Message: "Rate limiting service temporarily unavailable",
	})
}

func writeJSON(w http.ResponseWriter, status int, body rejectionBody) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
