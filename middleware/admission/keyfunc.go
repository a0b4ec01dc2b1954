package admission

import (
	"net"
	"net/http"
	"strings"
)

// ClientIDFunc extrai a identidade do cliente a partir da request.
type ClientIDFunc func(r *http.Request) string

// DefaultClientID resolve a identidade na ordem: primeiro valor do
// X-Forwarded-For (cliente original atrás do proxy), X-Real-IP, host do
// RemoteAddr e, por fim, a sentinela "unknown". O primeiro não-vazio vence.
func DefaultClientID(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}

	if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
		return v
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
