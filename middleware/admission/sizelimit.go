package admission

import "net/http"

// SizeLimitMiddleware rejeita cedo (413) corpos acima de maxBytes, antes de
// qualquer cobrança de quota, e aplica http.MaxBytesReader como proteção
// contra Content-Length mentiroso.
func SizeLimitMiddleware(maxBytes int64) func(next http.Handler) http.Handler {
	if maxBytes <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
				if r.ContentLength > maxBytes {
					writeJSON(w, http.StatusRequestEntityTooLarge, rejectionBody{
						Error:   "request_too_large",
						Message: "Request body exceeds " + formatInt64(maxBytes) + " bytes",
					})
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
