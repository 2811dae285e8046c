package middleware

import "net/http"

// NewMaxBodySizeHandler limits request bodies to limit bytes. A request that
// announces a larger Content-Length is answered with 413 before the next
// handler runs; otherwise the body is wrapped in http.MaxBytesReader so a
// streaming read fails once the limit is passed.
func NewMaxBodySizeHandler(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				writeError(w, http.StatusRequestEntityTooLarge, "too_large", "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
