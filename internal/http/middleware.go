package http

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// RequestIDHeader echoes the request id assigned by chi's RequestID
// middleware back to the client. Mount it after middleware.RequestID.
func RequestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set("X-Request-ID", id)
		}
		next.ServeHTTP(w, r)
	})
}
