package server

import (
	"net/http"
	"time"
)

// loggingMiddleware logs each request with its handling time.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debugw("request",
			"method", r.Method,
			"uri", r.RequestURI,
			"bytes", r.ContentLength,
			"took", time.Since(start),
		)
	})
}
