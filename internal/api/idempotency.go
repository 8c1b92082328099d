package api

import (
	"bytes"
	"net/http"
)

// RequestIDHeader is PayPal's idempotency header.
const RequestIDHeader = "PayPal-Request-Id"

// responseRecorder captures response status and body for idempotency caching.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// idempotency replays the first successful response to a POST carrying the
// same PayPal-Request-Id for the same path. Failed attempts are not cached,
// so a client may retry them.
func (s *Server) idempotency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if r.Method != http.MethodPost || id == "" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Method + " " + r.URL.Path + " " + id
		if status, body, ok := s.mw.Idempotent.Check(key); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(RequestIDHeader, id)
			w.WriteHeader(status)
			w.Write(body)
			return
		}
		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)
		if rec.statusCode >= 200 && rec.statusCode < 300 {
			s.mw.Idempotent.Store(key, rec.statusCode, rec.body.Bytes())
		}
	})
}
