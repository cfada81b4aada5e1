package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stegvault/stegvault/internal/metrics"
)

// LoggingMiddleware wraps handlers with access logging and HTTP metrics.
// Form fields are never logged: requests carry passphrases and secrets.
func LoggingMiddleware(logger *logrus.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start)

			fields := logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
				"status":      rw.statusCode,
				"duration_ms": duration.Milliseconds(),
				"bytes":       rw.bytesWritten,
			}
			if ua := r.UserAgent(); ua != "" {
				fields["user_agent"] = ua
			}
			logger.WithFields(fields).Info("HTTP request")

			if m != nil {
				m.RecordHTTPRequest(r.Method, r.URL.Path, http.StatusText(rw.statusCode), duration)
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code and size.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
