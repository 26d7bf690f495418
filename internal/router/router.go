package router

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/zestlabs/admin-sentinel/internal/analytics"
	"github.com/zestlabs/admin-sentinel/internal/auth"
	"github.com/zestlabs/admin-sentinel/internal/hardware"
	"github.com/zestlabs/admin-sentinel/internal/report"
	"github.com/zestlabs/admin-sentinel/internal/resolver"
	"github.com/zestlabs/admin-sentinel/pkg/utilities"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// RequestIDMiddleware tags every request with a KSUID for log correlation.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" {
				id = utilities.NewRequestID()
			}
			w.Header().Set("X-Request-Id", id)
			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs each request at debug level.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"request_id", lrw.Header().Get("X-Request-Id"),
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("Cache-Control", "no-store")
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Deps are the constructed handlers the router wires together.
type Deps struct {
	Gate      *hardware.Gate
	Devices   *hardware.Handler
	Auth      *auth.Handler
	Session   *auth.SessionIssuer
	Resolver  *resolver.Handler
	Analytics *analytics.Handler
	Webhook   *report.Handler
}

// RegisterRoutes mounts all handlers on a stdlib mux.
//
// The hardware gate fronts every operator-facing route. It deliberately
// does not cover: the health endpoint, the inbound chat webhook (guarded
// by its own shared secret, and never operated from an admin machine),
// and device self-registration (which must be reachable from a machine
// that is not yet authorized).
func RegisterRoutes(logger *zap.SugaredLogger, deps Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /zest-admin/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /zest-admin/telegram/webhook", deps.Webhook.Webhook)
	mux.HandleFunc("POST /zest-admin/auth/register-device", deps.Devices.RegisterDevice)

	gate := hardware.Middleware(deps.Gate)

	// Login sits behind the gate alone; a method mismatch still answers
	// 405 from its own mux.
	login := http.NewServeMux()
	login.HandleFunc("POST /zest-admin/auth/login", deps.Auth.Login)
	mux.Handle("/zest-admin/auth/login", gate(login))

	// Data and analytics views additionally require a session token.
	protected := http.NewServeMux()
	protected.HandleFunc("GET /zest-admin/projects/{project}/users", deps.Resolver.Users)
	protected.HandleFunc("GET /zest-admin/projects/{project}/collections", deps.Resolver.Collections)
	protected.HandleFunc("GET /zest-admin/projects/{project}/collections/{collection}/documents", deps.Resolver.Documents)
	protected.HandleFunc("GET /zest-admin/projects/{project}/collections/{collection}/documents/{doc}/comments", deps.Resolver.Comments)
	protected.HandleFunc("GET /zest-admin/analytics/common-users", deps.Analytics.CommonUsersView)
	protected.HandleFunc("GET /zest-admin/analytics/signups", deps.Analytics.SignupsView)
	sessioned := gate(auth.SessionMiddleware(deps.Session, logger)(protected))
	mux.Handle("/zest-admin/projects/", sessioned)
	mux.Handle("/zest-admin/analytics/", sessioned)

	handler := RequestIDMiddleware()(SecurityHeadersMiddleware()(mux))
	return LoggingMiddleware(logger)(handler)
}
