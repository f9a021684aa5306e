// Package server composes the service handlers into one HTTP handler with request IDs,
// request logging and token authentication.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"littlelemon/internal/access"
	"littlelemon/internal/logger"
	"littlelemon/internal/web"
)

const requestIDHeader = "X-Request-ID"

// Routes is implemented by every service handler.
type Routes interface {
	Register(mux *http.ServeMux)
}

// Authenticator resolves the Authorization header of a request.
type Authenticator interface {
	Resolve(ctx context.Context, header string) (access.Actor, error)
}

// Pinger reports database reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	mux    *http.ServeMux
	auth   Authenticator
	db     Pinger
	logger *logger.Logger
}

func New(log *logger.Logger, auth Authenticator, db Pinger, routes ...Routes) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		auth:   auth,
		db:     db,
		logger: log,
	}
	s.mux.HandleFunc("GET /health", s.HealthCheck)
	for _, r := range routes {
		r.Register(s.mux)
	}
	return s
}

// Handler returns the mux wrapped in the request ID, logging and auth middleware.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.withLogging(s.withAuth(s.mux)))
}

// HealthCheck handles GET /health requests
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "littlelemon",
	}
	status := http.StatusOK
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health_check_failed", "Database ping failed", logger.RequestIDFromContext(ctx), err, nil)
		response["status"] = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	if err := web.WriteJSON(w, status, response); err != nil {
		s.logger.Error("response_encoding_failed", "Failed to encode response", logger.RequestIDFromContext(ctx), err, nil)
	}
}

// withRequestID reuses an inbound X-Request-ID or generates one, and echoes it back.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = logger.GenerateRequestID()
		}
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), requestID)))
	})
}

// withLogging adds request logging middleware
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := logger.RequestIDFromContext(r.Context())

		s.logger.Debug("request_started",
			fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
				"user_agent":  r.Header.Get("User-Agent"),
			})

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		s.logger.Info("request_completed",
			fmt.Sprintf("%s %s - %d", r.Method, r.URL.Path, rw.statusCode),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": rw.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
			})
	})
}

// withAuth attaches the resolved actor to the request context. Requests without an
// Authorization header continue as anonymous; a bad token is rejected with 401.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := s.auth.Resolve(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			web.WriteError(w, r, s.logger, "authentication_failed", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(access.WithActor(r.Context(), actor)))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
