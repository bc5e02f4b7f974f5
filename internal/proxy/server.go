package proxy

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/zhengjr9/gemini-relay/internal/config"
	"github.com/zhengjr9/gemini-relay/internal/metrics"
)

// Server is the relay HTTP server.
type Server struct {
	httpServer *http.Server
}

// New constructs a Server from the given config. m may be nil, in which case
// /metrics is not served.
func New(cfg *config.Config, asker Asker, m *metrics.Manager) *Server {
	router := mux.NewRouter()

	router.Handle("/ask", &askHandler{asker: asker}).Methods(http.MethodPost)
	router.HandleFunc("/ask", preflight).Methods(http.MethodOptions)
	router.HandleFunc("/", liveness).Methods(http.MethodGet)
	if m != nil {
		router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
		router.Use(metricsMiddleware(m))
	}

	var handler http.Handler = router
	handler = loggingMiddleware(handler)
	handler = recoveryMiddleware(handler)
	handler = corsMiddleware(cfg.AllowedOrigins)(handler)

	var writeTimeout time.Duration
	if cfg.RequestTimeout > 0 {
		writeTimeout = cfg.RequestTimeout + 10*time.Second
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start begins listening and blocks until the server is stopped.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Handler returns the underlying http.Handler (for use in tests with httptest.NewServer).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
