package diag

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/picker-terminal/internal/logging"
	"github.com/wms-platform/picker-terminal/internal/metrics"
	"github.com/wms-platform/picker-terminal/internal/session"
)

// Server exposes local diagnostics over HTTP: liveness, the current session
// snapshot, and Prometheus metrics. It binds to the device only; nothing here
// is an operator surface for the warehouse network.
type Server struct {
	http   *http.Server
	logger *logging.Logger
}

// New creates a diagnostics server
func New(addr, version string, store *session.Store, m *metrics.Metrics, logger *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": version,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, store.Snapshot())
	})

	router.GET("/metrics", gin.WrapH(m.Handler()))

	return &Server{
		http: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger.WithComponent("diag"),
	}
}

// Handler returns the HTTP handler, for tests
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until the listener fails or Shutdown is called
func (s *Server) Run() {
	s.logger.Info("Diagnostics server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.WithError(err).Error("Diagnostics server failed")
	}
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
