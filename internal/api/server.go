package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/paketku/paketku/internal/catalog"
	"github.com/paketku/paketku/internal/config"
	"github.com/paketku/paketku/internal/logging"
	"github.com/paketku/paketku/internal/metrics"
)

// Server is the operational HTTP endpoint of the bot process: health,
// Prometheus metrics, and a read-only view of the curated catalogs. It is
// not user-facing; the bot itself speaks only through the chat transport.
type Server struct {
	router     *gin.Engine
	config     config.ServerConfig
	metrics    *metrics.Metrics
	logger     *logging.Logger
	hot        *catalog.Catalog
	hot2       *catalog.Catalog
	httpServer *http.Server
	startedAt  time.Time
	version    string
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer creates the admin HTTP server.
func NewServer(cfg config.ServerConfig, m *metrics.Metrics, logger *logging.Logger, hot, hot2 *catalog.Catalog, version string) *Server {
	gin.SetMode(gin.ReleaseMode)

	if m == nil {
		m = metrics.NewMetrics("paketku")
	}
	if logger == nil {
		logger = logging.NewLogger()
	}

	server := &Server{
		router:    gin.New(),
		config:    cfg,
		metrics:   m,
		logger:    logger,
		hot:       hot,
		hot2:      hot2,
		startedAt: time.Now(),
		version:   version,
	}
	server.router.HandleMethodNotAllowed = true
	server.router.Use(gin.Recovery())
	server.router.Use(loggingMiddleware(logger))

	server.setupRoutes()
	return server
}

// loggingMiddleware provides structured logging for all requests
func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = logging.GenerateCorrelationID()
		}
		ctx := logging.WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		logger.InfoWithContext(ctx, "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", time.Since(start).Seconds(),
		)
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/catalogs", s.handleCatalogs)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleCatalogs(c *gin.Context) {
	resp := gin.H{}
	if s.hot != nil {
		resp["hot"] = s.hot.Offers()
	}
	if s.hot2 != nil {
		resp["hot2"] = s.hot2.Offers()
	}
	c.JSON(http.StatusOK, resp)
}

// Addr returns the listen address derived from configuration.
func (s *Server) Addr() string {
	host := s.config.Host
	if host == "" {
		host = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d", host, s.config.HTTPPort)
}
