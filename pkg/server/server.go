package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/soundprediction/harmony"
	"github.com/soundprediction/harmony/pkg/config"
	"github.com/soundprediction/harmony/pkg/metrics"
	"github.com/soundprediction/harmony/pkg/server/handlers"
	"github.com/soundprediction/harmony/pkg/types"
)

// maxBodyBytes bounds a request body; instruments are text only.
const maxBodyBytes = 32 << 20

// Server represents the HTTP server
type Server struct {
	config  *config.Config
	router  *gin.Engine
	client  *harmony.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
	server  *http.Server
}

// New creates a new server instance. A nil m disables the /metrics endpoint.
func New(cfg *config.Config, client *harmony.Client, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:  cfg,
		client:  client,
		metrics: m,
		logger:  logger,
	}
}

// Handler returns the router. Setup must have been called.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Setup sets up the server routes and middleware
func (s *Server) Setup() {
	if s.config.Server.Mode != "" {
		gin.SetMode(s.config.Server.Mode)
	}

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())
	s.router.Use(contextMiddleware())
	s.router.Use(loggingMiddleware(s.logger))
	s.router.Use(bodyLimitMiddleware(maxBodyBytes))
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware())
	}

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// setupRoutes sets up all the routes
func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.client)
	harmonyHandler := handlers.NewHarmonyHandler(s.client, s.metrics, s.logger)

	// Health endpoints
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/healthcheck", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)
	s.router.GET("/live", healthHandler.LivenessCheck)
	s.router.GET("/health/detailed", healthHandler.DetailedHealthCheck)

	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/match", harmonyHandler.Match)
		v1.POST("/cluster", harmonyHandler.Cluster)
		v1.POST("/crosswalk", harmonyHandler.Crosswalk)
		v1.POST("/align", harmonyHandler.Align)
		v1.POST("/harmonise", harmonyHandler.Harmonise)
	}
}

// Start starts the server
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping server")
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-Request-ID, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// contextMiddleware attaches a request id and the request source to the request context
func contextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		ctx = context.WithValue(ctx, types.ContextKeyRequestID, requestID)
		ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "server")

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// loggingMiddleware logs every request at info level, or warn for 4xx/5xx responses.
func loggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusBadRequest {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.Writer.Header().Get("X-Request-ID"))
	}
}

func bodyLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
