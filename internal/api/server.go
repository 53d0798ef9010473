package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"ultra-signal-engine/config"
	"ultra-signal-engine/internal/database"
	"ultra-signal-engine/internal/events"
	"ultra-signal-engine/internal/ingest"
	"ultra-signal-engine/internal/intel"
	"ultra-signal-engine/internal/lifecycle"
	"ultra-signal-engine/internal/logging"
	"ultra-signal-engine/internal/pipeline"
)

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        config.ServerConfig

	pipe   *pipeline.Pipeline
	book   *ingest.Book
	buffer *lifecycle.Buffer
	repo   *database.Repository
	intel  *intel.Provider
	bus    *events.Bus
	hub    *WSHub

	webhookEnabled bool
	log            *logging.Logger
}

// Deps are the collaborators the API exposes. Repo and Intel may be nil
// when their subsystems are disabled.
type Deps struct {
	Pipeline *pipeline.Pipeline
	Book     *ingest.Book
	Buffer   *lifecycle.Buffer
	Repo     *database.Repository
	Intel    *intel.Provider
	Bus      *events.Bus
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, webhookEnabled bool, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "" || cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:         router,
		cfg:            cfg,
		pipe:           deps.Pipeline,
		book:           deps.Book,
		buffer:         deps.Buffer,
		repo:           deps.Repo,
		intel:          deps.Intel,
		bus:            deps.Bus,
		hub:            NewWSHub(deps.Bus),
		webhookEnabled: webhookEnabled,
		log:            logging.WithComponent("api"),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	api := s.router.Group("/api/v1")
	{
		api.POST("/signals/webhook", s.handleIngestWebhook)
		api.POST("/signals/manual", s.handleIngestManual)
		api.POST("/analyze", s.handleAnalyze)

		api.GET("/signals", s.handleListSignals)
		api.GET("/signals/stats", s.handleBufferStats)
		api.GET("/signals/:id", s.handleGetSignal)
		api.DELETE("/signals/:id", s.handleRemoveSignal)

		api.GET("/history", s.handleListHistory)
		api.GET("/history/stats", s.handleHistoryStats)

		api.PUT("/intel/social/:symbol", s.handleSetSocialScore)
		api.PUT("/intel/risk/:symbol", s.handleSetRiskProfile)
	}
}

// Start starts the HTTP server. Blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("Starting HTTP server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Router exposes the gin engine for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{
		"status":       "healthy",
		"live_signals": s.buffer.Len(),
		"ws_clients":   s.hub.ClientCount(),
	}

	if s.repo != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.repo.HealthCheck(ctx); err != nil {
			health["status"] = "degraded"
			health["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, health)
			return
		}
		health["database"] = "healthy"
	}

	c.JSON(http.StatusOK, health)
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
