// Package api exposes the vendor operations over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/vietddude/toolgate/internal/infra/storage"
	"github.com/vietddude/toolgate/internal/infra/vendor"
)

// Config holds the HTTP API settings.
type Config struct {
	Port         int           `yaml:"port"`
	EnableCORS   bool          `yaml:"enable_cors"`
	AllowOrigins []string      `yaml:"allow_origins"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Debug        bool          `yaml:"-"`
}

// ToolProvider is the vendor surface the routes call.
type ToolProvider interface {
	ListApps(ctx context.Context) ([]vendor.App, error)
	ListTools(ctx context.Context, app string) ([]vendor.Tool, error)
	ExecuteTool(ctx context.Context, tool string, req vendor.ExecuteRequest) (*vendor.ExecuteResult, error)
	GetConnection(ctx context.Context, id string) (*vendor.Connection, error)
	ValidateKey(ctx context.Context, apiKey string) (*vendor.KeyInfo, error)
}

// Server serves the API routes.
type Server struct {
	provider    ToolProvider
	failures    storage.FailureLogRepository
	deadLetters storage.DeadLetterRepository
	engine      *gin.Engine
	httpServer  *http.Server
	log         *slog.Logger
}

// NewServer builds the gin engine and registers routes.
func NewServer(cfg Config, provider ToolProvider, failures storage.FailureLogRepository, deadLetters storage.DeadLetterRepository) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(RequestID())
	engine.Use(RequestLogger())
	engine.Use(Recovery())

	if cfg.EnableCORS {
		corsConfig := cors.DefaultConfig()
		if len(cfg.AllowOrigins) > 0 {
			corsConfig.AllowOrigins = cfg.AllowOrigins
		} else {
			corsConfig.AllowAllOrigins = true
		}
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", RequestIDHeader}
		corsConfig.ExposeHeaders = []string{RequestIDHeader}
		engine.Use(cors.New(corsConfig))
	}

	s := &Server{
		provider:    provider,
		failures:    failures,
		deadLetters: deadLetters,
		engine:      engine,
		log:         slog.Default().With("component", "api"),
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	// Tool runs may spend the whole retry budget before answering.
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 2 * time.Minute
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      engine,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")

	api.GET("/apps", s.handleListApps)
	api.GET("/tools", s.handleListTools)
	api.POST("/tools/:tool/execute", s.handleExecuteTool)
	api.GET("/connections/:id", s.handleGetConnection)
	api.POST("/keys/validate", s.handleValidateKey)

	api.GET("/failures", s.handleRecentFailures)
	api.GET("/dead-letters", s.handleListDeadLetters)
}

// Handler returns the underlying HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
