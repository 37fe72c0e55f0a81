package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/AnnixInvestments/annix-sub017/config"
	"github.com/AnnixInvestments/annix-sub017/internal/api/handlers"
	"github.com/AnnixInvestments/annix-sub017/internal/metrics"
	"github.com/AnnixInvestments/annix-sub017/internal/tracing"
)

const shutdownTimeout = 5 * time.Second

// Service is everything the HTTP surface needs from the distribution service
type Service interface {
	handlers.BoqService
	handlers.SupplierPortalService
	handlers.AccessRecomputer
}

// Server represents the HTTP server
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
	service    Service
	metrics    *metrics.Metrics
	tracer     tracing.Tracer
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, service Service, m *metrics.Metrics, tracer tracing.Tracer) *Server {
	if tracer == nil {
		tracer = &tracing.NewRelicTracer{}
	}

	server := &Server{
		config:  cfg,
		service: service,
		metrics: m,
		tracer:  tracer,
	}

	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	return server
}

// Router exposes the configured engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	if s.config.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(MetricsMiddleware(s.metrics))
	if app := s.tracer.Application(); app != nil {
		router.Use(NewRelicMiddleware(app))
	}
	if s.config.Server.CorsEnabled {
		router.Use(CORS(s.config.Server.CorsOrigins))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	handlers.NewMetricsHandler(s.metrics, s.tracer).RegisterRoutes(router)

	v1 := router.Group("/api/v1")
	handlers.NewBoqHandler(s.service, s.tracer).RegisterRoutes(v1)
	handlers.NewSupplierHandler(s.service, s.tracer).RegisterRoutes(v1)
	handlers.NewAccessHandler(s.service, s.tracer).RegisterRoutes(v1)

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Server.Address).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
