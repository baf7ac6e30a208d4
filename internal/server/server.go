package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Brownie44l1/aidetect-api/internal/config"
	"github.com/Brownie44l1/aidetect-api/internal/handlers"
)

type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewRouter registers the routes behind request ids, logging, recovery and CORS.
func NewRouter(cfg *config.Config, h *handlers.Handler, log *zap.Logger) (*gin.Engine, error) {
	corsCfg := cors.Config{
		AllowOrigins:  cfg.Server.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", handlers.RequestIDHeader},
		ExposeHeaders: []string{handlers.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if err := corsCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid CORS origins %v: %w", cfg.Server.CORSOrigins, err)
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.App.MaxUploadSize
	router.Use(
		handlers.RequestID(),
		handlers.RequestLogger(log),
		gin.Recovery(),
		cors.New(corsCfg),
	)

	router.GET("/", h.Hello)
	router.GET("/health", h.Health)
	router.POST("/predict", h.Predict)

	return router, nil
}

func New(cfg *config.Config, h *handlers.Handler, log *zap.Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	router, err := NewRouter(cfg, h, log)
	if err != nil {
		return nil, err
	}

	return &Server{
		httpServer: &http.Server{
			Addr:           cfg.Server.Addr(),
			Handler:        router,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		log: log,
	}, nil
}

// Run blocks until the listener fails or Shutdown is called; the latter
// returns nil.
func (s *Server) Run() error {
	s.log.Info("Server is running", zap.String("address", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}
