package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/agentick/dashboard/internal/httpapi/handlers"
	"github.com/agentick/dashboard/internal/httpapi/middleware"
	"github.com/agentick/dashboard/pkg/config"
)

type APIServer struct {
	config   *config.AppConfig
	router   *gin.Engine
	handlers *handlers.Handlers
	server   *http.Server
}

func NewAPIServer(cfg *config.AppConfig, h *handlers.Handlers) *APIServer {
	if cfg.App.Environment == "local" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(&cfg.APIServer))

	s := &APIServer{
		config:   cfg,
		router:   router,
		handlers: h,
	}

	s.setupRoutes()
	return s
}

func (s *APIServer) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.APIKeyAuth(s.config))

	v1.GET("/status", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service": s.config.App.Name,
			"status":  "running",
		})
	})

	clients := v1.Group("/clients")
	{
		clients.GET("", s.handlers.ListClients)
		clients.POST("", s.handlers.AddClient)
		clients.POST("/refresh", s.handlers.RefreshClients)
		clients.POST("/batch", s.handlers.BatchUpdateClients)
		clients.GET("/:id", s.handlers.GetClient)
		clients.DELETE("/:id", s.handlers.RemoveClient)
		clients.PUT("/:id/preferences", s.handlers.UpdateClientPreferences)
		clients.PUT("/:id/metrics", s.handlers.UpdateClientMetrics)
		clients.POST("/:id/select", s.handlers.SelectClient)
	}

	prefs := v1.Group("/preferences")
	{
		prefs.GET("", s.handlers.GetPreferences)
		prefs.PUT("", s.handlers.UpdatePreferences)
		prefs.GET("/theme", s.handlers.GetTheme)
		prefs.POST("/editmode", s.handlers.ToggleEditMode)
	}

	v1.POST("/errors/clear", s.handlers.ClearError)
}

// Router exposes the configured engine, mainly for tests.
func (s *APIServer) Router() http.Handler {
	return s.router
}

// Start serves until the context is canceled, then shuts down gracefully.
func (s *APIServer) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.config.APIServer.Host, s.config.APIServer.Port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("address", s.server.Addr).Info("starting http API server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("failed to start http API server : %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logrus.Info("turning down http API server")
		if err := s.server.Shutdown(context.Background()); err != nil {
			logrus.WithError(err).Error("Error during HTTP API server shutdown")
			return err
		}
		logrus.Info("http API server stopped")
		return nil
	}
}
