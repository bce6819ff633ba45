// Package rest serves the diagnostics API of the device.
package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/KevinKickass/OpenProfinetDevice/internal/api/websocket"
	"github.com/KevinKickass/OpenProfinetDevice/internal/auth"
	"github.com/KevinKickass/OpenProfinetDevice/internal/interfaces"
	"github.com/KevinKickass/OpenProfinetDevice/internal/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router      *gin.Engine
	lm          interfaces.LifecycleManager
	logger      logging.Logger
	server      *http.Server
	wsHub       *websocket.Hub
	authService *auth.AuthService
}

func NewServer(lm interfaces.LifecycleManager, logger logging.Logger, wsHub *websocket.Hub, authService *auth.AuthService) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:      gin.New(),
		lm:          lm,
		logger:      logger,
		wsHub:       wsHub,
		authService: authService,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", lm.Config().Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	// Public routes (no auth required)
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/auth/token", s.issueToken)

		device := v1.Group("/device")
		device.Use(s.authService.AuthMiddleware())
		{
			device.GET("/status", auth.RequirePermission(auth.PermReadStatus), s.getDeviceStatus)
			device.GET("/slots", auth.RequirePermission(auth.PermReadStatus), s.getSlots)
			device.GET("/image", auth.RequirePermission(auth.PermReadImage), s.getProcessImage)
			device.GET("/journal", auth.RequirePermission(auth.PermReadStatus), s.getJournal)
		}

		system := v1.Group("/system")
		system.Use(s.authService.AuthMiddleware())
		{
			system.GET("/status", auth.RequirePermission(auth.PermReadStatus), s.getSystemStatus)
			system.POST("/shutdown", auth.RequirePermission(auth.PermControl), s.shutdown)
		}

		// Auth via first message
		ws := v1.Group("/ws")
		{
			ws.GET("/live", s.wsLiveConnection)
			ws.GET("/status", s.authService.AuthMiddleware(), auth.RequirePermission(auth.PermReadStatus), s.wsStatus)
		}
	}
}

func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	snap := s.lm.Device().Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"device_state": snap.State,
		"timestamp":    time.Now().Unix(),
	})
}
