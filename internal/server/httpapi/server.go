// Package httpapi exposes the check-in sync protocol over HTTP/JSON.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/gatherhall/doorsync/internal/common"
	"github.com/gatherhall/doorsync/internal/logging"
	"github.com/gatherhall/doorsync/internal/server/reconcile"
	"github.com/gatherhall/doorsync/internal/server/roster"
	"github.com/gatherhall/doorsync/internal/server/storage"
)

type Server struct {
	httpServer *http.Server
	engine     *reconcile.Engine
	roster     *roster.Service
	store      storage.Store
	logger     logging.Logger
	secretKey  []byte
}

type Options struct {
	Addr           string
	SecretKey      []byte
	AllowedOrigins []string
}

func NewServer(opts Options, engine *reconcile.Engine, rosterSvc *roster.Service, store storage.Store, logger logging.Logger) *Server {
	s := &Server{
		engine:    engine,
		roster:    rosterSvc,
		store:     store,
		logger:    logger.With("module", "httpapi"),
		secretKey: opts.SecretKey,
	}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router(opts.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) router(allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		corsConfig.AllowOrigins = allowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", common.StaffTokenHeaderName}
	router.Use(cors.New(corsConfig))

	api := router.Group("/api/v1")
	{
		api.GET("/ping", s.handlePing)

		authed := api.Group("", s.authRequired())
		{
			authed.POST("/events/:id/sync", s.requireRole(common.RoleCheckIn), s.handleSync)
			authed.GET("/events/:id/attendees", s.handleAttendees)
			authed.GET("/events/:id/capacity", s.handleCapacity)
			authed.GET("/events/:id/dashboard", s.handleDashboard)
			authed.POST("/devices/heartbeat", s.handleHeartbeat)
			authed.GET("/devices/pending-count", s.handlePendingCount)
		}
	}

	return router
}

// Handler exposes the routing table for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info(context.Background(), "http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
