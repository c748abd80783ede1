// Package api exposes the engine's management surface over HTTP.
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Aidin1998/trailex/internal/engine"
)

// Server is the HTTP front for the stop engine.
type Server struct {
	router *gin.Engine
	logger *zap.Logger
	engine *engine.Engine
}

// NewServer wires routes and middleware around the engine.
func NewServer(logger *zap.Logger, eng *engine.Engine) *Server {
	s := &Server{logger: logger, engine: eng}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Account-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", s.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		stops := v1.Group("/stops")
		{
			stops.POST("", s.createStop)
			stops.GET("/:id", s.getStop)
			stops.DELETE("/:id", s.cancelStop)
			stops.POST("/:id/claim", s.claimProceeds)
			stops.POST("/:id/execute", s.executeStop)
		}
		admin := v1.Group("/admin")
		{
			admin.PUT("/venues/:key/trust", s.setVenueTrust)
		}
	}

	s.router = router
	return s
}

// Start runs the server on addr, blocking until it exits.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting API server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router returns the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
