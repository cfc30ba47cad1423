// Package api exposes the catalog engine over HTTP.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/liliang-cn/gamedex"
	"github.com/liliang-cn/gamedex/internal/config"
)

// Server wires the engine's operations into an HTTP router. Ingestion
// endpoints are API-key guarded; everything shares one rate limiter.
type Server struct {
	engine  *gamedex.Engine
	cfg     *config.Config
	router  *gin.Engine
	limiter *rate.Limiter
}

// New builds a server over an open engine.
func New(engine *gamedex.Engine, cfg *config.Config) *Server {
	s := &Server{
		engine:  engine,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.rateLimit())

	r.GET("/ping", s.handlePing)
	r.GET("/query", s.handleQuery)
	r.GET("/records/:id", s.handleGetRecord)
	r.GET("/stats", s.handleStats)
	r.GET("/similar", s.handleSimilar)
	r.GET("/events", s.handleEvents)

	ingest := r.Group("/ingest", s.requireAPIKey())
	ingest.POST("/upload", s.handleUpload)
	ingest.POST("/url", s.handleIngestURL)

	s.router = r
	return s
}

// Handler returns the root HTTP handler, usable directly in tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the listener fails.
func (s *Server) Run() error {
	return s.router.Run(s.cfg.Addr)
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (s *Server) requireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.APIKey != "" && c.GetHeader("X-API-Key") != s.cfg.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": "invalid or missing API key"})
			return
		}
		c.Next()
	}
}

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
