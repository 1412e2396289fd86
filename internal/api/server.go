package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/atominnolab/opensift/internal/adapter"
	"github.com/atominnolab/opensift/internal/engine"
	"github.com/atominnolab/opensift/internal/model"
)

// Server wires the engine and adapter registry into the HTTP surface.
type Server struct {
	Engine   *engine.Engine
	Registry *adapter.Registry

	Version        string
	DefaultAdapter string
	CORSOrigins    []string
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), s.cors())

	v1 := r.Group("/v1")
	v1.POST("/plan", s.handlePlan)
	v1.POST("/search", s.handleSearch)
	v1.POST("/search/batch", s.handleBatchSearch)
	v1.GET("/health", s.handleHealth)
	v1.GET("/health/adapters", s.handleAdapterHealth)
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("request")
	}
}

func (s *Server) cors() gin.HandlerFunc {
	allowed := map[string]bool{}
	for _, o := range s.CORSOrigins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowed["*"] || allowed[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) handlePlan(c *gin.Context) {
	req, ok := bindSearchRequest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Engine.Plan(c.Request.Context(), req))
}

func (s *Server) handleSearch(c *gin.Context) {
	req, ok := bindSearchRequest(c)
	if !ok {
		return
	}
	if req.Opts().Stream {
		s.streamSearch(c, req)
		return
	}
	resp, err := s.Engine.Search(c.Request.Context(), req)
	if err != nil {
		log.Error().Str("query", req.Query).Err(err).Msg("search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// streamSearch renders the engine's event channel as Server-Sent Events.
// Each event is one JSON line; the connection closes after the terminal
// done or error event.
func (s *Server) streamSearch(c *gin.Context, req model.SearchRequest) {
	w := c.Writer
	flusher, ok := w.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "streaming unsupported"})
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range s.Engine.SearchStream(c.Request.Context(), req) {
		payload, err := json.Marshal(ev.Data)
		if err != nil {
			log.Error().Str("event", ev.Event).Err(err).Msg("event marshal failed")
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event, payload)
		flusher.Flush()
	}
}

func (s *Server) handleBatchSearch(c *gin.Context) {
	var req model.BatchSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid request body: " + err.Error()})
		return
	}
	for _, q := range req.Queries {
		if strings.TrimSpace(q) == "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "queries must be non-empty"})
			return
		}
	}
	resp, err := s.Engine.BatchSearch(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"service":         "opensift",
		"version":         s.Version,
		"default_adapter": s.DefaultAdapter,
		"active_adapters": s.Registry.Active(),
	})
}

func (s *Server) handleAdapterHealth(c *gin.Context) {
	checks := s.Registry.HealthCheckAll(c.Request.Context())
	status := adapter.StatusHealthy
	for _, h := range checks {
		if h.Status == adapter.StatusUnhealthy {
			status = adapter.StatusUnhealthy
			break
		}
		if h.Status == adapter.StatusDegraded {
			status = adapter.StatusDegraded
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "adapters": checks})
}

// bindSearchRequest parses and validates the shared search/plan body. A
// missing or blank query is a validation error, not a server error.
func bindSearchRequest(c *gin.Context) (model.SearchRequest, bool) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid request body: " + err.Error()})
		return req, false
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "query must be non-empty"})
		return req, false
	}
	return req, true
}
