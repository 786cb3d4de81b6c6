package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"lod-engine/src/engine"
	"lod-engine/src/logger"
	"lod-engine/src/metrics"
	"lod-engine/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// APIServer
// -----------------------------------------------------------------------------

type APIServer struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	Engine  *engine.Engine
	Metrics *metrics.Metrics
	router  *gin.Engine
	http    *http.Server

	// WebSocket clients
	clients    map[*Client]struct{}
	clientsMu  sync.RWMutex
	broadcast  chan interface{} // Buffered queue of frames and diagnostics
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	startedAt  time.Time
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(cfg *models.MConfig, eng *engine.Engine, m *metrics.Metrics, log *logger.Logger) *APIServer {
	// Set Gin mode
	if strings.ToUpper(cfg.LogLevel) != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.NewLogger(cfg, "APIServer")
	}

	s := &APIServer{
		Config:     cfg,
		Logger:     log,
		Engine:     eng,
		Metrics:    m,
		router:     gin.New(),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan interface{}, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		startedAt:  time.Now(),
	}
	s.router.Use(gin.Recovery())

	// CORS for local dashboards
	s.router.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	s.router.GET("/api/health", s.getHealth)
	s.router.GET("/api/stats", s.getStats)
	s.router.GET("/api/config", s.getConfig)
	s.router.GET("/metrics", gin.WrapH(s.Metrics.Handler()))

	s.router.GET("/api/series", s.listSeries)
	s.router.DELETE("/api/series/:id", s.removeSeries)
	s.router.GET("/api/series/:id/render", s.renderSeries)
	s.router.GET("/api/series/:id/nearest", s.nearestPoint)

	s.router.GET("/api/panes/:id", s.getPane)
	s.router.POST("/api/panes/:id/visible", s.setVisible)
	s.router.POST("/api/replay", s.setReplay)

	// WebSocket endpoint
	s.router.GET("/ws", s.handleWebSocket)
}

// Handler exposes the router (tests, embedding)
func (s *APIServer) Handler() http.Handler {
	return s.router
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start runs the hub and blocks serving HTTP until Stop.
func (s *APIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	go s.handleWebsockets()

	s.http = &http.Server{Addr: addr, Handler: s.router}
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *APIServer) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		if s.http != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = s.http.Shutdown(ctx)
		}
		s.Logger.Info("Server stopped")
	})
	return err
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *APIServer) getHealth(c *gin.Context) {
	s.clientsMu.RLock()
	connections := len(s.clients)
	s.clientsMu.RUnlock()

	c.JSON(200, gin.H{
		"status":         "ok",
		"connections":    connections,
		"series":         len(s.Engine.SeriesIDs()),
		"panes":          len(s.Engine.PaneIDs()),
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getStats(c *gin.Context) {
	c.JSON(200, s.Engine.Stats())
}

// -----------------------------------------------------------------------------

func (s *APIServer) getConfig(c *gin.Context) {
	c.JSON(200, gin.H{
		"name":   s.Config.Name,
		"engine": s.Config.Engine,
		"series": s.Config.Series,
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) listSeries(c *gin.Context) {
	c.JSON(200, gin.H{"series": s.Engine.SeriesIDs()})
}

// -----------------------------------------------------------------------------

func (s *APIServer) removeSeries(c *gin.Context) {
	id := c.Param("id")
	panes := s.Engine.PanesShowing(id)
	if !s.Engine.RemoveSeries(id) {
		c.JSON(404, gin.H{"error": fmt.Sprintf("unknown series %s", id)})
		return
	}
	for _, p := range panes {
		s.pushPane(p)
	}
	c.JSON(200, gin.H{"removed": id, "panes": panes})
}

// -----------------------------------------------------------------------------

func (s *APIServer) renderSeries(c *gin.Context) {
	id := c.Param("id")
	pane := c.DefaultQuery("pane", defaultPane)

	out, ok := s.Engine.GetOrBuildRenderSeries(id, pane)
	if !ok {
		c.JSON(404, gin.H{"error": fmt.Sprintf("no data for series %s in pane %s", id, pane)})
		return
	}
	c.JSON(200, out)
}

// -----------------------------------------------------------------------------

func (s *APIServer) nearestPoint(c *gin.Context) {
	t, err := queryInt64(c, "t")
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	bar, ok := s.Engine.NearestPoint(c.Param("id"), t)
	if !ok {
		c.JSON(404, gin.H{"error": "no point"})
		return
	}
	c.JSON(200, bar)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getPane(c *gin.Context) {
	st, ok := s.Engine.PaneState(c.Param("id"))
	if !ok {
		c.JSON(404, gin.H{"error": "unknown pane"})
		return
	}
	c.JSON(200, st)
}

// -----------------------------------------------------------------------------

func (s *APIServer) setVisible(c *gin.Context) {
	var body visibleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	r, err := body.timeRange()
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	paneID := c.Param("id")
	if body.WidthPx > 0 {
		s.Engine.SetPaneWidth(paneID, body.WidthPx)
	}
	moved := s.Engine.SetVisibleRange(paneID, r)
	s.pushPane(paneID)

	st, _ := s.Engine.PaneState(paneID)
	c.JSON(200, gin.H{"render_window_moved": moved, "pane": st})
}

// -----------------------------------------------------------------------------

func (s *APIServer) setReplay(c *gin.Context) {
	var body replayRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	s.Engine.SetReplayCutoff(body.Cutoff)
	for _, p := range s.Engine.PaneIDs() {
		s.pushPane(p)
	}
	c.JSON(200, gin.H{"cutoff": s.Engine.ReplayCutoff()})
}

// -----------------------------------------------------------------------------

// pushPane renders a pane and queues the frame for its subscribers
func (s *APIServer) pushPane(paneID string) {
	s.Broadcast(models.MRenderFrame{
		Type:      frameType,
		PaneID:    paneID,
		Series:    s.Engine.RenderPane(paneID),
		Timestamp: time.Now().UnixMilli(),
	})
}
