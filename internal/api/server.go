// Package api exposes the bridge over HTTP: the scan event stream, print
// job submission, the product catalog, and the static browser UI.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tillworks/pos-bridge/internal/broadcast"
	"github.com/tillworks/pos-bridge/internal/catalog"
	"github.com/tillworks/pos-bridge/internal/config"
	"github.com/tillworks/pos-bridge/internal/printer"
	"github.com/tillworks/pos-bridge/internal/scanner"
)

// Server is the HTTP front end.
type Server struct {
	router   *gin.Engine
	cfg      config.Config
	bus      *broadcast.Broadcaster
	queue    *printer.Queue
	store    *catalog.Store
	static   http.Handler
	upgrader websocket.Upgrader
}

// NewServer creates the API server wired to the broadcaster, the print
// queue and the catalog store.
func NewServer(cfg config.Config, bus *broadcast.Broadcaster, queue *printer.Queue, store *catalog.Store) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(noStoreMiddleware())

	server := &Server{
		router: router,
		cfg:    cfg,
		bus:    bus,
		queue:  queue,
		store:  store,
		static: http.FileServer(http.Dir(cfg.Server.StaticDir)),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Till clients connect from any origin
			},
		},
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	// Scan event stream
	s.router.GET("/events", s.handleEvents)
	s.router.GET("/ws", s.handleWebSocket)
	s.router.POST("/scan", s.handleScan)

	// Printing
	s.router.POST("/print", s.handlePrint)
	s.router.GET("/jobs", s.handleGetJobs)
	s.router.GET("/jobs/:id", s.handleGetJob)

	// Product catalog
	s.router.GET("/products", s.handleGetProducts)
	s.router.POST("/products", s.handleSetProducts)

	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true, "time": time.Now().Unix()})
	})

	// Everything else is the browser UI
	s.router.NoRoute(s.handleStatic)
}

// handlePrint accepts a print job and enqueues it. The response means
// "accepted", not "printed": delivery happens later on the worker and a
// failure there is only logged.
func (s *Server) handlePrint(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, gin.H{"ok": false, "error": "invalid json body"})
		return
	}

	text := strings.TrimSpace(coerceString(body["text"]))

	if text == "" && !s.cfg.Printer.AllowEmpty {
		c.JSON(400, gin.H{"ok": false, "error": "empty text"})
		return
	}

	jobID := s.queue.Enqueue(text)

	c.JSON(200, gin.H{"ok": true, "job_id": jobID})
}

// handleScan injects a scan event, so the UI can be driven without a
// physical scanner attached.
func (s *Server) handleScan(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, gin.H{"ok": false, "error": "invalid json body"})
		return
	}

	code := scanner.Digits(coerceString(body["code"]))
	if code == "" {
		c.JSON(400, gin.H{"ok": false, "error": "code must contain digits"})
		return
	}

	s.bus.Publish(code)

	c.JSON(200, gin.H{"ok": true, "code": code})
}

// handleGetJobs returns the recent print job history
func (s *Server) handleGetJobs(c *gin.Context) {
	jobs := s.queue.GetAllJobs()

	jobsData := make([]gin.H, len(jobs))
	for i, job := range jobs {
		jobsData[i] = jobJSON(job)
	}

	c.JSON(200, gin.H{"jobs": jobsData})
}

// handleGetJob returns a specific print job
func (s *Server) handleGetJob(c *gin.Context) {
	job := s.queue.GetJob(c.Param("id"))
	if job == nil {
		c.JSON(404, gin.H{"ok": false, "error": "job not found"})
		return
	}

	c.JSON(200, jobJSON(job))
}

func jobJSON(job *printer.Job) gin.H {
	data := gin.H{
		"id":         job.ID,
		"status":     job.Status,
		"created_at": job.CreatedAt,
	}
	if job.Error != nil {
		data["error"] = job.Error.Error()
	}
	return data
}

// handleGetProducts returns the persisted catalog.
func (s *Server) handleGetProducts(c *gin.Context) {
	products, err := s.store.Load()
	if err != nil {
		c.JSON(500, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(200, products)
}

// handleSetProducts overwrites the persisted catalog.
func (s *Server) handleSetProducts(c *gin.Context) {
	var products map[string]json.RawMessage
	if err := c.ShouldBindJSON(&products); err != nil {
		c.JSON(400, gin.H{"ok": false, "error": "invalid json body"})
		return
	}

	if err := s.store.Save(products); err != nil {
		c.JSON(500, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(200, gin.H{"ok": true})
}

// handleStatic serves the browser UI from the working directory.
func (s *Server) handleStatic(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.JSON(404, gin.H{"ok": false, "error": "not found"})
		return
	}

	s.static.ServeHTTP(c.Writer, c.Request)
}

// coerceString renders any JSON value as receipt-friendly text. Clients are
// sloppy about types; a numeric text field is printed, not rejected.
func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		// JSON numbers decode as float64; print integers without the
		// trailing .0
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprint(val)
	}
}

// Run starts the API server.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// noStoreMiddleware keeps the kiosk browser from caching the UI or the
// catalog between events.
func noStoreMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Cache-Control", "no-store")
		c.Next()
	}
}
