package api

import (
	"net/http"
	"time"

	"futures-trader/internal/events"
	"futures-trader/internal/monitor"
	"futures-trader/internal/trader"
	"futures-trader/pkg/db"

	"github.com/gin-gonic/gin"
)

// Server wires HTTP endpoints around the trading engine.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	DB        *db.Database
	Engine    trader.Service
	Monitor   *monitor.Monitor
	Metrics   *monitor.SystemMetrics
	JWTSecret string
	Meta      SystemMeta
}

// SystemMeta describes runtime status exposed to clients.
type SystemMeta struct {
	Venue   string
	Version string
}

func NewServer(bus *events.Bus, database *db.Database, engine trader.Service, mon *monitor.Monitor, metrics *monitor.SystemMetrics, meta SystemMeta, jwtSecret string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())                      // Panic recovery (first)
	r.Use(RequestIDMiddleware())               // Request ID tracking
	r.Use(RequestLogger(metrics))              // Request logging (after ID is set)
	r.Use(RateLimitMiddleware())               // Rate limiting
	r.Use(TimeoutMiddleware(30 * time.Second)) // Request timeout (30s)
	r.Use(CORSMiddleware())                    // CORS (last before routes)

	s := &Server{
		Router:    r,
		Bus:       bus,
		DB:        database,
		Engine:    engine,
		Monitor:   mon,
		Metrics:   metrics,
		JWTSecret: jwtSecret,
		Meta:      meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		// Auth endpoints (no auth required)
		auth := api.Group("/auth")
		{
			auth.POST("/register", s.registerUser)
			auth.POST("/login", s.loginUser)
		}

		// Protected API
		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/status", s.getStatus)
			protected.POST("/trade", s.placeTrade)
			protected.POST("/close", s.closePosition)
			protected.POST("/pnl", s.updatePnL)
			protected.GET("/positions", s.getPositions)
			protected.PUT("/risk", s.updateRisk)
			protected.GET("/history", s.getHistory)
			protected.GET("/markets", s.getMarkets)
			protected.GET("/ticker/:symbol", s.getTicker)

			protected.POST("/orders/check", s.checkOrders)
			protected.POST("/orders/:id/cancel", s.cancelOrder)

			protected.GET("/monitor", s.getMonitor)
			protected.POST("/monitor/start", s.startMonitor)
			protected.POST("/monitor/stop", s.stopMonitor)

			protected.GET("/metrics", s.getMetrics)
			protected.GET("/journal", s.getJournal)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"venue":       s.Meta.Venue,
		"version":     s.Meta.Version,
		"server_time": time.Now().UTC(),
	})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
