package api

import (
	"net/http"
	"strconv"

	"futures-trader/internal/risk"
	"futures-trader/internal/trader"

	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

// respondResult maps an engine result onto HTTP. Policy rejections are
// not transport errors: they come back 200 with success=false.
func respondResult(c *gin.Context, res trader.Result) {
	c.JSON(http.StatusOK, res)
}

// getStatus returns the daily risk snapshot.
func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.Status(c.Request.Context()))
}

// placeTrade submits a trade through the risk gate.
func (s *Server) placeTrade(c *gin.Context) {
	var req trader.TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	if req.Symbol == "" || req.Side == "" {
		respondError(c, http.StatusBadRequest, "MISSING_FIELDS", "symbol and side are required")
		return
	}
	if req.Amount <= 0 {
		respondError(c, http.StatusBadRequest, "INVALID_AMOUNT", "amount must be > 0")
		return
	}

	res := s.Engine.PlaceTrade(c.Request.Context(), req)
	if res.Success && s.Metrics != nil {
		s.Metrics.IncrementOrders()
	}
	respondResult(c, res)
}

// closePosition closes an open position at market.
func (s *Server) closePosition(c *gin.Context) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Symbol == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "symbol is required")
		return
	}

	res := s.Engine.ClosePosition(c.Request.Context(), req.Symbol)
	if res.Success && s.Metrics != nil {
		s.Metrics.IncrementPositionsClosed()
	}
	respondResult(c, res)
}

// updatePnL records realized profit or loss against the daily limit.
func (s *Server) updatePnL(c *gin.Context) {
	var req struct {
		Amount *float64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount == nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "amount is required")
		return
	}
	respondResult(c, s.Engine.UpdatePnL(*req.Amount))
}

// getPositions returns open positions from the venue.
func (s *Server) getPositions(c *gin.Context) {
	positions, err := s.Engine.Positions(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusBadGateway, "VENUE_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions, "count": len(positions)})
}

// updateRisk applies a partial risk limits update.
func (s *Server) updateRisk(c *gin.Context) {
	var u risk.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	if u.MaxTradesPerDay == nil && u.CooldownMinutes == nil && u.MaxDailyLoss == nil && u.MaxPositionSize == nil {
		respondError(c, http.StatusBadRequest, "EMPTY_UPDATE", "no risk parameters provided")
		return
	}
	if (u.MaxTradesPerDay != nil && *u.MaxTradesPerDay <= 0) ||
		(u.CooldownMinutes != nil && *u.CooldownMinutes < 0) ||
		(u.MaxDailyLoss != nil && *u.MaxDailyLoss <= 0) ||
		(u.MaxPositionSize != nil && *u.MaxPositionSize <= 0) {
		respondError(c, http.StatusBadRequest, "INVALID_PARAMETERS", "risk parameters must be positive")
		return
	}

	limits := s.Engine.UpdateRiskLimits(u)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Risk parameters updated", "limits": limits})
}

// getHistory returns today's trade records.
func (s *Server) getHistory(c *gin.Context) {
	history := s.Engine.History()
	c.JSON(http.StatusOK, gin.H{"trades": history, "count": len(history)})
}

// getMarkets returns the venue contract list.
func (s *Server) getMarkets(c *gin.Context) {
	markets, err := s.Engine.Markets(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusBadGateway, "VENUE_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"markets": markets, "count": len(markets)})
}

// getTicker returns a price snapshot for one symbol.
func (s *Server) getTicker(c *gin.Context) {
	symbol := c.Param("symbol")
	ticker, err := s.Engine.Ticker(c.Request.Context(), symbol)
	if err != nil {
		respondError(c, http.StatusBadGateway, "VENUE_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, ticker)
}

// checkOrders reconciles pending limit orders against the venue.
func (s *Server) checkOrders(c *gin.Context) {
	var req struct {
		OrderID string `json:"order_id"`
	}
	// Empty body means check everything.
	_ = c.ShouldBindJSON(&req)

	updates, err := s.Engine.CheckOrders(c.Request.Context(), req.OrderID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updates": updates, "count": len(updates)})
}

// cancelOrder cancels a pending order.
func (s *Server) cancelOrder(c *gin.Context) {
	respondResult(c, s.Engine.CancelOrder(c.Request.Context(), c.Param("id")))
}

// getMonitor reports the position monitor state.
func (s *Server) getMonitor(c *gin.Context) {
	if s.Monitor == nil {
		respondError(c, http.StatusServiceUnavailable, "MONITOR_UNAVAILABLE", "monitor not available")
		return
	}
	c.JSON(http.StatusOK, s.Monitor.Status())
}

func (s *Server) startMonitor(c *gin.Context) {
	if s.Monitor == nil {
		respondError(c, http.StatusServiceUnavailable, "MONITOR_UNAVAILABLE", "monitor not available")
		return
	}
	s.Monitor.Start()
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Position monitoring started"})
}

func (s *Server) stopMonitor(c *gin.Context) {
	if s.Monitor == nil {
		respondError(c, http.StatusServiceUnavailable, "MONITOR_UNAVAILABLE", "monitor not available")
		return
	}
	s.Monitor.Stop()
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Position monitoring stopped"})
}

// getMetrics returns system performance metrics.
func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		respondError(c, http.StatusServiceUnavailable, "METRICS_UNAVAILABLE", "metrics not available")
		return
	}
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

// getJournal returns recent audit rows from the database.
func (s *Server) getJournal(c *gin.Context) {
	if s.DB == nil {
		respondError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "journal not available")
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	ctx := c.Request.Context()
	orders, err := s.DB.ListOrders(ctx, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	closes, err := s.DB.ListCloses(ctx, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "closes": closes})
}
