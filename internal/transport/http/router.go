package tradehttp

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kabutrade/internal/gateway/kabus"
	"kabutrade/internal/ledger"
	"kabutrade/internal/logger"
	"kabutrade/internal/runner"
)

// Router exposes the loop commands and ledger queries under /api.
type Router struct {
	runner    *runner.Runner
	store     *ledger.Store
	broker    *kabus.Client
	ring      *logger.Ring
	envPath   string
	watchlist []string
	exchange  int
}

func (r *Router) Register(group *gin.RouterGroup) {
	group.GET("/health", r.handleHealth)
	group.GET("/status", r.handleStatus)
	group.GET("/logs", r.handleLogs)

	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.POST("/force_close", r.handleForceClose)
	group.POST("/schedule", r.handleSchedule)
	group.DELETE("/schedule", r.handleCancelSchedule)
	group.POST("/config", r.handleConfig)
	group.POST("/secrets", r.handleSecrets)

	group.GET("/trades", r.handleTrades)
	group.GET("/orders", r.handleOrders)
	group.GET("/daily_pl", r.handleDailyPL)
	group.GET("/pl_timeline", r.handlePLTimeline)
	group.GET("/trade_summary", r.handleTradeSummary)
	group.GET("/margin_daily", r.handleMarginDaily)
	group.POST("/import_trades", r.handleImportTrades)

	group.GET("/account", r.handleAccount)
	group.GET("/board/:code", r.handleBoard)
	group.GET("/symbol/:code", r.handleSymbolInfo)
	group.GET("/indices", r.handleIndices)
	group.GET("/watchlist", r.handleWatchlist)
}

func (r *Router) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (r *Router) handleStatus(c *gin.Context) {
	state := r.runner.GetState()
	var positions []kabus.Position
	if pos, err := r.runner.Positions(c.Request.Context()); err == nil {
		positions = pos
	} else {
		logger.Debugf("[api] status positions fetch failed: %v", err)
	}
	target, armed := r.runner.Scheduled()
	resp := gin.H{
		"state":      state,
		"positions":  positions,
		"configured": r.broker.Configured(),
	}
	if armed {
		resp["scheduled_start"] = target
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleLogs(c *gin.Context) {
	if r.ring == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "log buffer not enabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	c.JSON(http.StatusOK, gin.H{"logs": r.ring.Tail(limit)})
}

func (r *Router) handleStart(c *gin.Context) {
	if err := r.runner.Start(); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, runner.ErrAlreadyRunning):
			status = http.StatusConflict
		case errors.Is(err, runner.ErrNotConfigured):
			status = http.StatusBadRequest
		}
		logger.Warnf("[api] start refused ip=%s err=%v", c.ClientIP(), err)
		c.JSON(status, gin.H{"ok": false, "error": err.Error()})
		return
	}
	logger.Infof("[api] start ip=%s", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (r *Router) handleStop(c *gin.Context) {
	r.runner.Stop()
	logger.Infof("[api] stop ip=%s", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (r *Router) handleForceClose(c *gin.Context) {
	closed, err := r.runner.ForceClose()
	if err != nil {
		logger.Errorf("[api] force close failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
		return
	}
	logger.Infof("[api] force close ip=%s closed=%d", c.ClientIP(), closed)
	c.JSON(http.StatusOK, gin.H{"ok": true, "closed": closed})
}

func (r *Router) handleSchedule(c *gin.Context) {
	var req struct {
		Time string `json:"time"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	delay, err := r.runner.ScheduleStart(req.Time)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	logger.Infof("[api] schedule ip=%s target=%s delay=%s", c.ClientIP(), req.Time, delay)
	c.JSON(http.StatusOK, gin.H{"ok": true, "target": req.Time, "delay_seconds": int(delay.Seconds())})
}

func (r *Router) handleCancelSchedule(c *gin.Context) {
	cancelled := r.runner.CancelSchedule()
	c.JSON(http.StatusOK, gin.H{"ok": true, "cancelled": cancelled})
}

func (r *Router) handleConfig(c *gin.Context) {
	var req struct {
		Symbol   *string `json:"symbol"`
		Quantity *int    `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	state := r.runner.UpdateConfig(req.Symbol, req.Quantity)
	logger.Infof("[api] config ip=%s symbol=%s qty=%d", c.ClientIP(), state.Symbol, state.Quantity)
	c.JSON(http.StatusOK, gin.H{"ok": true, "symbol": state.Symbol, "quantity": state.Quantity})
}
