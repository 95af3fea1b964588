package tradehttp

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kabutrade/internal/gateway/kabus"
	"kabutrade/internal/logger"
	"kabutrade/internal/pkg/jst"
)

func (r *Router) handleTrades(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	rows, err := r.store.Trades(limit, c.Query("symbol"))
	if err != nil {
		logger.Errorf("[api] trades query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": rows})
}

func (r *Router) handleOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	rows, err := r.store.Orders(limit, c.Query("symbol"))
	if err != nil {
		logger.Errorf("[api] orders query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": rows})
}

func (r *Router) handleDailyPL(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	rows, err := r.store.DailyPL(days)
	if err != nil {
		logger.Errorf("[api] daily_pl query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"daily_pl": rows})
}

func (r *Router) handlePLTimeline(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = jst.Date(jst.Now())
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "500"))
	rows, err := r.store.PLTimeline(date, limit)
	if err != nil {
		logger.Errorf("[api] pl_timeline query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "timeline": rows})
}

func (r *Router) handleTradeSummary(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	summary, err := r.store.TradeSummary(days)
	if err != nil {
		logger.Errorf("[api] trade_summary query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (r *Router) handleMarginDaily(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	rows, err := r.store.MarginDaily(days)
	if err != nil {
		logger.Errorf("[api] margin_daily query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"margin_daily": rows})
}

// handleImportTrades pulls the broker's order history and reconciles it into
// the trades table. Safe to call repeatedly; already-imported orders write
// nothing.
func (r *Router) handleImportTrades(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		symbol = r.runner.GetState().Symbol
	}
	orders, err := r.broker.Orders(c.Request.Context(), symbol)
	if err != nil {
		logger.Errorf("[api] import trades fetch failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
		return
	}
	imported, err := r.store.ImportTradesFromAPI(kabus.ToBrokerOrders(orders))
	if err != nil {
		logger.Errorf("[api] import trades failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error(), "imported": imported})
		return
	}
	logger.Infof("[api] import trades ip=%s symbol=%s fetched=%d imported=%d", c.ClientIP(), symbol, len(orders), imported)
	c.JSON(http.StatusOK, gin.H{"ok": true, "fetched": len(orders), "imported": imported})
}
