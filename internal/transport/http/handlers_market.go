package tradehttp

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/tidwall/gjson"

	"kabutrade/internal/logger"
)

func (r *Router) handleAccount(c *gin.Context) {
	ctx := c.Request.Context()
	symbol := r.runner.GetState().Symbol
	resp := gin.H{}

	if body, err := r.broker.WalletCash(ctx); err == nil {
		resp["wallet_cash"] = json.RawMessage(body)
	} else {
		logger.Warnf("[api] account cash fetch failed: %v", err)
	}
	if body, err := r.broker.WalletMargin(ctx); err == nil {
		resp["wallet_margin"] = json.RawMessage(body)
	} else {
		logger.Warnf("[api] account margin fetch failed: %v", err)
	}
	if positions, err := r.broker.Positions(ctx, symbol); err == nil {
		resp["positions"] = positions
		plTotal := 0.0
		for _, p := range positions {
			if p.ProfitLoss != nil {
				plTotal += *p.ProfitLoss
			}
		}
		resp["positions_pl_total"] = plTotal
	} else {
		logger.Warnf("[api] account positions fetch failed: %v", err)
	}
	if orders, err := r.broker.Orders(ctx, symbol); err == nil {
		resp["orders"] = orders
	} else {
		logger.Warnf("[api] account orders fetch failed: %v", err)
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleBoard(c *gin.Context) {
	code := c.Param("code")
	exchange := r.exchange
	if v, err := strconv.Atoi(c.Query("exchange")); err == nil && v > 0 {
		exchange = v
	}
	body, err := r.broker.Board(c.Request.Context(), code, exchange)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, boardView(gjson.ParseBytes(body)))
}

func (r *Router) handleSymbolInfo(c *gin.Context) {
	body, err := r.broker.SymbolInfo(c.Request.Context(), c.Param("code"), r.exchange)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
		return
	}
	parsed := gjson.ParseBytes(body)
	c.JSON(http.StatusOK, gin.H{
		"symbol":       parsed.Get("Symbol").Value(),
		"symbol_name":  parsed.Get("SymbolName").Value(),
		"display_name": parsed.Get("DisplayName").Value(),
		"exchange":     parsed.Get("ExchangeName").Value(),
	})
}

// index boards: Nikkei 225 and TOPIX, plus the dollar-yen rate
var indexCodes = []struct{ code, name string }{
	{"101", "Nikkei 225"},
	{"151", "TOPIX"},
}

func (r *Router) handleIndices(c *gin.Context) {
	ctx := c.Request.Context()
	out := make([]gin.H, 0, len(indexCodes)+1)
	for _, idx := range indexCodes {
		row := gin.H{"code": idx.code, "name": idx.name, "price": nil, "change": nil, "change_pct": nil}
		if body, err := r.broker.Board(ctx, idx.code, r.exchange); err == nil {
			parsed := gjson.ParseBytes(body)
			row["price"] = parsed.Get("CurrentPrice").Value()
			row["change"] = parsed.Get("ChangePreviousClose").Value()
			row["change_pct"] = parsed.Get("ChangePreviousClosePer").Value()
		}
		out = append(out, row)
	}
	fx := gin.H{"code": "FX", "name": "USD/JPY", "price": nil, "change": nil, "change_pct": nil}
	if body, err := r.broker.ExchangeRate(ctx, "usdjpy"); err == nil {
		parsed := gjson.ParseBytes(body)
		fx["price"] = parsed.Get("BidPrice").Value()
		fx["change"] = parsed.Get("Change").Value()
	}
	out = append(out, fx)
	c.JSON(http.StatusOK, out)
}

func (r *Router) handleWatchlist(c *gin.Context) {
	ctx := c.Request.Context()
	out := make([]gin.H, 0, len(r.watchlist))
	for _, code := range r.watchlist {
		row := gin.H{"code": code}
		if body, err := r.broker.Board(ctx, code, r.exchange); err == nil {
			parsed := gjson.ParseBytes(body)
			row["name"] = parsed.Get("SymbolName").Value()
			for k, v := range boardView(parsed) {
				row[k] = v
			}
		}
		out = append(out, row)
	}
	c.JSON(http.StatusOK, out)
}

func boardView(parsed gjson.Result) gin.H {
	return gin.H{
		"current_price":      parsed.Get("CurrentPrice").Value(),
		"current_price_time": parsed.Get("CurrentPriceTime").Value(),
		"previous_close":     parsed.Get("PreviousClose").Value(),
		"change":             parsed.Get("ChangePreviousClose").Value(),
		"change_pct":         parsed.Get("ChangePreviousClosePer").Value(),
		"opening_price":      parsed.Get("OpeningPrice").Value(),
		"high_price":         parsed.Get("HighPrice").Value(),
		"low_price":          parsed.Get("LowPrice").Value(),
		"trading_volume":     parsed.Get("TradingVolume").Value(),
		"vwap":               parsed.Get("VWAP").Value(),
		"bid_price":          parsed.Get("BidPrice").Value(),
		"bid_qty":            parsed.Get("BidQty").Value(),
		"ask_price":          parsed.Get("AskPrice").Value(),
		"ask_qty":            parsed.Get("AskQty").Value(),
	}
}

// handleSecrets replaces broker credentials at runtime and optionally
// persists them to the .env file so they survive a restart.
func (r *Router) handleSecrets(c *gin.Context) {
	var req struct {
		APIPassword   *string `json:"api_password"`
		OrderPassword *string `json:"order_password"`
		Save          bool    `json:"save"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	r.broker.SetCredentials(req.APIPassword, req.OrderPassword)

	saved := false
	if req.Save && r.envPath != "" {
		env, err := godotenv.Read(r.envPath)
		if err != nil {
			env = map[string]string{}
		}
		if req.APIPassword != nil {
			env["TS_API_PASSWORD"] = *req.APIPassword
		}
		if req.OrderPassword != nil {
			env["TS_ORDER_PASSWORD"] = *req.OrderPassword
		}
		if err := godotenv.Write(env, r.envPath); err != nil {
			logger.Errorf("[api] saving secrets to %s failed: %v", r.envPath, err)
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
			return
		}
		saved = true
	}
	logger.Infof("[api] secrets updated ip=%s saved=%v", c.ClientIP(), saved)
	c.JSON(http.StatusOK, gin.H{"ok": true, "configured": r.broker.Configured(), "saved": saved})
}
