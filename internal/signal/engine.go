// Package signal turns a stream of polled prices into trading signals.
//
// The engine accumulates ticks into small OHLC bars, computes Bollinger,
// MACD and DMI series over the bars, and derives one Set per tick. It does
// no I/O and holds no locks; the trading loop owns it and calls Step once
// per iteration.
package signal

import (
	"errors"
	"math"

	talib "github.com/markcheno/go-talib"
)

// MinHistory is the number of ticks required before any signal is produced.
const MinHistory = 4

type Config struct {
	BBWindow    int
	BBStd       float64
	MACDFast    int
	MACDSlow    int
	MACDSignal  int
	DMIWindow   int
	StopLossPct float64
	BarTicks    int
}

func (c *Config) applyDefaults() {
	if c.BBWindow <= 0 {
		c.BBWindow = 20
	}
	if c.BBStd <= 0 {
		c.BBStd = 2
	}
	if c.MACDFast <= 0 {
		c.MACDFast = 12
	}
	if c.MACDSlow <= 0 {
		c.MACDSlow = 26
	}
	if c.MACDSignal <= 0 {
		c.MACDSignal = 9
	}
	if c.DMIWindow <= 0 {
		c.DMIWindow = 14
	}
	if c.BarTicks <= 0 {
		c.BarTicks = 4
	}
}

// Technicals is the latest indicator row backing a Set.
type Technicals struct {
	BandWidth float64 `json:"band_width"`
	Hist      float64 `json:"hist"`
	PrevHist  float64 `json:"prev_hist"`
	DIDiff    float64 `json:"di_difference"`
	ADXDiff   float64 `json:"adx_difference"`
}

type position struct {
	side  string // "buy" or "sell"
	price float64
}

// Engine derives signals from accumulated tick prices.
type Engine struct {
	cfg   Config
	ticks []float64

	highs  []float64
	lows   []float64
	closes []float64

	last Technicals
	held *position
}

var ErrNotEnoughHistory = errors.New("not enough price history")

func NewEngine(cfg Config) *Engine {
	cfg.applyDefaults()
	return &Engine{cfg: cfg}
}

// HistoryLen returns the number of accumulated ticks.
func (e *Engine) HistoryLen() int { return len(e.ticks) }

// Technicals returns the most recent indicator row.
func (e *Engine) Technicals() Technicals { return e.last }

// Step appends one tick and returns the signal row for it. It returns
// ErrNotEnoughHistory until MinHistory ticks have accumulated; other errors
// indicate the indicator computation itself failed and are fatal to the
// caller's session.
func (e *Engine) Step(price float64) (Set, error) {
	if math.IsNaN(price) || price <= 0 {
		return Set{}, errors.New("invalid price sample")
	}
	e.appendTick(price)
	if len(e.ticks) < MinHistory {
		return Set{}, ErrNotEnoughHistory
	}
	if err := e.computeTechnicals(); err != nil {
		return Set{}, err
	}
	set := e.derive(price)
	e.applyTransitions(set, price)
	return set, nil
}

// appendTick folds the tick into the current bar, opening a new bar every
// BarTicks ticks.
func (e *Engine) appendTick(price float64) {
	e.ticks = append(e.ticks, price)
	if len(e.closes) == 0 || (len(e.ticks)-1)%e.cfg.BarTicks == 0 {
		e.highs = append(e.highs, price)
		e.lows = append(e.lows, price)
		e.closes = append(e.closes, price)
		return
	}
	i := len(e.closes) - 1
	if price > e.highs[i] {
		e.highs[i] = price
	}
	if price < e.lows[i] {
		e.lows[i] = price
	}
	e.closes[i] = price
}

func (e *Engine) computeTechnicals() error {
	prev := e.last
	t := Technicals{PrevHist: prev.Hist}

	if len(e.closes) >= e.cfg.BBWindow {
		upper, _, lower := talib.BBands(e.closes, e.cfg.BBWindow, e.cfg.BBStd, e.cfg.BBStd, talib.SMA)
		t.BandWidth = sanitize(upper[len(upper)-1] - lower[len(lower)-1])
	}
	if required := e.cfg.MACDSlow + e.cfg.MACDSignal; len(e.closes) >= required {
		_, _, hist := talib.Macd(e.closes, e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal)
		if len(hist) == 0 {
			return errors.New("macd series empty")
		}
		t.Hist = sanitize(hist[len(hist)-1])
		if len(hist) > 1 {
			t.PrevHist = sanitize(hist[len(hist)-2])
		}
	}
	if len(e.closes) > e.cfg.DMIWindow {
		plus := talib.PlusDI(e.highs, e.lows, e.closes, e.cfg.DMIWindow)
		minus := talib.MinusDI(e.highs, e.lows, e.closes, e.cfg.DMIWindow)
		adx := talib.Adx(e.highs, e.lows, e.closes, e.cfg.DMIWindow)
		t.DIDiff = sanitize(plus[len(plus)-1] - minus[len(minus)-1])
		if len(adx) > 1 {
			t.ADXDiff = sanitize(adx[len(adx)-1] - sanitize(adx[len(adx)-2]))
		}
	}

	e.last = t
	return nil
}

// derive evaluates the rules for the latest tick. Exit flags are judged
// against the position held before this tick, so a momentum reversal can
// raise an exit and the opposite entry together.
func (e *Engine) derive(price float64) Set {
	var set Set
	t := e.last

	crossUp := t.PrevHist <= 0 && t.Hist > 0
	crossDown := t.PrevHist >= 0 && t.Hist < 0

	if e.held != nil {
		switch e.held.side {
		case "buy":
			if crossDown {
				set.BuyExit = 1
			}
			if e.cfg.StopLossPct > 0 && price <= e.held.price*(1-e.cfg.StopLossPct/100) {
				set.EmergencyBuyExit = 1
			}
		case "sell":
			if crossUp {
				set.SellExit = 1
			}
			if e.cfg.StopLossPct > 0 && price >= e.held.price*(1+e.cfg.StopLossPct/100) {
				set.EmergencySellExit = 1
			}
		}
	}

	trending := t.DIDiff != 0 || t.ADXDiff > 0
	holdingBuy := e.held != nil && e.held.side == "buy"
	holdingSell := e.held != nil && e.held.side == "sell"
	if crossUp && trending && t.DIDiff >= 0 && !holdingBuy {
		set.Buy = 1
	}
	if crossDown && trending && t.DIDiff <= 0 && !holdingSell {
		set.Sell = 1
	}
	return set
}

// applyTransitions updates held-position state: exits clear it, then
// entries replace it at this tick's price.
func (e *Engine) applyTransitions(set Set, price float64) {
	if set.BuyExit != 0 || set.SellExit != 0 || set.EmergencyBuyExit != 0 || set.EmergencySellExit != 0 {
		e.held = nil
	}
	switch {
	case set.Buy != 0:
		e.held = &position{side: "buy", price: price}
	case set.Sell != 0:
		e.held = &position{side: "sell", price: price}
	}
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
