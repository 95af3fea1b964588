package signal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepRequiresMinimumHistory(t *testing.T) {
	e := NewEngine(Config{})
	for i := 0; i < MinHistory-1; i++ {
		_, err := e.Step(100 + float64(i))
		assert.ErrorIs(t, err, ErrNotEnoughHistory)
	}
	_, err := e.Step(100)
	require.NoError(t, err)
	assert.Equal(t, MinHistory, e.HistoryLen())
}

func TestStepRejectsInvalidPrice(t *testing.T) {
	e := NewEngine(Config{})
	_, err := e.Step(0)
	assert.Error(t, err)
	_, err = e.Step(-3)
	assert.Error(t, err)
	_, err = e.Step(math.NaN())
	assert.Error(t, err)
}

func TestFlatPricesProduceNoSignals(t *testing.T) {
	e := NewEngine(Config{})
	var last Set
	for i := 0; i < 200; i++ {
		set, err := e.Step(500.0)
		if err != nil {
			require.ErrorIs(t, err, ErrNotEnoughHistory)
			continue
		}
		last = set
		assert.False(t, set.Any(), "tick %d", i)
	}
	assert.False(t, last.Any())
}

func TestDeriveExitOnMomentumReversal(t *testing.T) {
	e := NewEngine(Config{})
	e.held = &position{side: "buy", price: 500}
	e.last = Technicals{PrevHist: 0.4, Hist: -0.2, DIDiff: -1}

	set := e.derive(500)
	assert.Equal(t, 1, set.BuyExit)
	// reversal: the opposite entry may fire in the same tick
	assert.Equal(t, 1, set.Sell)

	e.applyTransitions(set, 500)
	require.NotNil(t, e.held)
	assert.Equal(t, "sell", e.held.side)
}

func TestDeriveEmergencyBuyExitOnStopLoss(t *testing.T) {
	e := NewEngine(Config{StopLossPct: 0.5})
	e.held = &position{side: "buy", price: 1000}
	e.last = Technicals{PrevHist: 0.1, Hist: 0.2}

	set := e.derive(994) // -0.6% from entry
	assert.Equal(t, 1, set.EmergencyBuyExit)
	assert.Equal(t, 0, set.BuyExit)

	e.applyTransitions(set, 994)
	assert.Nil(t, e.held)
}

func TestDeriveEmergencySellExitOnStopLoss(t *testing.T) {
	e := NewEngine(Config{StopLossPct: 0.5})
	e.held = &position{side: "sell", price: 1000}
	e.last = Technicals{PrevHist: -0.1, Hist: -0.2}

	set := e.derive(1006) // +0.6% against a short
	assert.Equal(t, 1, set.EmergencySellExit)
	e.applyTransitions(set, 1006)
	assert.Nil(t, e.held)
}

func TestDeriveNoEntryWhileHoldingSameSide(t *testing.T) {
	e := NewEngine(Config{})
	e.held = &position{side: "buy", price: 500}
	e.last = Technicals{PrevHist: -0.1, Hist: 0.3, DIDiff: 2}

	set := e.derive(505)
	assert.Equal(t, 0, set.Buy)
}

func TestBarAggregation(t *testing.T) {
	e := NewEngine(Config{BarTicks: 4})
	prices := []float64{100, 104, 98, 101, 103, 99}
	for _, p := range prices {
		e.appendTick(p)
	}
	require.Len(t, e.closes, 2)
	assert.Equal(t, 104.0, e.highs[0])
	assert.Equal(t, 98.0, e.lows[0])
	assert.Equal(t, 101.0, e.closes[0])
	assert.Equal(t, 99.0, e.closes[1])
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, 0.0, sanitize(math.NaN()))
	assert.Equal(t, 0.0, sanitize(math.Inf(1)))
	assert.Equal(t, 1.5, sanitize(1.5))
}
