package runner

import (
	"context"
	"fmt"
	"time"

	"kabutrade/internal/gateway/kabus"
	"kabutrade/internal/ledger"
	"kabutrade/internal/logger"
)

// ForceClose liquidates every open position on the configured symbol,
// independent of loop state, and returns how many the broker accepted a
// closing order for. With no open positions it returns 0 and writes nothing.
func (r *Runner) ForceClose() (int, error) {
	r.mu.Lock()
	opts := r.opts
	last := r.state.LastPrice
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return r.forceClose(ctx, opts, last)
}

func (r *Runner) forceClose(ctx context.Context, opts Options, lastPrice *float64) (int, error) {
	positions, err := r.gw.Positions(ctx, opts.Symbol)
	if err != nil {
		return 0, fmt.Errorf("listing positions failed: %w", err)
	}
	if len(positions) == 0 {
		logger.Infof("force close: no open positions on %s", opts.Symbol)
		return 0, nil
	}

	// prefer a fresh quote; fall back to the loop's last observed price
	price := lastPrice
	if fresh, err := r.gw.CurrentPrice(ctx, opts.Symbol, opts.Exchange); err == nil && fresh != nil {
		price = fresh
	} else if err != nil {
		logger.Warnf("force close quote failed, using last price: %v", err)
	}

	closed := 0
	for _, pos := range positions {
		if pos.LeavesQty <= 0 || pos.HoldID == "" {
			continue
		}
		apiSide := kabus.CloseSide(pos.Side)
		if price != nil {
			if r.submitClose(ctx, opts, apiSide, pos.LeavesQty, pos.HoldID, *price) {
				closed++
			}
		} else {
			logger.Errorf("force close: no price available for %s hold=%s, order skipped", opts.Symbol, pos.HoldID)
		}
		// the ledger row is written whether or not the order went through
		r.recordTrade(ledger.TradeInput{
			Symbol:    opts.Symbol,
			Side:      kabus.SideName(apiSide),
			Quantity:  pos.LeavesQty,
			ExecPrice: price,
			TradeType: ledger.TradeTypeForceClose,
		})
	}
	logger.Infof("force close finished: symbol=%s closed=%d of %d", opts.Symbol, closed, len(positions))
	r.notifySend("Forced liquidation",
		fmt.Sprintf("%s: closed %d of %d position(s)", opts.Symbol, closed, len(positions)))
	return closed, nil
}
