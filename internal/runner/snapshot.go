package runner

import (
	"context"
	"time"

	"kabutrade/internal/logger"
)

// RunSnapshots periodically samples account state into the ledger for as
// long as ctx lives. Samples are taken only while the loop is running. Run
// it on its own goroutine.
func (r *Runner) RunSnapshots(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		st := r.GetState()
		if !st.Running {
			continue
		}
		r.recordSnapshot(ctx, st.Symbol)
	}
}

// recordSnapshot writes one account sample. Each sub-fetch failure leaves
// its field nil; a partially populated sample is still worth keeping.
func (r *Runner) recordSnapshot(ctx context.Context, symbol string) {
	var cash, margin, plTotal *float64
	positionsCount := 0

	if v, err := r.gw.CashBalance(ctx); err == nil {
		cash = &v
	} else {
		logger.Warnf("snapshot: cash fetch failed: %v", err)
	}
	if v, err := r.gw.MarginBalance(ctx); err == nil {
		margin = &v
	} else {
		logger.Warnf("snapshot: margin fetch failed: %v", err)
	}
	if positions, err := r.gw.Positions(ctx, symbol); err == nil {
		positionsCount = len(positions)
		sum := 0.0
		for _, p := range positions {
			if p.ProfitLoss != nil {
				sum += *p.ProfitLoss
			}
		}
		plTotal = &sum
	} else {
		logger.Warnf("snapshot: positions fetch failed: %v", err)
	}

	sym := symbol
	if err := r.store.RecordPLSnapshot(&sym, plTotal, cash, margin, positionsCount); err != nil {
		metricLedgerWriteFailed.Inc()
		logger.Errorf("snapshot write failed: %v", err)
	}
}
