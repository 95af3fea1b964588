package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kabutrade/internal/logger"
	"kabutrade/internal/risk"
	"kabutrade/internal/signal"
)

// session is the loop-goroutine-private state of one trading run. Nothing
// here is shared; everything cross-thread goes through the Runner's lock.
type session struct {
	r      *Runner
	id     string
	opts   Options
	engine *signal.Engine

	// the one open entry the runner tracks per symbol
	open *openEntry

	openingBalance float64
}

type openEntry struct {
	id    int64
	side  string
	price float64
}

func (r *Runner) loop(ctx context.Context, id string, opts Options) error {
	sess := &session{
		r:    r,
		id:   id,
		opts: opts,
		engine: signal.NewEngine(signal.Config{
			StopLossPct: opts.StopLossPct,
		}),
	}

	logger.Infof("trading loop started: session=%s symbol=%s qty=%d interval=%s",
		id, opts.Symbol, opts.Quantity, opts.SleepInterval)

	// The opening balance anchors the daily-loss kill switch; fetching it
	// also acquires the session token up front. Without it the kill switch
	// stays off for this session.
	if equity, err := r.equity(ctx); err != nil {
		logger.Warnf("opening balance unavailable, daily-loss guard off: session=%s err=%v", id, err)
	} else {
		sess.openingBalance = equity
		logger.Infof("opening balance captured: session=%s equity=%.0f", id, equity)
	}
	r.notifySend("Trading started", fmt.Sprintf("session %s on %s x%d", id, opts.Symbol, opts.Quantity))

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		metricLoopIterations.Inc()

		if risk.ShouldForceClose(r.now(), opts.ForceCloseTime) {
			logger.Infof("force-close time reached (%s): session=%s", opts.ForceCloseTime, id)
			if _, err := r.forceClose(ctx, opts, r.lastPrice()); err != nil {
				logger.Errorf("force close at cutoff failed: session=%s err=%v", id, err)
			}
			return nil
		}

		price, err := r.gw.CurrentPrice(ctx, opts.Symbol, opts.Exchange)
		if err != nil {
			metricPriceFetchFailed.Inc()
			logger.Warnf("price fetch failed: session=%s err=%v", id, err)
		}
		r.publishPrice(price)

		if price != nil {
			set, err := sess.engine.Step(*price)
			switch {
			case err == nil:
				r.publishSignal(set)
				if set.Any() {
					sess.applySignals(ctx, set, *price)
				}
			case errors.Is(err, signal.ErrNotEnoughHistory):
				// warming up, nothing to act on yet
			default:
				return fmt.Errorf("signal engine: %w", err)
			}
		}

		if stop := sess.checkDailyLoss(ctx); stop {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(opts.SleepInterval):
		}
	}
}

// checkDailyLoss evaluates the kill switch against current equity. A true
// return means the session was liquidated and must terminate.
func (sess *session) checkDailyLoss(ctx context.Context) bool {
	if sess.opts.MaxDailyLossPct <= 0 || sess.openingBalance <= 0 {
		return false
	}
	equity, err := sess.r.equity(ctx)
	if err != nil {
		logger.Warnf("equity fetch failed: session=%s err=%v", sess.id, err)
		return false
	}
	if !risk.MaxLossBreached(equity, sess.openingBalance, sess.opts.MaxDailyLossPct) {
		return false
	}
	logger.Warnf("daily loss limit breached: session=%s equity=%.0f opening=%.0f limit=%.2f%%",
		sess.id, equity, sess.openingBalance, sess.opts.MaxDailyLossPct)
	if _, err := sess.r.forceClose(ctx, sess.opts, sess.r.lastPrice()); err != nil {
		logger.Errorf("force close after loss breach failed: session=%s err=%v", sess.id, err)
	}
	sess.r.notifySend("Daily loss limit hit",
		fmt.Sprintf("session %s stopped: equity %.0f vs opening %.0f", sess.id, equity, sess.openingBalance))
	return true
}

func (r *Runner) equity(ctx context.Context) (float64, error) {
	cash, err := r.gw.CashBalance(ctx)
	if err != nil {
		return 0, err
	}
	margin, err := r.gw.MarginBalance(ctx)
	if err != nil {
		return 0, err
	}
	return cash + margin, nil
}
