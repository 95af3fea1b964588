package runner

import (
	"context"
	"fmt"

	"kabutrade/internal/gateway/kabus"
	"kabutrade/internal/ledger"
	"kabutrade/internal/logger"
	"kabutrade/internal/signal"
)

// applySignals turns one tick's signal flags into ledger rows and closing
// orders. Entries are evaluated before exits, and exits settle against the
// entry open before this tick, so a reversal tick records the old entry's
// close and the new entry in two rows at the same price.
func (sess *session) applySignals(ctx context.Context, set signal.Set, price float64) {
	prev := sess.open

	if set.Buy != 0 || set.Sell != 0 {
		side := ledger.SideBuy
		if set.Sell != 0 {
			side = ledger.SideSell
		}
		sess.openPosition(side, price)
	}

	switch {
	case set.BuyExit != 0:
		sess.closePosition(prev, ledger.TradeTypeExit, ledger.SideSell, price)
	case set.SellExit != 0:
		sess.closePosition(prev, ledger.TradeTypeExit, ledger.SideBuy, price)
	case set.EmergencyBuyExit != 0:
		sess.closePosition(prev, ledger.TradeTypeEmergencyExit, ledger.SideSell, price)
	case set.EmergencySellExit != 0:
		sess.closePosition(prev, ledger.TradeTypeEmergencyExit, ledger.SideBuy, price)
	default:
		return
	}

	// any exit signal also closes whatever the broker actually holds
	sess.closeBrokerPositions(ctx, price)
	if sess.open == prev {
		sess.open = nil
	}
}

func (sess *session) openPosition(side string, price float64) {
	p := price
	id, ok := sess.r.recordTrade(ledger.TradeInput{
		Symbol:    sess.opts.Symbol,
		Side:      side,
		Quantity:  sess.opts.Quantity,
		ExecPrice: &p,
		TradeType: ledger.TradeTypeEntry,
	})
	if !ok {
		return
	}
	sess.open = &openEntry{id: id, side: side, price: price}
	logger.Infof("entry recorded: session=%s side=%s price=%.1f trade=%d", sess.id, side, price, id)
	sess.r.notifySend("Entry "+side,
		fmt.Sprintf("%s x%d @ %.1f", sess.opts.Symbol, sess.opts.Quantity, price))
}

// closePosition writes the exit row for the given open entry. side is the
// closing side; for emergency exits it is forced opposite the emergency
// direction regardless of the entry.
func (sess *session) closePosition(prev *openEntry, tradeType, side string, price float64) {
	if prev == nil {
		return
	}
	pl := ledger.RealizedPL(prev.side, prev.price, price, sess.opts.Quantity)
	p := price
	rel := prev.id
	_, ok := sess.r.recordTrade(ledger.TradeInput{
		Symbol:         sess.opts.Symbol,
		Side:           side,
		Quantity:       sess.opts.Quantity,
		ExecPrice:      &p,
		TradeType:      tradeType,
		RelatedTradeID: &rel,
		RealizedPL:     &pl,
	})
	if !ok {
		return
	}
	logger.Infof("%s recorded: session=%s side=%s price=%.1f pl=%.0f entry=%d",
		tradeType, sess.id, side, price, pl, prev.id)
	title := "Exit " + side
	if tradeType == ledger.TradeTypeEmergencyExit {
		title = "Stop loss " + side
	}
	sess.r.notifySend(title,
		fmt.Sprintf("%s x%d @ %.1f, P&L %.0f", sess.opts.Symbol, sess.opts.Quantity, price, pl))
}

// closeBrokerPositions submits an IOC repayment order for each position the
// broker reports on the traded symbol. Per-position failures are logged and
// do not stop the remaining closes.
func (sess *session) closeBrokerPositions(ctx context.Context, price float64) {
	positions, err := sess.r.gw.Positions(ctx, sess.opts.Symbol)
	if err != nil {
		logger.Warnf("listing positions failed: session=%s err=%v", sess.id, err)
		return
	}
	for _, pos := range positions {
		if pos.LeavesQty <= 0 || pos.HoldID == "" {
			continue
		}
		apiSide := kabus.CloseSide(pos.Side)
		sess.r.submitClose(ctx, sess.opts, apiSide, pos.LeavesQty, pos.HoldID, price)
	}
}

// submitClose hands one IOC closing order to the broker and records the
// attempt. Returns true when the broker accepted the order.
func (r *Runner) submitClose(ctx context.Context, opts Options, apiSide string, qty int, holdID string, price float64) bool {
	metricOrdersAttempted.Inc()
	side := kabus.SideName(apiSide)
	orderID, err := r.gw.SubmitIOCExit(ctx, opts.Symbol, opts.Exchange, apiSide, qty, holdID, price)
	if err != nil {
		metricOrdersFailed.Inc()
		logger.Errorf("close order failed: symbol=%s hold=%s err=%v", opts.Symbol, holdID, err)
		p := price
		r.recordOrder(opts.Symbol, side, qty, &p, nil, "failed")
		return false
	}
	metricOrdersPlaced.Inc()
	logger.Infof("close order placed: symbol=%s hold=%s qty=%d order=%s", opts.Symbol, holdID, qty, orderID)
	p := price
	r.recordOrder(opts.Symbol, side, qty, &p, &orderID, "placed")
	return true
}
