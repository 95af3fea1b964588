package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"kabutrade/internal/logger"
)

const importNotePrefix = "kabus:"

// ImportTradesFromAPI reconciles the ledger against the broker's own order
// history. Only completed orders are considered. Per symbol, the first
// completed order opens a pending entry; the next opposite-side completed
// order closes it as an exit with realized P&L. Each imported row carries
// the broker order id in its note, and orders whose id was already imported
// are skipped, so re-importing the same history writes nothing. Alongside
// each imported trade an orders row is written with the broker's raw order
// payload, preserving what the broker reported at import time.
//
// Returns the number of trade rows newly written.
func (s *Store) ImportTradesFromAPI(orders []BrokerOrder) (int, error) {
	completed := make([]BrokerOrder, 0, len(orders))
	for _, o := range orders {
		if o.Completed && o.OrderID != "" {
			completed = append(completed, o)
		}
	}
	sort.SliceStable(completed, func(i, j int) bool {
		return completed[i].RecvTime.Before(completed[j].RecvTime)
	})

	type pending struct {
		id    int64
		side  string
		price float64
	}
	open := make(map[string]*pending)
	written := 0

	for _, o := range completed {
		imported, err := s.noteExists(importNotePrefix + o.OrderID)
		if err != nil {
			return written, err
		}
		if imported {
			continue
		}

		note := importNotePrefix + o.OrderID
		price := o.ExecPrice
		entry := open[o.Symbol]

		if entry != nil && entry.side != o.Side {
			pl := RealizedPL(entry.side, entry.price, price, o.Quantity)
			_, err := s.RecordTrade(TradeInput{
				Symbol:         o.Symbol,
				Side:           o.Side,
				Quantity:       o.Quantity,
				ExecPrice:      &price,
				TradeType:      TradeTypeExit,
				RelatedTradeID: &entry.id,
				RealizedPL:     &pl,
				Note:           &note,
			})
			if err != nil {
				return written, err
			}
			written++
			if err := s.recordImportedOrder(o); err != nil {
				return written, err
			}
			delete(open, o.Symbol)
			continue
		}

		// No open entry for this symbol, or a same-side repeat: record an
		// entry and make it the pending one.
		id, err := s.RecordTrade(TradeInput{
			Symbol:    o.Symbol,
			Side:      o.Side,
			Quantity:  o.Quantity,
			ExecPrice: &price,
			TradeType: TradeTypeEntry,
			Note:      &note,
		})
		if err != nil {
			return written, err
		}
		if entry != nil {
			logger.Warnf("import: same-side order %s for %s supersedes open entry %d", o.OrderID, o.Symbol, entry.id)
		}
		open[o.Symbol] = &pending{id: id, side: o.Side, price: price}
		written++
		if err := s.recordImportedOrder(o); err != nil {
			return written, err
		}
	}
	return written, nil
}

func (s *Store) recordImportedOrder(o BrokerOrder) error {
	price := o.ExecPrice
	id := o.OrderID
	return s.RecordOrder(o.Symbol, o.Side, o.Quantity, "import", &price, &id, "filled", o.Raw)
}

func (s *Store) noteExists(note string) (bool, error) {
	var count int64
	err := s.db.Model(&Trade{}).Where("note = ?", note).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// RealizedPL computes the profit locked in by closing a position opened at
// entryPrice on entrySide with quantity qty at exitPrice.
func RealizedPL(entrySide string, entryPrice, exitPrice float64, qty int) float64 {
	entry := decimal.NewFromFloat(entryPrice)
	exit := decimal.NewFromFloat(exitPrice)
	q := decimal.NewFromInt(int64(qty))
	var diff decimal.Decimal
	if entrySide == SideBuy {
		diff = exit.Sub(entry)
	} else {
		diff = entry.Sub(exit)
	}
	pl, _ := diff.Mul(q).Float64()
	return pl
}
