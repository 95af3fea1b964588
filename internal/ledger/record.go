package ledger

import (
	"time"

	"gorm.io/datatypes"

	"kabutrade/internal/pkg/jst"
)

// TradeInput carries the caller-supplied fields of a trade row; timestamp
// and id are assigned here.
type TradeInput struct {
	Symbol         string
	Side           string
	Quantity       int
	ExecPrice      *float64
	TradeType      string
	RelatedTradeID *int64
	RealizedPL     *float64
	Note           *string
}

// RecordTrade appends one trade row and returns its id.
func (s *Store) RecordTrade(in TradeInput) (int64, error) {
	row := Trade{
		Timestamp:      jst.Now(),
		Symbol:         in.Symbol,
		Side:           in.Side,
		Quantity:       in.Quantity,
		ExecPrice:      in.ExecPrice,
		TradeType:      in.TradeType,
		RelatedTradeID: in.RelatedTradeID,
		RealizedPL:     in.RealizedPL,
		Note:           in.Note,
	}
	if row.TradeType == "" {
		row.TradeType = TradeTypeEntry
	}
	if err := s.db.Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

// RecordOrder appends one order-attempt row.
func (s *Store) RecordOrder(symbol, side string, quantity int, orderType string, price *float64, orderID *string, status string, raw []byte) error {
	if status == "" {
		status = "placed"
	}
	row := Order{
		Timestamp: jst.Now(),
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		OrderType: orderType,
		Price:     price,
		OrderID:   orderID,
		Status:    status,
	}
	if len(raw) > 0 {
		row.Raw = datatypes.JSON(raw)
	}
	return s.db.Create(&row).Error
}

// RecordPLSnapshot appends one account sample. Nil fields mean the
// corresponding sub-fetch failed; the sample is still worth keeping.
func (s *Store) RecordPLSnapshot(symbol *string, plTotal, walletCash, walletMargin *float64, positionsCount int) error {
	now := jst.Now()
	row := DailyPL{
		Date:           jst.Date(now),
		Timestamp:      now,
		Symbol:         symbol,
		PLTotal:        plTotal,
		WalletCash:     walletCash,
		WalletMargin:   walletMargin,
		PositionsCount: positionsCount,
	}
	return s.db.Create(&row).Error
}

// Trades lists the most recent trade rows, newest first.
func (s *Store) Trades(limit int, symbol string) ([]Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	q := s.db.Model(&Trade{}).Order("timestamp DESC, id DESC").Limit(limit)
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	var rows []Trade
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Orders lists the most recent order rows, newest first.
func (s *Store) Orders(limit int, symbol string) ([]Order, error) {
	if limit <= 0 {
		limit = 100
	}
	q := s.db.Model(&Order{}).Order("timestamp DESC, id DESC").Limit(limit)
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	var rows []Order
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func cutoffDate(days int) time.Time {
	now := jst.Now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, jst.Location)
	return day.AddDate(0, 0, -days)
}
