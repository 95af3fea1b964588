package kabus

import (
	"time"

	"kabutrade/internal/pkg/jst"
)

// Kabu Station side codes.
const (
	APISideSell = "1"
	APISideBuy  = "2"
)

// Order states; 5 means fully processed (done).
const OrderStateDone = 5

// Position is one margin position as reported by /positions.
type Position struct {
	HoldID     string   `json:"hold_id"`
	Symbol     string   `json:"symbol"`
	SymbolName string   `json:"symbol_name"`
	Side       string   `json:"side"` // API side code
	LeavesQty  int      `json:"leaves_qty"`
	Price      *float64 `json:"price"`
	ProfitLoss *float64 `json:"profit_loss"`
}

// OrderDetail is one row of an order's execution details.
type OrderDetail struct {
	SeqNum      int     `json:"SeqNum"`
	Price       float64 `json:"Price"`
	Qty         float64 `json:"Qty"`
	ExecutionID *string `json:"ExecutionID"`
}

// Order is one row of the broker's order history (/orders).
type Order struct {
	ID       string        `json:"ID"`
	Symbol   string        `json:"Symbol"`
	Side     string        `json:"Side"`
	Price    float64       `json:"Price"`
	CumQty   float64       `json:"CumQty"`
	State    int           `json:"State"`
	RecvTime string        `json:"RecvTime"`
	Details  []OrderDetail `json:"Details"`
}

// ExecPrice resolves the execution price from the detail rows: the last
// detail carrying an execution id. Falls back to the order's own price.
func (o Order) ExecPrice() float64 {
	price := o.Price
	for _, d := range o.Details {
		if d.ExecutionID != nil && *d.ExecutionID != "" && d.Price > 0 {
			price = d.Price
		}
	}
	return price
}

// RecvTimestamp parses RecvTime; zero time when absent or malformed.
func (o Order) RecvTimestamp() time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, o.RecvTime, jst.Location); err == nil {
			return t
		}
	}
	return time.Time{}
}

// SideName maps an API side code to buy/sell.
func SideName(apiSide string) string {
	if apiSide == APISideBuy {
		return "buy"
	}
	return "sell"
}

// CloseSide returns the API side code that closes a position held on the
// given API side.
func CloseSide(apiSide string) string {
	if apiSide == APISideBuy {
		return APISideSell
	}
	return APISideBuy
}
