package kabus

import (
	"encoding/json"

	"kabutrade/internal/ledger"
)

// ToBrokerOrders normalizes broker order-history rows for ledger import:
// side codes become buy/sell, execution prices are resolved from details,
// and completion is judged by order state.
func ToBrokerOrders(orders []Order) []ledger.BrokerOrder {
	out := make([]ledger.BrokerOrder, 0, len(orders))
	for _, o := range orders {
		raw, _ := json.Marshal(o)
		out = append(out, ledger.BrokerOrder{
			OrderID:   o.ID,
			Symbol:    o.Symbol,
			Side:      SideName(o.Side),
			Quantity:  int(o.CumQty),
			ExecPrice: o.ExecPrice(),
			Completed: o.State == OrderStateDone,
			RecvTime:  o.RecvTimestamp(),
			Raw:       raw,
		})
	}
	return out
}
