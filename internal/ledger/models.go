package ledger

import (
	"time"

	"gorm.io/datatypes"
)

// Trade types. Rows are append-only; a trade is never updated once written.
const (
	TradeTypeEntry         = "entry"
	TradeTypeExit          = "exit"
	TradeTypeEmergencyExit = "emergency_exit"
	TradeTypeForceClose    = "force_close"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

type Trade struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Timestamp      time.Time `gorm:"column:timestamp;index" json:"timestamp"`
	Symbol         string    `gorm:"column:symbol;index" json:"symbol"`
	Side           string    `gorm:"column:side" json:"side"`
	Quantity       int       `gorm:"column:quantity" json:"quantity"`
	ExecPrice      *float64  `gorm:"column:exec_price" json:"exec_price"`
	TradeType      string    `gorm:"column:trade_type" json:"trade_type"`
	RelatedTradeID *int64    `gorm:"column:related_trade_id" json:"related_trade_id"`
	RealizedPL     *float64  `gorm:"column:realized_pl" json:"realized_pl"`
	Note           *string   `gorm:"column:note;index" json:"note"`
}

func (Trade) TableName() string { return "trades" }

// Order records an order placement attempt, independent of the trade rows
// derived from signals. Raw optionally carries the broker's payload.
type Order struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Timestamp time.Time      `gorm:"column:timestamp;index" json:"timestamp"`
	Symbol    string         `gorm:"column:symbol" json:"symbol"`
	Side      string         `gorm:"column:side" json:"side"`
	Quantity  int            `gorm:"column:quantity" json:"quantity"`
	OrderType string         `gorm:"column:order_type" json:"order_type"`
	Price     *float64       `gorm:"column:price" json:"price"`
	OrderID   *string        `gorm:"column:order_id" json:"order_id"`
	Status    string         `gorm:"column:status;default:placed" json:"status"`
	Raw       datatypes.JSON `gorm:"column:raw;type:TEXT" json:"raw,omitempty"`
}

func (Order) TableName() string { return "orders" }

// DailyPL is one periodic account sample, not a daily aggregate; daily
// figures are derived at query time.
type DailyPL struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Date           string    `gorm:"column:date;index" json:"date"`
	Timestamp      time.Time `gorm:"column:timestamp" json:"timestamp"`
	Symbol         *string   `gorm:"column:symbol" json:"symbol"`
	PLTotal        *float64  `gorm:"column:pl_total" json:"pl_total"`
	WalletCash     *float64  `gorm:"column:wallet_cash" json:"wallet_cash"`
	WalletMargin   *float64  `gorm:"column:wallet_margin" json:"wallet_margin"`
	PositionsCount int       `gorm:"column:positions_count;default:0" json:"positions_count"`
}

func (DailyPL) TableName() string { return "daily_pl" }

// BrokerOrder is a broker-history order normalized for import: side already
// mapped to buy/sell, execution price resolved from the fill details.
type BrokerOrder struct {
	OrderID   string
	Symbol    string
	Side      string
	Quantity  int
	ExecPrice float64
	Completed bool
	RecvTime  time.Time
	Raw       []byte
}
