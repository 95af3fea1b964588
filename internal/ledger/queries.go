package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DailyPLRow is one calendar date aggregated from its snapshot samples.
type DailyPLRow struct {
	Date           string    `json:"date"`
	Timestamp      time.Time `json:"timestamp"`
	Symbol         *string   `json:"symbol"`
	PLTotal        *float64  `json:"pl_total"`
	WalletCash     *float64  `json:"wallet_cash"`
	WalletMargin   *float64  `json:"wallet_margin"`
	PositionsCount int       `json:"positions_count"`
}

// DailyPL aggregates snapshot rows per date over the trailing window:
// average P&L, max observed cash/margin, max position count, latest sample
// timestamp. Dates ascend.
func (s *Store) DailyPL(days int) ([]DailyPLRow, error) {
	rows, err := s.snapshotsSince(days)
	if err != nil {
		return nil, err
	}
	byDate := groupByDate(rows)
	out := make([]DailyPLRow, 0, len(byDate))
	for _, date := range sortedDates(byDate) {
		group := byDate[date]
		agg := DailyPLRow{Date: date}
		plSum := decimal.Zero
		plCount := 0
		for _, r := range group {
			if r.Timestamp.After(agg.Timestamp) {
				agg.Timestamp = r.Timestamp
				agg.Symbol = r.Symbol
			}
			if r.PLTotal != nil {
				plSum = plSum.Add(decimal.NewFromFloat(*r.PLTotal))
				plCount++
			}
			agg.WalletCash = maxFloat(agg.WalletCash, r.WalletCash)
			agg.WalletMargin = maxFloat(agg.WalletMargin, r.WalletMargin)
			if r.PositionsCount > agg.PositionsCount {
				agg.PositionsCount = r.PositionsCount
			}
		}
		if plCount > 0 {
			avg, _ := plSum.Div(decimal.NewFromInt(int64(plCount))).Round(0).Float64()
			agg.PLTotal = &avg
		}
		out = append(out, agg)
	}
	return out, nil
}

// TimelinePoint is one intraday snapshot sample.
type TimelinePoint struct {
	Timestamp      time.Time `json:"timestamp"`
	PLTotal        *float64  `json:"pl_total"`
	PositionsCount int       `json:"positions_count"`
}

// PLTimeline returns the intraday samples for one date, ascending, capped
// at limit rows.
func (s *Store) PLTimeline(date string, limit int) ([]TimelinePoint, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []DailyPL
	err := s.db.Model(&DailyPL{}).
		Where("date = ?", date).
		Order("timestamp ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]TimelinePoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, TimelinePoint{Timestamp: r.Timestamp, PLTotal: r.PLTotal, PositionsCount: r.PositionsCount})
	}
	return out, nil
}

// Summary aggregates trade rows over the trailing window. Exits cover every
// closing trade type (exit, emergency_exit, force_close); win statistics
// consider only exits that carry a realized P&L.
type Summary struct {
	PeriodDays      int     `json:"period_days"`
	TotalTrades     int     `json:"total_trades"`
	Entries         int     `json:"entries"`
	Exits           int     `json:"exits"`
	WinTrades       int     `json:"win_trades"`
	LossTrades      int     `json:"loss_trades"`
	WinRate         float64 `json:"win_rate"`
	TotalRealizedPL float64 `json:"total_realized_pl"`
	AvgWin          float64 `json:"avg_win"`
	AvgLoss         float64 `json:"avg_loss"`
	MaxWin          float64 `json:"max_win"`
	MaxLoss         float64 `json:"max_loss"`
}

func (s *Store) TradeSummary(days int) (Summary, error) {
	var rows []Trade
	err := s.db.Model(&Trade{}).
		Where("timestamp >= ?", cutoffDate(days)).
		Order("timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{PeriodDays: days, TotalTrades: len(rows)}
	total := decimal.Zero
	winSum, lossSum := decimal.Zero, decimal.Zero
	var maxWin, maxLoss *float64
	for _, t := range rows {
		if t.TradeType == TradeTypeEntry {
			sum.Entries++
			continue
		}
		sum.Exits++
		if t.RealizedPL == nil {
			continue
		}
		pl := *t.RealizedPL
		total = total.Add(decimal.NewFromFloat(pl))
		if pl > 0 {
			sum.WinTrades++
			winSum = winSum.Add(decimal.NewFromFloat(pl))
			if maxWin == nil || pl > *maxWin {
				v := pl
				maxWin = &v
			}
		} else if pl < 0 {
			sum.LossTrades++
			lossSum = lossSum.Add(decimal.NewFromFloat(pl))
			if maxLoss == nil || pl < *maxLoss {
				v := pl
				maxLoss = &v
			}
		}
	}
	sum.TotalRealizedPL, _ = total.Float64()
	if sum.Exits > 0 {
		rate := decimal.NewFromInt(int64(sum.WinTrades)).
			Div(decimal.NewFromInt(int64(sum.Exits))).
			Mul(decimal.NewFromInt(100)).
			Round(1)
		sum.WinRate, _ = rate.Float64()
	}
	if sum.WinTrades > 0 {
		sum.AvgWin, _ = winSum.Div(decimal.NewFromInt(int64(sum.WinTrades))).Float64()
	}
	if sum.LossTrades > 0 {
		sum.AvgLoss, _ = lossSum.Div(decimal.NewFromInt(int64(sum.LossTrades))).Float64()
	}
	if maxWin != nil {
		sum.MaxWin = *maxWin
	}
	if maxLoss != nil {
		sum.MaxLoss = *maxLoss
	}
	return sum, nil
}

// MarginRow is one date's margin/cash maxima plus the change against the
// immediately preceding date in the window.
type MarginRow struct {
	Date         string   `json:"date"`
	WalletMargin *float64 `json:"wallet_margin"`
	WalletCash   *float64 `json:"wallet_cash"`
	MarginChange *float64 `json:"margin_change"`
}

// MarginDaily returns per-date max margin/cash; MarginChange is nil for the
// first date of the window or when either side of the delta is missing.
func (s *Store) MarginDaily(days int) ([]MarginRow, error) {
	rows, err := s.snapshotsSince(days)
	if err != nil {
		return nil, err
	}
	byDate := groupByDate(rows)
	dates := sortedDates(byDate)
	out := make([]MarginRow, 0, len(dates))
	var prevMargin *float64
	for i, date := range dates {
		row := MarginRow{Date: date}
		for _, r := range byDate[date] {
			row.WalletMargin = maxFloat(row.WalletMargin, r.WalletMargin)
			row.WalletCash = maxFloat(row.WalletCash, r.WalletCash)
		}
		if i > 0 && prevMargin != nil && row.WalletMargin != nil {
			change, _ := decimal.NewFromFloat(*row.WalletMargin).
				Sub(decimal.NewFromFloat(*prevMargin)).Float64()
			row.MarginChange = &change
		}
		prevMargin = row.WalletMargin
		out = append(out, row)
	}
	return out, nil
}

func (s *Store) snapshotsSince(days int) ([]DailyPL, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := cutoffDate(days).Format("2006-01-02")
	var rows []DailyPL
	err := s.db.Model(&DailyPL{}).
		Where("date >= ?", cutoff).
		Order("timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func groupByDate(rows []DailyPL) map[string][]DailyPL {
	byDate := make(map[string][]DailyPL)
	for _, r := range rows {
		byDate[r.Date] = append(byDate[r.Date], r)
	}
	return byDate
}

func sortedDates(byDate map[string][]DailyPL) []string {
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

func maxFloat(cur, candidate *float64) *float64 {
	if candidate == nil {
		return cur
	}
	if cur == nil || *candidate > *cur {
		v := *candidate
		return &v
	}
	return cur
}
