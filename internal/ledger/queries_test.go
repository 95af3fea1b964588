package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kabutrade/internal/pkg/jst"
)

func insertSnapshot(t *testing.T, s *Store, date string, hhmm string, pl, cash, margin *float64, positions int) {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04", date+" "+hhmm, jst.Location)
	require.NoError(t, err)
	sym := "8306"
	row := DailyPL{
		Date: date, Timestamp: ts, Symbol: &sym,
		PLTotal: pl, WalletCash: cash, WalletMargin: margin,
		PositionsCount: positions,
	}
	require.NoError(t, s.db.Create(&row).Error)
}

func recentDate(daysAgo int) string {
	return jst.Date(jst.Now().AddDate(0, 0, -daysAgo))
}

func TestDailyPLAggregatesPerDate(t *testing.T) {
	s := newTestStore(t)
	d0 := recentDate(1)
	insertSnapshot(t, s, d0, "10:00", fptr(1000), fptr(900_000), fptr(2_000_000), 1)
	insertSnapshot(t, s, d0, "14:00", fptr(3000), fptr(950_000), fptr(2_100_000), 2)

	rows, err := s.DailyPL(7)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, d0, r.Date)
	require.NotNil(t, r.PLTotal)
	assert.Equal(t, 2000.0, *r.PLTotal) // average of samples
	require.NotNil(t, r.WalletCash)
	assert.Equal(t, 950_000.0, *r.WalletCash)
	require.NotNil(t, r.WalletMargin)
	assert.Equal(t, 2_100_000.0, *r.WalletMargin)
	assert.Equal(t, 2, r.PositionsCount)
	assert.Equal(t, 14, r.Timestamp.In(jst.Location).Hour())
}

func TestDailyPLEmptyWindow(t *testing.T) {
	s := newTestStore(t)
	rows, err := s.DailyPL(7)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPLTimelineAscendingAndCapped(t *testing.T) {
	s := newTestStore(t)
	d := recentDate(0)
	insertSnapshot(t, s, d, "11:00", fptr(200), nil, nil, 1)
	insertSnapshot(t, s, d, "09:00", fptr(100), nil, nil, 0)
	insertSnapshot(t, s, d, "10:00", fptr(150), nil, nil, 1)

	points, err := s.PLTimeline(d, 500)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 100.0, *points[0].PLTotal)
	assert.Equal(t, 150.0, *points[1].PLTotal)
	assert.Equal(t, 200.0, *points[2].PLTotal)

	capped, err := s.PLTimeline(d, 2)
	require.NoError(t, err)
	assert.Len(t, capped, 2)
}

func TestTradeSummaryWinsAndLosses(t *testing.T) {
	s := newTestStore(t)
	record := func(pl float64) {
		entryID, err := s.RecordTrade(TradeInput{Symbol: "8306", Side: SideBuy, Quantity: 100, ExecPrice: fptr(1200), TradeType: TradeTypeEntry})
		require.NoError(t, err)
		_, err = s.RecordTrade(TradeInput{Symbol: "8306", Side: SideSell, Quantity: 100, ExecPrice: fptr(1250), TradeType: TradeTypeExit, RelatedTradeID: &entryID, RealizedPL: &pl})
		require.NoError(t, err)
	}
	record(5000)
	record(2000)
	record(-2000)

	sum, err := s.TradeSummary(30)
	require.NoError(t, err)
	assert.Equal(t, 6, sum.TotalTrades)
	assert.Equal(t, 3, sum.Entries)
	assert.Equal(t, 3, sum.Exits)
	assert.Equal(t, 2, sum.WinTrades)
	assert.Equal(t, 1, sum.LossTrades)
	assert.InDelta(t, 66.7, sum.WinRate, 0.1)
	assert.Equal(t, 5000.0, sum.TotalRealizedPL)
	assert.Equal(t, 3500.0, sum.AvgWin)
	assert.Equal(t, -2000.0, sum.AvgLoss)
	assert.Equal(t, 5000.0, sum.MaxWin)
	assert.Equal(t, -2000.0, sum.MaxLoss)
}

func TestTradeSummaryNoExits(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RecordTrade(TradeInput{Symbol: "8306", Side: SideBuy, Quantity: 100, ExecPrice: fptr(1200), TradeType: TradeTypeEntry})
	require.NoError(t, err)

	sum, err := s.TradeSummary(30)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TotalTrades)
	assert.Equal(t, 1, sum.Entries)
	assert.Equal(t, 0, sum.Exits)
	assert.Equal(t, 0.0, sum.WinRate)
	assert.Equal(t, 0.0, sum.TotalRealizedPL)
}

func TestTradeSummaryEmpty(t *testing.T) {
	s := newTestStore(t)
	sum, err := s.TradeSummary(30)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.TotalTrades)
	assert.Equal(t, 0.0, sum.WinRate)
}

func TestMarginDailyChange(t *testing.T) {
	s := newTestStore(t)
	d0, d1 := recentDate(2), recentDate(1)
	insertSnapshot(t, s, d0, "15:00", fptr(0), fptr(1_000_000), fptr(3_000_000), 0)
	insertSnapshot(t, s, d1, "15:00", fptr(5000), fptr(1_005_000), fptr(3_015_000), 0)

	rows, err := s.MarginDaily(7)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Nil(t, rows[0].MarginChange)
	require.NotNil(t, rows[0].WalletMargin)
	assert.Equal(t, 3_000_000.0, *rows[0].WalletMargin)

	require.NotNil(t, rows[1].MarginChange)
	assert.Equal(t, 15_000.0, *rows[1].MarginChange)
	assert.Equal(t, 3_015_000.0, *rows[1].WalletMargin)
}

func TestMarginDailyMissingValueYieldsNilChange(t *testing.T) {
	s := newTestStore(t)
	d0, d1, d2 := recentDate(3), recentDate(2), recentDate(1)
	insertSnapshot(t, s, d0, "15:00", nil, nil, fptr(3_000_000), 0)
	insertSnapshot(t, s, d1, "15:00", nil, nil, nil, 0)
	insertSnapshot(t, s, d2, "15:00", nil, nil, fptr(3_010_000), 0)

	rows, err := s.MarginDaily(7)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Nil(t, rows[0].MarginChange)
	assert.Nil(t, rows[1].MarginChange) // current missing
	assert.Nil(t, rows[2].MarginChange) // previous missing
}

func TestMarginDailyEmpty(t *testing.T) {
	s := newTestStore(t)
	rows, err := s.MarginDaily(7)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRecordPLSnapshotWritesDatedRow(t *testing.T) {
	s := newTestStore(t)
	sym := "8306"
	require.NoError(t, s.RecordPLSnapshot(&sym, fptr(1200), fptr(1_000_000), nil, 1))

	points, err := s.PLTimeline(recentDate(0), 10)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 1200.0, *points[0].PLTotal)
	assert.Equal(t, 1, points[0].PositionsCount)
}
