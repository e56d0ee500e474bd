package service

import (
	"context"
	"testing"
	"time"

	"github.com/dushixiang/tally/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLedgerWriteParams(entryID, symbol string, pnl float64) LedgerWriteParams {
	now := time.Now()
	return LedgerWriteParams{
		EntryID:     entryID,
		Desk:        models.DeskPremarketEquity,
		Symbol:      symbol,
		Direction:   models.DirectionLong,
		EntryAt:     now.Add(-time.Hour),
		ExitAt:      now,
		EntryPrice:  100,
		ExitPrice:   100 + pnl/10,
		Quantity:    10,
		RealizedPnl: pnl,
		BatchID:     "batch-test",
	}
}

func TestLedgerWriteIdempotent(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewLedgerService(db, zap.NewNop())
	ctx := context.Background()

	written, err := svc.Write(ctx, newLedgerWriteParams("entry-1", "AAPL", 250))
	require.NoError(t, err)
	assert.True(t, written)

	// 同一条目重复写入是空操作，数据不被修改
	written, err = svc.Write(ctx, newLedgerWriteParams("entry-1", "AAPL", 999))
	require.NoError(t, err)
	assert.False(t, written)

	var rows []models.LedgerEntry
	require.NoError(t, db.Find(&rows, "entry_id = ?", "entry-1").Error)
	require.Len(t, rows, 1)
	assert.Equal(t, 250.0, rows[0].RealizedPnl)
}

func TestLedgerSumRealizedPnlForDate(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewLedgerService(db, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Write(ctx, newLedgerWriteParams("entry-a", "AAPL", 300))
	require.NoError(t, err)
	_, err = svc.Write(ctx, newLedgerWriteParams("entry-b", "TSLA", -120.5))
	require.NoError(t, err)

	// 昨天的行不计入今天
	old := newLedgerWriteParams("entry-c", "NVDA", 9999)
	old.ExitAt = time.Now().AddDate(0, 0, -3)
	_, err = svc.Write(ctx, old)
	require.NoError(t, err)

	total, err := svc.SumRealizedPnlForDate(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 179.5, total)
}

func TestLedgerDailySummary(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewLedgerService(db, zap.NewNop())
	ctx := context.Background()

	win := newLedgerWriteParams("entry-w", "AAPL", 400)
	rm := 2.0
	win.RiskMultiple = &rm
	_, err := svc.Write(ctx, win)
	require.NoError(t, err)

	loss := newLedgerWriteParams("entry-l", "TSLA", -100)
	_, err = svc.Write(ctx, loss)
	require.NoError(t, err)

	summary, err := svc.GetDailySummary(ctx, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TradeCount)
	assert.Equal(t, 1, summary.Wins)
	assert.Equal(t, 0.5, summary.WinRate)
	assert.Equal(t, 300.0, summary.TotalPnl)
	require.NotNil(t, summary.AvgRiskMultiple)
	assert.Equal(t, 2.0, *summary.AvgRiskMultiple)
	assert.Equal(t, []string{"AAPL", "TSLA"}, summary.Symbols)
}

func TestLedgerEmptyDaySummary(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewLedgerService(db, zap.NewNop())
	ctx := context.Background()

	summary, err := svc.GetDailySummary(ctx, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TradeCount)
	assert.Equal(t, 0.0, summary.WinRate)
	assert.Nil(t, summary.AvgRiskMultiple)
	assert.Empty(t, summary.Symbols)
}
