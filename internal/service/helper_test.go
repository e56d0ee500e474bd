package service

import (
	"testing"
	"time"

	"github.com/dushixiang/tally/internal/models"
	"github.com/dushixiang/tally/pkg/broker"
	"github.com/glebarez/sqlite"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库每个连接是独立实例，限制为单连接
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		models.JournalEntry{}, models.OptionLeg{}, models.LedgerEntry{}, models.JobLock{},
	))
	return db
}

func newTestReconcileService(t *testing.T, db *gorm.DB) *ReconcileService {
	t.Helper()
	ledger := NewLedgerService(db, zap.NewNop())
	return NewReconcileService(db, ledger, zap.NewNop())
}

func newJournalEntry(symbol string, direction models.TradeDirection) *models.JournalEntry {
	return &models.JournalEntry{
		ID:         ulid.Make().String(),
		Symbol:     symbol,
		Desk:       models.DeskPremarketEquity,
		AssetClass: models.AssetClassEquity,
		Direction:  direction,
		Status:     models.EntryStatusPlanned,
	}
}

func equityFill(id, symbol string, side broker.FillSide, qty, price float64) broker.Fill {
	return broker.Fill{
		FillID:     id,
		OrderID:    "order-" + id,
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		Price:      price,
		FilledAt:   time.Now(),
		AssetClass: broker.AssetClassEquity,
	}
}

func optionFill(id string, side broker.FillSide, qty, price float64, underlying, expiration string, strike float64, optionType broker.OptionType) broker.Fill {
	return broker.Fill{
		FillID:     id,
		OrderID:    "order-" + id,
		Symbol:     underlying,
		Side:       side,
		Quantity:   qty,
		Price:      price,
		FilledAt:   time.Now(),
		AssetClass: broker.AssetClassOption,
		Underlying: underlying,
		Expiration: expiration,
		Strike:     strike,
		OptionType: optionType,
	}
}

func countLedgerRows(t *testing.T, db *gorm.DB, entryID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Where("entry_id = ?", entryID).Count(&count).Error)
	return count
}
