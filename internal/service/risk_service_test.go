package service

import (
	"testing"

	"github.com/dushixiang/tally/internal/config"
	"github.com/dushixiang/tally/internal/models"
	"github.com/stretchr/testify/assert"
)

func pnlPtr(v float64) *float64 {
	return &v
}

func testRiskConf() config.RiskConf {
	return config.RiskConf{
		DailyMaxLossDollars:      1000,
		DailyProfitTargetDollars: 2000,
		MaxRiskPerTradeDollars:   300,
		MaxOpenPositions:         3,
		DuplicateScope:           config.DuplicateScopeGlobal,
	}
}

func TestComputeDailyRiskState(t *testing.T) {
	t.Parallel()
	svc := NewRiskService()

	entries := []models.JournalEntry{
		{
			Symbol:             "AAPL",
			Status:             models.EntryStatusExited,
			Direction:          models.DirectionLong,
			RealizedPnlDollars: pnlPtr(600),
		},
		{
			Symbol:       "TSLA",
			Status:       models.EntryStatusOpen,
			Direction:    models.DirectionLong,
			EntryPrice:   100,
			CurrentPrice: 110,
			TotalQty:     10,
		},
		{
			Symbol: "NVDA",
			Status: models.EntryStatusPlanned,
		},
		{
			Symbol:             "DRAFT",
			Status:             models.EntryStatusOpen,
			IsDraft:            true,
			RealizedPnlDollars: pnlPtr(9999),
		},
	}

	state := svc.ComputeDailyRiskState(entries, testRiskConf(), nil)

	assert.Equal(t, 600.0, state.RealizedPnl)
	assert.Equal(t, 100.0, state.UnrealizedPnl)
	assert.Equal(t, 700.0, state.TotalPnl)
	// planned 也算活跃仓位，已离场和草稿不算
	assert.Equal(t, 2, state.OpenPositions)
	assert.False(t, state.DailyLossLimitBreached)
	assert.False(t, state.DailyProfitTargetHit)
}

func TestComputeDailyRiskStateLedgerOverride(t *testing.T) {
	t.Parallel()
	svc := NewRiskService()

	entries := []models.JournalEntry{
		{
			Symbol:             "AAPL",
			Status:             models.EntryStatusExited,
			Direction:          models.DirectionLong,
			RealizedPnlDollars: pnlPtr(800),
		},
	}

	// 台账是权威来源，覆盖日志推导值
	state := svc.ComputeDailyRiskState(entries, testRiskConf(), &RiskStateOptions{
		LedgerRealizedPnl: pnlPtr(1000),
	})
	assert.Equal(t, 1000.0, state.RealizedPnl)
}

func TestComputeDailyRiskStateLimits(t *testing.T) {
	t.Parallel()
	svc := NewRiskService()
	conf := testRiskConf()

	loss := svc.ComputeDailyRiskState([]models.JournalEntry{
		{Status: models.EntryStatusExited, Direction: models.DirectionLong, RealizedPnlDollars: pnlPtr(-1000)},
	}, conf, nil)
	assert.True(t, loss.DailyLossLimitBreached)

	profit := svc.ComputeDailyRiskState([]models.JournalEntry{
		{Status: models.EntryStatusExited, Direction: models.DirectionLong, RealizedPnlDollars: pnlPtr(2000)},
	}, conf, nil)
	assert.True(t, profit.DailyProfitTargetHit)
}

func TestComputeDailyRiskStateFallbackRecompute(t *testing.T) {
	t.Parallel()
	svc := NewRiskService()

	// RealizedPnlDollars 缺失时按均价回算，期权带合约乘数
	entries := []models.JournalEntry{
		{
			Symbol:     "AAPL",
			Status:     models.EntryStatusClosed,
			AssetClass: models.AssetClassOption,
			Direction:  models.DirectionLong,
			EntryPrice: 5,
			ExitPrice:  8,
			ExitedQty:  2,
		},
	}

	state := svc.ComputeDailyRiskState(entries, testRiskConf(), nil)
	assert.Equal(t, 600.0, state.RealizedPnl)
}

func TestCanOpenNewPositionVetoOrder(t *testing.T) {
	t.Parallel()
	svc := NewRiskService()
	conf := testRiskConf()

	tests := []struct {
		name    string
		input   AdmissionInput
		allowed bool
	}{
		{
			name: "clean state allows",
			input: AdmissionInput{
				Config:              conf,
				CurrentDailyPnl:     0,
				OpenPositions:       1,
				ProposedRiskDollars: 200,
			},
			allowed: true,
		},
		{
			name: "loss limit breached vetoes first",
			input: AdmissionInput{
				Config:                 conf,
				DailyLossLimitBreached: true,
				OpenPositions:          0,
				ProposedRiskDollars:    100,
			},
			allowed: false,
		},
		{
			name: "max open positions",
			input: AdmissionInput{
				Config:              conf,
				OpenPositions:       3,
				ProposedRiskDollars: 100,
			},
			allowed: false,
		},
		{
			name: "per trade risk cap",
			input: AdmissionInput{
				Config:              conf,
				OpenPositions:       0,
				ProposedRiskDollars: 301,
			},
			allowed: false,
		},
		{
			name: "worst case breaches daily limit",
			input: AdmissionInput{
				Config:              conf,
				CurrentDailyPnl:     -800,
				OpenPositions:       0,
				ProposedRiskDollars: 200,
			},
			allowed: false,
		},
		{
			name: "worst case just inside limit",
			input: AdmissionInput{
				Config:              conf,
				CurrentDailyPnl:     -800,
				OpenPositions:       0,
				ProposedRiskDollars: 199,
			},
			allowed: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			decision := svc.CanOpenNewPosition(tt.input)
			assert.Equal(t, tt.allowed, decision.Allowed)
			if !tt.allowed {
				assert.NotEmpty(t, decision.Reason)
			}
		})
	}
}

func TestIsDuplicateLivePosition(t *testing.T) {
	t.Parallel()
	svc := NewRiskService()

	entries := []models.JournalEntry{
		{Symbol: "AAPL", Status: models.EntryStatusOpen, Desk: models.DeskPremarketEquity},
		{Symbol: "TSLA", Status: models.EntryStatusExited, Desk: models.DeskPremarketEquity},
		{Symbol: "NVDA", Status: models.EntryStatusOpen, Desk: models.DeskPremarketEquity, IsDraft: true},
	}

	// global 范围：跨桌也算重复
	assert.True(t, svc.IsDuplicateLivePosition("AAPL", entries, config.DuplicateScopeGlobal, models.DeskOptions))

	// desk_only 范围：只看同桌
	assert.False(t, svc.IsDuplicateLivePosition("AAPL", entries, config.DuplicateScopeDeskOnly, models.DeskOptions))
	assert.True(t, svc.IsDuplicateLivePosition("AAPL", entries, config.DuplicateScopeDeskOnly, models.DeskPremarketEquity))

	// 已离场和草稿都不算
	assert.False(t, svc.IsDuplicateLivePosition("TSLA", entries, config.DuplicateScopeGlobal, models.DeskPremarketEquity))
	assert.False(t, svc.IsDuplicateLivePosition("NVDA", entries, config.DuplicateScopeGlobal, models.DeskPremarketEquity))
}

func TestRound2(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.1, round2(0.1+0.2-0.2))
	assert.Equal(t, 1234.57, round2(1234.5678))
	assert.Equal(t, -99.99, round2(-99.994))
}
