package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dushixiang/tally/internal/models"
	"github.com/dushixiang/tally/internal/repo"
	"github.com/dushixiang/tally/pkg/market"
	"github.com/go-orz/orz"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LedgerService 已实现盈亏台账服务
// 台账只追加不更新，每个日志条目最多一行，写入幂等
type LedgerService struct {
	logger *zap.Logger

	*orz.Service
	*repo.LedgerRepo
}

// NewLedgerService 创建台账服务
func NewLedgerService(db *gorm.DB, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		logger:     logger,
		Service:    orz.NewService(db),
		LedgerRepo: repo.NewLedgerRepo(db),
	}
}

// LedgerWriteParams 台账写入参数
type LedgerWriteParams struct {
	EntryID      string
	Desk         models.Desk
	Symbol       string
	Direction    models.TradeDirection
	EntryAt      time.Time
	ExitAt       time.Time
	EntryPrice   float64
	ExitPrice    float64
	Quantity     float64
	RealizedPnl  float64
	RiskMultiple *float64
	BatchID      string
}

// Write 幂等写入一行台账
// 已存在时返回 written=false 且不修改任何数据，重试安全
// 存在性检查和插入不是原子的，真正的保证来自 entry_id 上的唯一约束，
// 并发写入输的一方拿到唯一冲突，同样按 written=false 处理
func (s *LedgerService) Write(ctx context.Context, params LedgerWriteParams) (bool, error) {
	exists, err := s.LedgerRepo.ExistsByEntryID(ctx, params.EntryID)
	if err != nil {
		return false, fmt.Errorf("failed to check ledger for entry %s: %w", params.EntryID, err)
	}
	if exists {
		return false, nil
	}

	entry := &models.LedgerEntry{
		ID:           ulid.Make().String(),
		EntryID:      params.EntryID,
		Desk:         params.Desk,
		Symbol:       params.Symbol,
		Direction:    params.Direction,
		EntryAt:      params.EntryAt,
		ExitAt:       params.ExitAt,
		EntryPrice:   params.EntryPrice,
		ExitPrice:    params.ExitPrice,
		Quantity:     params.Quantity,
		RealizedPnl:  round2(params.RealizedPnl),
		RiskMultiple: params.RiskMultiple,
		BatchID:      params.BatchID,
	}

	if err := s.LedgerRepo.Create(ctx, entry); err != nil {
		if isUniqueViolation(err) {
			s.logger.Info("ledger row already written by concurrent run",
				zap.String("entry_id", params.EntryID))
			return false, nil
		}
		return false, fmt.Errorf("failed to write ledger for entry %s: %w", params.EntryID, err)
	}

	s.logger.Info("ledger row written",
		zap.String("entry_id", params.EntryID),
		zap.String("symbol", params.Symbol),
		zap.Float64("realized_pnl", entry.RealizedPnl))

	return true, nil
}

// SumRealizedPnlForDate 汇总指定交易日的已实现盈亏
func (s *LedgerService) SumRealizedPnlForDate(ctx context.Context, day time.Time) (float64, error) {
	from, to := market.TradingDayBounds(day)

	entries, err := s.LedgerRepo.FindByExitBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to query ledger: %w", err)
	}

	total := 0.0
	for _, e := range entries {
		total += e.RealizedPnl
	}
	return round2(total), nil
}

// DailySummary 交易日汇总
type DailySummary struct {
	Date            string   `json:"date"`
	TradeCount      int      `json:"trade_count"`
	Wins            int      `json:"wins"`
	WinRate         float64  `json:"win_rate"`          // 盈利行占比
	TotalPnl        float64  `json:"total_pnl"`
	AvgRiskMultiple *float64 `json:"avg_risk_multiple"` // 仅统计有R倍数的行
	Symbols         []string `json:"symbols"`           // 当日交易过的标的（去重排序）
}

// GetDailySummary 计算指定交易日的台账汇总
func (s *LedgerService) GetDailySummary(ctx context.Context, day time.Time) (*DailySummary, error) {
	from, to := market.TradingDayBounds(day)

	entries, err := s.LedgerRepo.FindByExitBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}

	summary := &DailySummary{
		Date:    from.Format("2006-01-02"),
		Symbols: []string{},
	}

	symbolSet := make(map[string]struct{})
	riskMultipleSum := 0.0
	riskMultipleCount := 0

	for _, e := range entries {
		summary.TradeCount++
		summary.TotalPnl += e.RealizedPnl
		if e.IsWin() {
			summary.Wins++
		}
		if e.RiskMultiple != nil {
			riskMultipleSum += *e.RiskMultiple
			riskMultipleCount++
		}
		symbolSet[e.Symbol] = struct{}{}
	}

	summary.TotalPnl = round2(summary.TotalPnl)
	if summary.TradeCount > 0 {
		summary.WinRate = round2(float64(summary.Wins) / float64(summary.TradeCount))
	}
	if riskMultipleCount > 0 {
		avg := round2(riskMultipleSum / float64(riskMultipleCount))
		summary.AvgRiskMultiple = &avg
	}

	for symbol := range symbolSet {
		summary.Symbols = append(summary.Symbols, symbol)
	}
	sort.Strings(summary.Symbols)

	return summary, nil
}
