package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dushixiang/tally/internal/models"
	"github.com/dushixiang/tally/internal/repo"
	"github.com/dushixiang/tally/pkg/broker"
	"github.com/go-orz/orz"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReconcileService 成交对账服务
// 把券商成交匹配到持仓中的日志条目，推进条目状态，完全离场时写入台账
// 成交按至少一次语义投递，匹配过的成交ID记录在条目上，重复投递是空操作
type ReconcileService struct {
	logger *zap.Logger

	*orz.Service

	journalRepo   *repo.JournalEntryRepo
	legRepo       *repo.OptionLegRepo
	ledgerService *LedgerService
}

// NewReconcileService 创建对账服务
func NewReconcileService(db *gorm.DB, ledgerService *LedgerService, logger *zap.Logger) *ReconcileService {
	return &ReconcileService{
		logger:        logger,
		Service:       orz.NewService(db),
		journalRepo:   repo.NewJournalEntryRepo(db),
		legRepo:       repo.NewOptionLegRepo(db),
		ledgerService: ledgerService,
	}
}

// ReconcileSummary 单次对账结果
type ReconcileSummary struct {
	BatchID   string `json:"batch_id"`
	Matched   int    `json:"matched"`   // 本次新匹配的成交数
	Closed    int    `json:"closed"`    // 完全离场并写入台账的条目数
	Partial   int    `json:"partial"`   // 部分离场的条目数
	Ambiguous int    `json:"ambiguous"` // 标记为歧义反转的条目数
	Failed    int    `json:"failed"`    // 台账写入失败待重试的条目数
	Unmatched int    `json:"unmatched"` // 未匹配到任何条目的成交数
}

// Reconcile 对一批券商成交执行对账
// 单个条目的台账写入失败只影响该条目，整批继续处理
func (s *ReconcileService) Reconcile(ctx context.Context, fills []broker.Fill, batchID string) (*ReconcileSummary, error) {
	if batchID == "" {
		batchID = ulid.Make().String()
	}

	summary := &ReconcileSummary{BatchID: batchID}

	// 批内去重（至少一次投递可能带重复）
	fills = dedupeFills(fills)
	if len(fills) == 0 {
		return summary, nil
	}

	entries, err := s.journalRepo.FindOpenEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load open entries: %w", err)
	}

	consumed := make(map[string]struct{}, len(fills))

	for i := range entries {
		entry := &entries[i]

		switch entry.AssetClass {
		case models.AssetClassOption:
			s.reconcileOptionEntry(ctx, entry, fills, consumed, batchID, summary)
		default:
			s.reconcileEquityEntry(ctx, entry, fills, consumed, batchID, summary)
		}
	}

	summary.Unmatched = len(fills) - len(consumed)

	s.logger.Info("reconcile batch completed",
		zap.String("batch_id", batchID),
		zap.Int("fills", len(fills)),
		zap.Int("matched", summary.Matched),
		zap.Int("closed", summary.Closed),
		zap.Int("partial", summary.Partial),
		zap.Int("ambiguous", summary.Ambiguous),
		zap.Int("failed", summary.Failed),
		zap.Int("unmatched", summary.Unmatched))

	return summary, nil
}

// reconcileEquityEntry 对账单个股票条目
func (s *ReconcileService) reconcileEquityEntry(ctx context.Context, entry *models.JournalEntry, fills []broker.Fill, consumed map[string]struct{}, batchID string, summary *ReconcileSummary) {
	entryFills, exitFills := partitionFills(fills, entry.Direction, consumed, func(f broker.Fill) bool {
		return f.AssetClass != broker.AssetClassOption &&
			f.Symbol == entry.Symbol &&
			!entry.HasMatchedFill(f.FillID)
	})

	if len(entryFills) == 0 && len(exitFills) == 0 {
		return
	}

	// 先在候选值上折算，非法状态不落库
	entryVWAP, totalQty := foldVWAP(entry.EntryPrice, entry.TotalQty, entryFills)
	exitVWAP, exitedQty := foldVWAP(entry.ExitPrice, entry.ExitedQty, exitFills)

	if exitedQty > totalQty {
		// 歧义反转：离场数量超过持仓数量，拒绝猜测，标记后等待人工处理
		s.markAmbiguous(ctx, entry, exitedQty, totalQty, summary)
		return
	}

	entry.EntryPrice = entryVWAP
	entry.TotalQty = totalQty
	entry.ExitPrice = exitVWAP
	entry.ExitedQty = exitedQty
	appendFillIDs(entry, entryFills, exitFills)
	advanceEntered(entry, entryFills)

	fullExit := totalQty > 0 && exitedQty == totalQty
	if fullExit {
		// 完全离场：先写台账，成功后才推进日志状态
		// 写入失败时本条目整体放弃，下一轮成交重放后重试（台账写入幂等）
		pnl := round2(entry.Direction.Sign() * (exitVWAP - entryVWAP) * totalQty)
		exitedAt := latestFillTime(exitFills)

		if !s.finalizeEntry(ctx, entry, pnl, totalQty, exitedAt, batchID, summary) {
			return
		}
	}

	if err := s.journalRepo.Save(ctx, entry); err != nil {
		s.logger.Error("failed to save journal entry",
			zap.String("entry_id", entry.ID),
			zap.Error(err))
		summary.Failed++
		return
	}

	// 计数只统计已成功落库的匹配，失败条目的成交下一轮重放
	markConsumed(consumed, entryFills, exitFills)
	summary.Matched += len(entryFills) + len(exitFills)
	if !fullExit && len(exitFills) > 0 {
		summary.Partial++
	}
}

// reconcileOptionEntry 对账多腿期权条目
// 每条腿独立匹配，所有腿都完全离场后整个条目才算平仓，盈亏为各腿之和（含合约乘数）
func (s *ReconcileService) reconcileOptionEntry(ctx context.Context, entry *models.JournalEntry, fills []broker.Fill, consumed map[string]struct{}, batchID string, summary *ReconcileSummary) {
	legs, err := s.legRepo.FindByEntryID(ctx, entry.ID)
	if err != nil {
		s.logger.Error("failed to load option legs",
			zap.String("entry_id", entry.ID),
			zap.Error(err))
		summary.Failed++
		return
	}
	if len(legs) == 0 {
		s.logger.Warn("option entry has no legs, skipping",
			zap.String("entry_id", entry.ID))
		return
	}

	type legFold struct {
		leg        *models.OptionLeg
		entryFills []broker.Fill
		exitFills  []broker.Fill
		entryVWAP  float64
		totalQty   float64
		exitVWAP   float64
		exitedQty  float64
	}

	folds := make([]legFold, 0, len(legs))
	anyNewFills := false

	for i := range legs {
		leg := &legs[i]
		key := leg.Key()

		entryFills, exitFills := partitionFills(fills, leg.Direction, consumed, func(f broker.Fill) bool {
			return f.AssetClass == broker.AssetClassOption &&
				models.OptionLegKey(f.Underlying, f.Expiration, f.Strike, models.OptionType(f.OptionType)) == key &&
				!leg.HasMatchedFill(f.FillID)
		})

		fold := legFold{leg: leg, entryFills: entryFills, exitFills: exitFills}
		fold.entryVWAP, fold.totalQty = foldVWAP(leg.EntryPrice, leg.TotalQty, entryFills)
		fold.exitVWAP, fold.exitedQty = foldVWAP(leg.ExitPrice, leg.ExitedQty, exitFills)

		if fold.exitedQty > fold.totalQty {
			// 任一腿歧义则整个条目歧义，所有折算全部放弃
			s.markAmbiguous(ctx, entry, fold.exitedQty, fold.totalQty, summary)
			return
		}

		if len(entryFills) > 0 || len(exitFills) > 0 {
			anyNewFills = true
		}
		folds = append(folds, fold)
	}

	if !anyNewFills {
		return
	}

	// 折算后的状态：是否所有腿都完全离场
	allExited := true
	hasExit := false
	totalPnl := 0.0
	totalQty := 0.0
	var exitedAt time.Time
	entryNotional, exitNotional := 0.0, 0.0

	for _, fold := range folds {
		if fold.totalQty <= 0 || fold.exitedQty != fold.totalQty {
			allExited = false
		}
		if len(fold.exitFills) > 0 {
			hasExit = true
		}
		totalPnl += fold.leg.Direction.Sign() * (fold.exitVWAP - fold.entryVWAP) * fold.exitedQty * models.OptionContractMultiplier
		totalQty += fold.totalQty
		entryNotional += fold.entryVWAP * fold.totalQty
		exitNotional += fold.exitVWAP * fold.exitedQty
		if t := latestFillTime(fold.exitFills); t.After(exitedAt) {
			exitedAt = t
		}
	}

	applyFolds := func() {
		for _, fold := range folds {
			fold.leg.EntryPrice = fold.entryVWAP
			fold.leg.TotalQty = fold.totalQty
			fold.leg.ExitPrice = fold.exitVWAP
			fold.leg.ExitedQty = fold.exitedQty
			for _, f := range fold.entryFills {
				fold.leg.EntryFillIDs = append(fold.leg.EntryFillIDs, f.FillID)
			}
			for _, f := range fold.exitFills {
				fold.leg.ExitFillIDs = append(fold.leg.ExitFillIDs, f.FillID)
			}
			appendFillIDs(entry, fold.entryFills, fold.exitFills)
			advanceEntered(entry, fold.entryFills)
		}

		// 条目级汇总字段：数量为各腿之和，价格为数量加权均值
		entry.TotalQty = totalQty
		if totalQty > 0 {
			entry.EntryPrice = round2(entryNotional / totalQty)
		}
	}

	if allExited {
		pnl := round2(totalPnl)
		applyFolds()
		entry.ExitedQty = totalQty
		if totalQty > 0 {
			entry.ExitPrice = round2(exitNotional / totalQty)
		}

		if !s.finalizeEntry(ctx, entry, pnl, totalQty, exitedAt, batchID, summary) {
			return
		}
	} else {
		applyFolds()
		exitedQty := 0.0
		for _, fold := range folds {
			exitedQty += fold.exitedQty
		}
		entry.ExitedQty = exitedQty
	}

	for _, fold := range folds {
		if err := s.legRepo.Save(ctx, fold.leg); err != nil {
			s.logger.Error("failed to save option leg",
				zap.String("entry_id", entry.ID),
				zap.String("leg_id", fold.leg.ID),
				zap.Error(err))
			summary.Failed++
			return
		}
	}

	if err := s.journalRepo.Save(ctx, entry); err != nil {
		s.logger.Error("failed to save journal entry",
			zap.String("entry_id", entry.ID),
			zap.Error(err))
		summary.Failed++
		return
	}

	// 计数只统计已成功落库的匹配，失败条目的成交下一轮重放
	for _, fold := range folds {
		markConsumed(consumed, fold.entryFills, fold.exitFills)
		summary.Matched += len(fold.entryFills) + len(fold.exitFills)
	}
	if !allExited && hasExit {
		summary.Partial++
	}
}

// finalizeEntry 写台账并推进条目到已离场状态
// 返回 false 表示台账写入失败，调用方不应保存该条目
func (s *ReconcileService) finalizeEntry(ctx context.Context, entry *models.JournalEntry, pnl, quantity float64, exitedAt time.Time, batchID string, summary *ReconcileSummary) bool {
	if exitedAt.IsZero() {
		exitedAt = time.Now()
	}

	var riskMultiple *float64
	if entry.RiskDollars > 0 {
		rm := round2(pnl / entry.RiskDollars)
		riskMultiple = &rm
	}

	entryAt := entry.CreatedAt
	if entry.EnteredAt != nil {
		entryAt = *entry.EnteredAt
	}

	_, err := s.ledgerService.Write(ctx, LedgerWriteParams{
		EntryID:      entry.ID,
		Desk:         entry.Desk,
		Symbol:       entry.Symbol,
		Direction:    entry.Direction,
		EntryAt:      entryAt,
		ExitAt:       exitedAt,
		EntryPrice:   entry.EntryPrice,
		ExitPrice:    entry.ExitPrice,
		Quantity:     quantity,
		RealizedPnl:  pnl,
		RiskMultiple: riskMultiple,
		BatchID:      batchID,
	})
	if err != nil {
		s.logger.Error("ledger write failed, entry left for retry",
			zap.String("entry_id", entry.ID),
			zap.Error(err))
		summary.Failed++
		return false
	}

	entry.Status = models.EntryStatusExited
	entry.RealizedPnlDollars = &pnl
	entry.ExitedAt = &exitedAt
	summary.Closed++

	s.logger.Info("position fully exited",
		zap.String("entry_id", entry.ID),
		zap.String("symbol", entry.Symbol),
		zap.Float64("realized_pnl", pnl))

	return true
}

// markAmbiguous 把条目标记为歧义反转，不落任何折算结果
func (s *ReconcileService) markAmbiguous(ctx context.Context, entry *models.JournalEntry, exitedQty, totalQty float64, summary *ReconcileSummary) {
	s.logger.Warn("ambiguous reversal detected, manual resolution required",
		zap.String("entry_id", entry.ID),
		zap.String("symbol", entry.Symbol),
		zap.Float64("exited_qty", exitedQty),
		zap.Float64("total_qty", totalQty))

	status := models.ReconcileStatusAmbiguousReversal
	entry.ReconcileStatus = &status
	summary.Ambiguous++

	if err := s.journalRepo.Save(ctx, entry); err != nil {
		s.logger.Error("failed to save ambiguous flag",
			zap.String("entry_id", entry.ID),
			zap.Error(err))
		summary.Failed++
	}
}

// partitionFills 把成交按条目方向分成入场侧和离场侧
// 多头的买入是入场，空头的卖出是入场，反向即离场
func partitionFills(fills []broker.Fill, direction models.TradeDirection, consumed map[string]struct{}, match func(broker.Fill) bool) (entryFills, exitFills []broker.Fill) {
	for _, f := range fills {
		if _, ok := consumed[f.FillID]; ok {
			continue
		}
		if !match(f) {
			continue
		}

		isEntry := (direction == models.DirectionLong && f.Side == broker.FillSideBuy) ||
			(direction == models.DirectionShort && f.Side == broker.FillSideSell)
		if isEntry {
			entryFills = append(entryFills, f)
		} else {
			exitFills = append(exitFills, f)
		}
	}
	return entryFills, exitFills
}

// foldVWAP 把新成交折入成交量加权均价
// new_vwap = (old_vwap*old_qty + Σ price_i*qty_i) / (old_qty + Σ qty_i)
func foldVWAP(vwap, qty float64, fills []broker.Fill) (float64, float64) {
	if len(fills) == 0 {
		return vwap, qty
	}

	notional := vwap * qty
	total := qty
	for _, f := range fills {
		notional += f.Price * f.Quantity
		total += f.Quantity
	}
	if total == 0 {
		return vwap, qty
	}
	return notional / total, total
}

func dedupeFills(fills []broker.Fill) []broker.Fill {
	seen := make(map[string]struct{}, len(fills))
	result := make([]broker.Fill, 0, len(fills))
	for _, f := range fills {
		if _, ok := seen[f.FillID]; ok {
			continue
		}
		seen[f.FillID] = struct{}{}
		result = append(result, f)
	}
	return result
}

func markConsumed(consumed map[string]struct{}, groups ...[]broker.Fill) {
	for _, fills := range groups {
		for _, f := range fills {
			consumed[f.FillID] = struct{}{}
		}
	}
}

func appendFillIDs(entry *models.JournalEntry, entryFills, exitFills []broker.Fill) {
	for _, f := range entryFills {
		entry.EntryFillIDs = append(entry.EntryFillIDs, f.FillID)
	}
	for _, f := range exitFills {
		entry.ExitFillIDs = append(entry.ExitFillIDs, f.FillID)
	}
}

// advanceEntered 计划中的条目收到入场成交后推进到已入场（状态只前进不回退）
func advanceEntered(entry *models.JournalEntry, entryFills []broker.Fill) {
	if len(entryFills) == 0 {
		return
	}
	if entry.Status == models.EntryStatusPlanned {
		entry.Status = models.EntryStatusEntered
	}
	if entry.EnteredAt == nil {
		t := earliestFillTime(entryFills)
		if t.IsZero() {
			t = time.Now()
		}
		entry.EnteredAt = &t
	}
}

func latestFillTime(fills []broker.Fill) time.Time {
	var latest time.Time
	for _, f := range fills {
		if f.FilledAt.After(latest) {
			latest = f.FilledAt
		}
	}
	return latest
}

func earliestFillTime(fills []broker.Fill) time.Time {
	var earliest time.Time
	for _, f := range fills {
		if earliest.IsZero() || f.FilledAt.Before(earliest) {
			earliest = f.FilledAt
		}
	}
	return earliest
}
