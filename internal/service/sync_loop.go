package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dushixiang/tally/internal/config"
	"github.com/dushixiang/tally/internal/telegram"
	"github.com/dushixiang/tally/pkg/broker"
	"github.com/dushixiang/tally/pkg/market"
	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SyncJobName 成交同步任务的锁名称
const SyncJobName = "broker-fill-sync"

// SkipReasonMarketClosed 因休市跳过本轮
const SkipReasonMarketClosed = "market closed"

// 同步任务默认参数
const (
	defaultSyncIntervalMinutes = 10
	defaultLockTTLSeconds      = 600
	defaultLookbackMinutes     = 120
)

// SyncLoop 成交同步调度器
// 定时拉取券商成交并驱动对账，跨进程并发完全由任务锁仲裁：
// 抢不到锁就跳过本轮，不排队不重试
type SyncLoop struct {
	conf             config.Config
	lockService      *LockService
	reconcileService *ReconcileService
	journalService   *JournalService
	ledgerService    *LedgerService
	riskService      *RiskService
	broker           broker.Broker
	tg               *telegram.Telegram
	logger           *zap.Logger

	startTime time.Time
	isRunning bool
	stopChan  chan struct{}
	cron      *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewSyncLoop 创建同步调度器
func NewSyncLoop(
	conf *config.Config,
	lockService *LockService,
	reconcileService *ReconcileService,
	journalService *JournalService,
	ledgerService *LedgerService,
	riskService *RiskService,
	brokerClient broker.Broker,
	tg *telegram.Telegram,
	logger *zap.Logger,
) *SyncLoop {
	c := *conf
	if c.Sync.IntervalMinutes <= 0 {
		c.Sync.IntervalMinutes = defaultSyncIntervalMinutes
	}
	if c.Sync.LockTTLSeconds <= 0 {
		c.Sync.LockTTLSeconds = defaultLockTTLSeconds
	}
	if c.Sync.LookbackMinutes <= 0 {
		c.Sync.LookbackMinutes = defaultLookbackMinutes
	}

	return &SyncLoop{
		conf:             c,
		lockService:      lockService,
		reconcileService: reconcileService,
		journalService:   journalService,
		ledgerService:    ledgerService,
		riskService:      riskService,
		broker:           brokerClient,
		tg:               tg,
		logger:           logger,
		startTime:        time.Now(),
		stopChan:         make(chan struct{}),
	}
}

// Start 启动同步循环
func (t *SyncLoop) Start(ctx context.Context) error {
	if t.isRunning {
		return fmt.Errorf("sync loop is already running")
	}

	t.isRunning = true
	t.startTime = time.Now()
	t.ctx, t.cancel = context.WithCancel(ctx)

	// 每 N 分钟的整点执行
	cronExpr := fmt.Sprintf("*/%d * * * *", t.conf.Sync.IntervalMinutes)

	t.logger.Info("sync loop started",
		zap.Int("interval_minutes", t.conf.Sync.IntervalMinutes),
		zap.Int("lock_ttl_seconds", t.conf.Sync.LockTTLSeconds),
		zap.String("cron_expression", cronExpr))

	t.cron = cron.New()

	_, err := t.cron.AddFunc(cronExpr, func() {
		if _, err := t.ExecuteCycle(context.Background(), false); err != nil {
			t.logger.Error("sync cycle failed", zap.Error(err))
		}
	})
	if err != nil {
		t.isRunning = false
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	t.cron.Start()

	// 启动后立即执行一次
	go func() {
		if _, err := t.ExecuteCycle(context.Background(), false); err != nil {
			t.logger.Error("first sync cycle failed", zap.Error(err))
		}
	}()

	select {
	case <-t.stopChan:
		t.logger.Info("sync loop stopped by user")
		return nil
	case <-ctx.Done():
		t.logger.Info("sync loop stopped by context")
		return ctx.Err()
	}
}

// Stop 停止同步循环
func (t *SyncLoop) Stop() {
	if !t.isRunning {
		return
	}

	t.logger.Info("stopping sync loop...")

	if t.cron != nil {
		ctx := t.cron.Stop()
		<-ctx.Done()
	}

	if t.cancel != nil {
		t.cancel()
	}

	t.isRunning = false
	close(t.stopChan)
	t.logger.Info("sync loop stopped")
}

// CycleResult 单轮执行结果
type CycleResult struct {
	Skipped    bool              `json:"skipped"`
	SkipReason string            `json:"skip_reason,omitempty"`
	Summary    *ReconcileSummary `json:"summary,omitempty"`
	RiskState  *DailyRiskState   `json:"risk_state,omitempty"`
}

// ExecuteCycle 执行一轮同步（4步流程）
// force 为 true 时跳过休市检查（手动触发用）
func (t *SyncLoop) ExecuteCycle(ctx context.Context, force bool) (*CycleResult, error) {
	cycleStart := time.Now()

	// ========== Step 1: 交易时段检查 ==========
	state := market.GetSessionState(cycleStart)
	if !force && !t.conf.Sync.RunOffHours && state.Session == market.SessionClosed {
		t.logger.Info("[STEP 1/4] Market closed, skipping cycle",
			zap.Bool("is_holiday", state.IsHoliday),
			zap.Time("next_open", state.NextOpen))
		return &CycleResult{Skipped: true, SkipReason: SkipReasonMarketClosed}, nil
	}

	// ========== Step 2: 获取任务锁 ==========
	ttl := time.Duration(t.conf.Sync.LockTTLSeconds) * time.Second
	acquire, err := t.lockService.Acquire(ctx, SyncJobName, ttl)
	if err != nil {
		return nil, fmt.Errorf("step 2 failed - acquire lock: %w", err)
	}
	if !acquire.Acquired {
		// 有其他运行在进行中，属于正常情况，跳过本轮
		t.logger.Info("[STEP 2/4] Lock held by another run, skipping cycle",
			zap.String("reason", acquire.Reason),
			zap.String("holder_run_id", acquire.HolderRunID))
		return &CycleResult{Skipped: true, SkipReason: acquire.Reason}, nil
	}

	t.logger.Info("========== SYNC CYCLE START ==========",
		zap.String("run_id", acquire.RunID),
		zap.String("session", string(state.Session)))

	result, runErr := t.runCycle(ctx, acquire.RunID)

	if err := t.lockService.Release(ctx, SyncJobName, acquire.RunID, runErr); err != nil {
		t.logger.Error("failed to release job lock", zap.Error(err))
	}

	t.logger.Info("========== SYNC CYCLE END ==========",
		zap.String("run_id", acquire.RunID),
		zap.Duration("duration", time.Since(cycleStart)))

	return result, runErr
}

// runCycle 持锁状态下的同步主体
func (t *SyncLoop) runCycle(ctx context.Context, runID string) (*CycleResult, error) {
	// 过期锁清理只是维护动作，失败不影响本轮
	if _, err := t.lockService.ExpireStaleLocks(ctx); err != nil {
		t.logger.Warn("failed to expire stale locks", zap.Error(err))
	}

	// ========== Step 3: 拉取成交并对账 ==========
	since := time.Now().Add(-time.Duration(t.conf.Sync.LookbackMinutes) * time.Minute)

	fills, err := t.broker.ListFills(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("step 3 failed - list fills: %w", err)
	}
	t.logger.Info("[STEP 3/4] Fills fetched",
		zap.Int("count", len(fills)),
		zap.Time("since", since))

	batchID := ulid.Make().String()
	summary, err := t.reconcileService.Reconcile(ctx, fills, batchID)
	if err != nil {
		return nil, fmt.Errorf("step 3 failed - reconcile: %w", err)
	}

	// ========== Step 4: 刷新标记价格并计算风控状态 ==========
	t.refreshMarks(ctx)

	riskState, err := t.computeRiskState(ctx)
	if err != nil {
		t.logger.Error("failed to compute risk state", zap.Error(err))
	} else {
		t.logger.Info("[STEP 4/4] Daily risk state",
			zap.Float64("realized_pnl", riskState.RealizedPnl),
			zap.Float64("unrealized_pnl", riskState.UnrealizedPnl),
			zap.Int("open_positions", riskState.OpenPositions),
			zap.Bool("loss_limit_breached", riskState.DailyLossLimitBreached))
	}

	t.notify(summary, riskState)

	return &CycleResult{Summary: summary, RiskState: riskState}, nil
}

// refreshMarks 用最新报价刷新持仓条目的标记价格
func (t *SyncLoop) refreshMarks(ctx context.Context) {
	entries, err := t.journalService.GetOpenEntries(ctx)
	if err != nil {
		t.logger.Error("failed to load open entries for mark refresh", zap.Error(err))
		return
	}

	for i := range entries {
		entry := &entries[i]
		if !entry.IsOpen() {
			continue
		}

		quote, err := t.broker.GetQuote(ctx, entry.Symbol)
		if err != nil {
			t.logger.Warn("failed to get quote",
				zap.String("symbol", entry.Symbol),
				zap.Error(err))
			continue
		}

		if err := t.journalService.RefreshMark(ctx, entry.ID, quote.Last); err != nil {
			t.logger.Warn("failed to refresh mark",
				zap.String("entry_id", entry.ID),
				zap.Error(err))
		}
	}
}

// computeRiskState 汇总当日风控状态，台账的已实现盈亏覆盖日志推导值
func (t *SyncLoop) computeRiskState(ctx context.Context) (*DailyRiskState, error) {
	now := time.Now()
	from, to := market.TradingDayBounds(now)

	entries, err := t.journalService.GetEntriesForRiskWindow(ctx, from, to)
	if err != nil {
		return nil, err
	}

	ledgerPnl, err := t.ledgerService.SumRealizedPnlForDate(ctx, now)
	if err != nil {
		return nil, err
	}

	state := t.riskService.ComputeDailyRiskState(entries, t.conf.Risk, &RiskStateOptions{
		LedgerRealizedPnl: &ledgerPnl,
	})
	return &state, nil
}

// notify 推送周期摘要，歧义反转单独告警
func (t *SyncLoop) notify(summary *ReconcileSummary, riskState *DailyRiskState) {
	if t.tg == nil || !t.conf.Telegram.Enabled {
		return
	}
	if summary == nil || (summary.Matched == 0 && summary.Ambiguous == 0 && summary.Failed == 0) {
		return
	}

	msg := fmt.Sprintf("*对账完成* 批次 `%s`\n匹配 %d / 平仓 %d / 部分离场 %d",
		summary.BatchID, summary.Matched, summary.Closed, summary.Partial)
	if summary.Ambiguous > 0 {
		msg += fmt.Sprintf("\n⚠️ *歧义反转 %d 笔，需要人工处理*", summary.Ambiguous)
	}
	if summary.Failed > 0 {
		msg += fmt.Sprintf("\n台账写入失败 %d 笔，下轮自动重试", summary.Failed)
	}
	if riskState != nil {
		msg += fmt.Sprintf("\n当日盈亏 %.2f（已实现 %.2f）", riskState.TotalPnl, riskState.RealizedPnl)
		if riskState.DailyLossLimitBreached {
			msg += "\n🛑 *已触及当日亏损上限*"
		}
	}

	if err := t.tg.Notify(t.conf.Telegram.ChatID, msg); err != nil {
		t.logger.Warn("failed to send telegram notification", zap.Error(err))
	}
}

// IsRunning 是否正在运行
func (t *SyncLoop) IsRunning() bool {
	return t.isRunning
}

// GetStatus 获取调度器状态
func (t *SyncLoop) GetStatus() map[string]interface{} {
	return map[string]interface{}{
		"is_running":       t.isRunning,
		"start_time":       t.startTime,
		"elapsed_hours":    time.Since(t.startTime).Hours(),
		"interval_minutes": t.conf.Sync.IntervalMinutes,
		"job_name":         SyncJobName,
	}
}
