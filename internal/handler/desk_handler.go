package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dushixiang/tally/internal/config"
	"github.com/dushixiang/tally/internal/models"
	"github.com/dushixiang/tally/internal/service"
	"github.com/dushixiang/tally/internal/xe"
	"github.com/dushixiang/tally/pkg/market"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DeskHandler 对账与风控HTTP处理器
type DeskHandler struct {
	syncLoop       *service.SyncLoop
	journalService *service.JournalService
	ledgerService  *service.LedgerService
	riskService    *service.RiskService
	lockService    *service.LockService
	conf           *config.Config
	logger         *zap.Logger
}

// NewDeskHandler 创建处理器
func NewDeskHandler(
	syncLoop *service.SyncLoop,
	journalService *service.JournalService,
	ledgerService *service.LedgerService,
	riskService *service.RiskService,
	lockService *service.LockService,
	conf *config.Config,
	logger *zap.Logger,
) *DeskHandler {
	return &DeskHandler{
		syncLoop:       syncLoop,
		journalService: journalService,
		ledgerService:  ledgerService,
		riskService:    riskService,
		lockService:    lockService,
		conf:           conf,
		logger:         logger,
	}
}

// GetStatus 获取系统状态
// GET /api/desk/status
func (h *DeskHandler) GetStatus(c echo.Context) error {
	ctx := c.Request().Context()
	now := time.Now()

	sessionState := market.GetSessionState(now)

	lockData := map[string]interface{}{"held": false}
	if lock, err := h.lockService.GetLock(ctx, service.SyncJobName); err != nil {
		h.logger.Error("failed to get job lock", zap.Error(err))
	} else if lock != nil {
		lockData = map[string]interface{}{
			"held":        lock.IsActive(now),
			"run_id":      lock.RunID,
			"acquired_at": lock.AcquiredAt,
			"expires_at":  lock.ExpiresAt,
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"loop": h.syncLoop.GetStatus(),
		"session": map[string]interface{}{
			"session":      sessionState.Session,
			"is_regular":   sessionState.IsRegularSession,
			"is_extended":  sessionState.IsExtendedSession,
			"is_holiday":   sessionState.IsHoliday,
			"holiday_name": sessionState.HolidayName,
			"next_open":    sessionState.NextOpen,
			"next_close":   sessionState.NextClose,
		},
		"lock": lockData,
	})
}

// GetRiskState 获取当日风控状态
// GET /api/risk/state
func (h *DeskHandler) GetRiskState(c echo.Context) error {
	ctx := c.Request().Context()

	state, err := h.assembleRiskState(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, state)
}

// AdmissionRequest 开仓准入请求
type AdmissionRequest struct {
	Symbol              string  `json:"symbol" validate:"required"`
	Desk                string  `json:"desk"`
	ProposedRiskDollars float64 `json:"proposed_risk_dollars" validate:"gte=0"`
}

// CheckAdmission 开仓准入检查
// POST /api/risk/admission
// 任何一步评估失败都按拒绝处理，绝不在状态不明时放行
func (h *DeskHandler) CheckAdmission(c echo.Context) error {
	var req AdmissionRequest
	if err := c.Bind(&req); err != nil {
		return xe.ErrInvalidParams
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()

	state, err := h.assembleRiskState(ctx)
	if err != nil {
		h.logger.Error("admission evaluation failed, denying by default",
			zap.String("symbol", req.Symbol),
			zap.Error(err))
		return c.JSON(http.StatusOK, service.AdmissionDecision{
			Allowed: false,
			Reason:  "风控状态评估失败，默认拒绝",
		})
	}

	now := time.Now()
	from, to := market.TradingDayBounds(now)
	entries, err := h.journalService.GetEntriesForRiskWindow(ctx, from, to)
	if err != nil {
		h.logger.Error("admission evaluation failed, denying by default",
			zap.String("symbol", req.Symbol),
			zap.Error(err))
		return c.JSON(http.StatusOK, service.AdmissionDecision{
			Allowed: false,
			Reason:  "风控状态评估失败，默认拒绝",
		})
	}

	decision := h.riskService.CanOpenNewPosition(service.AdmissionInput{
		Config:                 h.conf.Risk,
		CurrentDailyPnl:        state.TotalPnl,
		OpenPositions:          state.OpenPositions,
		ProposedRiskDollars:    req.ProposedRiskDollars,
		DailyLossLimitBreached: state.DailyLossLimitBreached,
	})

	if decision.Allowed {
		if dup := h.riskService.IsDuplicateLivePosition(req.Symbol, entries, h.conf.Risk.DuplicateScope, models.Desk(req.Desk)); dup {
			decision = service.AdmissionDecision{
				Allowed: false,
				Reason:  "已持有相同标的的活跃仓位",
			}
		}
	}

	h.logger.Info("admission decision",
		zap.String("symbol", req.Symbol),
		zap.Bool("allowed", decision.Allowed),
		zap.String("reason", decision.Reason))

	return c.JSON(http.StatusOK, decision)
}

// GetLedgerSummary 获取某交易日的台账汇总
// GET /api/ledger/summary?date=2026-08-21
func (h *DeskHandler) GetLedgerSummary(c echo.Context) error {
	ctx := c.Request().Context()

	day := time.Now()
	if d := c.QueryParam("date"); d != "" {
		parsed, err := time.ParseInLocation("2006-01-02", d, market.Eastern())
		if err != nil {
			return xe.ErrInvalidParams
		}
		day = parsed
	}

	summary, err := h.ledgerService.GetDailySummary(ctx, day)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, summary)
}

// GetJournalEntry 获取单个日志条目及其期权腿
// GET /api/journal/entries/:id
func (h *DeskHandler) GetJournalEntry(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	entry, err := h.journalService.GetEntry(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return xe.ErrEntryNotFound
		}
		return err
	}

	legs, err := h.journalService.GetLegs(ctx, entry.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"entry": entry,
		"legs":  legs,
	})
}

// RunSync 手动触发一轮同步
// POST /api/sync/run?force=true
// 默认仍尊重休市检查，force=true 时跳过
func (h *DeskHandler) RunSync(c echo.Context) error {
	ctx := c.Request().Context()
	force := cast.ToBool(c.QueryParam("force"))

	result, err := h.syncLoop.ExecuteCycle(ctx, force)
	if err != nil {
		return err
	}
	if result.Skipped {
		if result.SkipReason == service.SkipReasonMarketClosed {
			return xe.ErrMarketClosed
		}
		return xe.ErrSyncAlreadyRunning
	}

	return c.JSON(http.StatusOK, result)
}

// assembleRiskState 拼装当日风控状态，台账的已实现盈亏覆盖日志推导值
func (h *DeskHandler) assembleRiskState(ctx context.Context) (*service.DailyRiskState, error) {
	now := time.Now()
	from, to := market.TradingDayBounds(now)

	entries, err := h.journalService.GetEntriesForRiskWindow(ctx, from, to)
	if err != nil {
		return nil, err
	}

	ledgerPnl, err := h.ledgerService.SumRealizedPnlForDate(ctx, now)
	if err != nil {
		return nil, err
	}

	state := h.riskService.ComputeDailyRiskState(entries, h.conf.Risk, &service.RiskStateOptions{
		LedgerRealizedPnl: &ledgerPnl,
	})
	return &state, nil
}

// RegisterRoutes 注册路由
func (h *DeskHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/desk/status", h.GetStatus)

	risk := g.Group("/risk")
	risk.GET("/state", h.GetRiskState)
	risk.POST("/admission", h.CheckAdmission)

	g.GET("/journal/entries/:id", h.GetJournalEntry)
	g.GET("/ledger/summary", h.GetLedgerSummary)
	g.POST("/sync/run", h.RunSync)
}
