package service

import (
	"fmt"
	"math"

	"github.com/dushixiang/tally/internal/config"
	"github.com/dushixiang/tally/internal/models"
)

// RiskService 风控引擎
// 纯函数集合，不做任何I/O，调用方负责取数并把评估失败当作拒绝处理（fail-closed）
type RiskService struct{}

// NewRiskService 创建风控引擎
func NewRiskService() *RiskService {
	return &RiskService{}
}

// RiskStateOptions 风控状态计算选项
type RiskStateOptions struct {
	LedgerRealizedPnl *float64 // 台账汇总的已实现盈亏，提供时覆盖日志推导值（台账是权威来源）
}

// DailyRiskState 当日风控状态
type DailyRiskState struct {
	RealizedPnl            float64 `json:"realized_pnl"`
	UnrealizedPnl          float64 `json:"unrealized_pnl"`
	TotalPnl               float64 `json:"total_pnl"`
	OpenPositions          int     `json:"open_positions"`
	DailyLossLimitBreached bool    `json:"daily_loss_limit_breached"`
	DailyProfitTargetHit   bool    `json:"daily_profit_target_hit"`
}

// ComputeDailyRiskState 计算当日风控状态
// entries 应包含当日离场的条目和全部活跃条目，草稿不参与风控
func (s *RiskService) ComputeDailyRiskState(entries []models.JournalEntry, conf config.RiskConf, opts *RiskStateOptions) DailyRiskState {
	state := DailyRiskState{}

	realized := 0.0
	for i := range entries {
		e := &entries[i]
		if e.IsDraft {
			continue
		}

		if e.IsFinalized() {
			realized += round2(realizedPnlOf(e))
			continue
		}

		if e.IsOpen() && e.CurrentPrice > 0 {
			state.UnrealizedPnl += round2(e.CalculateUnrealizedPnl())
		}
		if e.IsLive() {
			state.OpenPositions++
		}
	}

	// 台账值覆盖日志推导值
	if opts != nil && opts.LedgerRealizedPnl != nil {
		realized = *opts.LedgerRealizedPnl
	}

	state.RealizedPnl = round2(realized)
	state.UnrealizedPnl = round2(state.UnrealizedPnl)
	state.TotalPnl = round2(state.RealizedPnl + state.UnrealizedPnl)

	if conf.DailyMaxLossDollars > 0 && state.TotalPnl <= -conf.DailyMaxLossDollars {
		state.DailyLossLimitBreached = true
	}
	if conf.DailyProfitTargetDollars > 0 && state.TotalPnl >= conf.DailyProfitTargetDollars {
		state.DailyProfitTargetHit = true
	}

	return state
}

// realizedPnlOf 取条目的已实现盈亏，缺失时按均价回算
func realizedPnlOf(e *models.JournalEntry) float64 {
	if e.RealizedPnlDollars != nil {
		return *e.RealizedPnlDollars
	}
	if e.EntryPrice == 0 || e.ExitPrice == 0 {
		return 0
	}
	multiplier := 1.0
	if e.AssetClass == models.AssetClassOption {
		multiplier = models.OptionContractMultiplier
	}
	return e.Direction.Sign() * (e.ExitPrice - e.EntryPrice) * e.ExitedQty * multiplier
}

// AdmissionInput 开仓准入检查输入
type AdmissionInput struct {
	Config                 config.RiskConf
	CurrentDailyPnl        float64 // 当日总盈亏（已实现+未实现）
	OpenPositions          int
	ProposedRiskDollars    float64 // 拟开仓位的计划风险金额
	DailyLossLimitBreached bool
}

// AdmissionDecision 开仓准入结果
type AdmissionDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"` // 只返回第一条不通过的原因
}

// CanOpenNewPosition 检查是否允许开新仓，按固定顺序逐条否决
func (s *RiskService) CanOpenNewPosition(input AdmissionInput) AdmissionDecision {
	conf := input.Config

	if input.DailyLossLimitBreached {
		return AdmissionDecision{Allowed: false, Reason: "当日亏损已触及上限，禁止新开仓"}
	}

	if conf.MaxOpenPositions > 0 && input.OpenPositions >= conf.MaxOpenPositions {
		return AdmissionDecision{
			Allowed: false,
			Reason:  fmt.Sprintf("持仓数量已达上限（%d个）", conf.MaxOpenPositions),
		}
	}

	if conf.MaxRiskPerTradeDollars > 0 && input.ProposedRiskDollars > conf.MaxRiskPerTradeDollars {
		return AdmissionDecision{
			Allowed: false,
			Reason: fmt.Sprintf("单笔风险 %.2f 超过上限 %.2f",
				input.ProposedRiskDollars, conf.MaxRiskPerTradeDollars),
		}
	}

	// 最坏情况：该仓位全额止损后当日盈亏是否会突破亏损上限
	if conf.DailyMaxLossDollars > 0 {
		worstCase := round2(input.CurrentDailyPnl - input.ProposedRiskDollars)
		if worstCase <= -conf.DailyMaxLossDollars {
			return AdmissionDecision{
				Allowed: false,
				Reason: fmt.Sprintf("最坏情况下当日盈亏 %.2f 将突破亏损上限 %.2f",
					worstCase, conf.DailyMaxLossDollars),
			}
		}
	}

	return AdmissionDecision{Allowed: true}
}

// IsDuplicateLivePosition 指定标的是否已有活跃仓位
// global 范围下任何策略桌的活跃条目都算重复，desk_only 只看同桌
func (s *RiskService) IsDuplicateLivePosition(symbol string, entries []models.JournalEntry, scope string, desk models.Desk) bool {
	for i := range entries {
		e := &entries[i]
		if e.IsDraft || e.Symbol != symbol || !e.IsLive() {
			continue
		}
		if scope == config.DuplicateScopeDeskOnly && e.Desk != desk {
			continue
		}
		return true
	}
	return false
}

// round2 金额统一保留两位小数，避免浮点噪声导致阈值判断抖动
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
