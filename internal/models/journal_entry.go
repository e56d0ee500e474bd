package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EntryStatus 日志条目生命周期状态
type EntryStatus string

const (
	EntryStatusPlanned EntryStatus = "planned" // 计划中
	EntryStatusEntered EntryStatus = "entered" // 已入场
	EntryStatusOpen    EntryStatus = "open"    // 持仓中
	EntryStatusExited  EntryStatus = "exited"  // 已离场
	EntryStatusClosed  EntryStatus = "closed"  // 已归档
)

// TradeDirection 交易方向
type TradeDirection string

const (
	DirectionLong  TradeDirection = "long"
	DirectionShort TradeDirection = "short"
)

// Sign 多头为+1，空头为-1，用于盈亏计算
func (d TradeDirection) Sign() float64 {
	if d == DirectionShort {
		return -1
	}
	return 1
}

// AssetClass 资产类别
type AssetClass string

const (
	AssetClassEquity AssetClass = "equity" // 股票
	AssetClassOption AssetClass = "option" // 期权
)

// Desk 仓位池标签，用于区分不同策略桌
type Desk string

const (
	DeskPremarketEquity Desk = "premarket_equity" // 盘前股票
	DeskOptions         Desk = "options"          // 期权
)

// ReconcileStatusAmbiguousReversal 离场数量超过持仓数量，无法自动对账，需人工处理
const ReconcileStatusAmbiguousReversal = "ambiguous_reversal"

// JournalEntry 交易日志条目
// 对账核心只推进状态和成交关联字段，条目本身由日志子系统创建
type JournalEntry struct {
	ID                 string                      `gorm:"primaryKey;type:varchar(26)" json:"id"`
	Symbol             string                      `gorm:"type:varchar(20);not null;index" json:"symbol"`       // 交易标的
	Desk               Desk                        `gorm:"type:varchar(20);not null;index" json:"desk"`         // 所属策略桌
	AssetClass         AssetClass                  `gorm:"type:varchar(10);not null" json:"asset_class"`        // 资产类别
	Direction          TradeDirection              `gorm:"type:varchar(10);not null" json:"trade_direction"`    // 交易方向
	Status             EntryStatus                 `gorm:"type:varchar(10);not null;index" json:"status"`       // 生命周期状态（只前进不回退）
	EntryPrice         float64                     `gorm:"type:decimal(20,8)" json:"entry_price"`               // 入场均价（成交量加权）
	ExitPrice          float64                     `gorm:"type:decimal(20,8)" json:"exit_price"`                // 离场均价（成交量加权）
	TotalQty           float64                     `gorm:"type:decimal(20,8)" json:"total_qty"`                 // 入场总数量
	ExitedQty          float64                     `gorm:"type:decimal(20,8)" json:"exited_qty"`                // 已离场数量（不会超过入场总量）
	EntryFillIDs       datatypes.JSONSlice[string] `gorm:"type:json" json:"entry_fill_ids"`                     // 已匹配的入场成交ID
	ExitFillIDs        datatypes.JSONSlice[string] `gorm:"type:json" json:"exit_fill_ids"`                      // 已匹配的离场成交ID
	ReconcileStatus    *string                     `gorm:"type:varchar(30)" json:"reconcile_status"`            // 对账异常标记
	RealizedPnlDollars *float64                    `gorm:"type:decimal(20,8)" json:"realized_pnl_dollars"`      // 已实现盈亏（仅完全离场时写入）
	RiskDollars        float64                     `gorm:"type:decimal(20,8)" json:"risk_dollars"`              // 计划风险金额，用于R倍数
	CurrentPrice       float64                     `gorm:"type:decimal(20,8)" json:"current_price"`             // 最新标记价格
	IsDraft            bool                        `gorm:"not null;default:false;index" json:"is_draft"`        // 草稿对风控不可见
	EnteredAt          *time.Time                  `json:"entered_at,omitempty"`                                // 入场时间
	ExitedAt           *time.Time                  `json:"exited_at,omitempty"`                                 // 离场时间
	CreatedAt          time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt              `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName 指定表名
func (*JournalEntry) TableName() string {
	return "journal_entries"
}

// IsLive 是否是活跃仓位（计划中或持仓中）
func (e *JournalEntry) IsLive() bool {
	switch e.Status {
	case EntryStatusPlanned, EntryStatusEntered, EntryStatusOpen:
		return true
	}
	return false
}

// IsOpen 是否已有实际持仓
func (e *JournalEntry) IsOpen() bool {
	return e.Status == EntryStatusEntered || e.Status == EntryStatusOpen
}

// IsFinalized 是否已完全离场
func (e *JournalEntry) IsFinalized() bool {
	return e.Status == EntryStatusExited || e.Status == EntryStatusClosed
}

// HasMatchedFill 指定成交ID是否已经匹配过
func (e *JournalEntry) HasMatchedFill(fillID string) bool {
	for _, id := range e.EntryFillIDs {
		if id == fillID {
			return true
		}
	}
	for _, id := range e.ExitFillIDs {
		if id == fillID {
			return true
		}
	}
	return false
}

// CalculateUnrealizedPnl 按标记价格计算未实现盈亏
func (e *JournalEntry) CalculateUnrealizedPnl() float64 {
	if e.CurrentPrice == 0 || e.EntryPrice == 0 {
		return 0
	}
	remaining := e.TotalQty - e.ExitedQty
	if remaining <= 0 {
		return 0
	}
	multiplier := 1.0
	if e.AssetClass == AssetClassOption {
		multiplier = OptionContractMultiplier
	}
	return e.Direction.Sign() * (e.CurrentPrice - e.EntryPrice) * remaining * multiplier
}
