package models

import (
	"time"
)

// LedgerEntry 已实现盈亏台账
// 追加写入，每个日志条目最多一行，永不更新，是已实现盈亏的唯一事实来源
type LedgerEntry struct {
	ID           string         `gorm:"primaryKey;type:varchar(26)" json:"id"`
	EntryID      string         `gorm:"type:varchar(26);not null;uniqueIndex" json:"entry_id"` // 对应的日志条目ID（唯一约束保证幂等）
	Desk         Desk           `gorm:"type:varchar(20);not null;index" json:"desk"`           // 所属策略桌
	Symbol       string         `gorm:"type:varchar(20);not null;index" json:"symbol"`         // 交易标的
	Direction    TradeDirection `gorm:"type:varchar(10);not null" json:"trade_direction"`      // 交易方向
	EntryAt      time.Time      `json:"entry_at"`                                              // 入场时间
	ExitAt       time.Time      `gorm:"not null;index" json:"exit_at"`                         // 离场时间
	EntryPrice   float64        `gorm:"type:decimal(20,8);not null" json:"entry_price"`        // 入场均价
	ExitPrice    float64        `gorm:"type:decimal(20,8);not null" json:"exit_price"`         // 离场均价
	Quantity     float64        `gorm:"type:decimal(20,8);not null" json:"quantity"`           // 数量
	RealizedPnl  float64        `gorm:"type:decimal(20,8);not null" json:"realized_pnl"`       // 已实现盈亏（美元）
	RiskMultiple *float64       `gorm:"type:decimal(10,4)" json:"risk_multiple"`               // R倍数（计划风险已知时）
	BatchID      string         `gorm:"type:varchar(26);index" json:"batch_id"`                // 对账批次ID，用于追溯
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (*LedgerEntry) TableName() string {
	return "trade_ledger"
}

// IsWin 是否盈利
func (l *LedgerEntry) IsWin() bool {
	return l.RealizedPnl > 0
}
