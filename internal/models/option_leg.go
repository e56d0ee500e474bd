package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OptionContractMultiplier 美式股票期权合约乘数
const OptionContractMultiplier = 100.0

// OptionType 期权类型
type OptionType string

const (
	OptionTypeCall OptionType = "call"
	OptionTypePut  OptionType = "put"
)

// OptionLeg 期权组合腿
// 每条腿独立匹配成交，整个条目只有在所有腿都完全离场后才算平仓
type OptionLeg struct {
	ID           string                      `gorm:"primaryKey;type:varchar(26)" json:"id"`
	EntryID      string                      `gorm:"type:varchar(26);not null;index" json:"entry_id"` // 所属日志条目ID
	Underlying   string                      `gorm:"type:varchar(20);not null" json:"underlying"`     // 标的代码
	Expiration   string                      `gorm:"type:varchar(10);not null" json:"expiration"`     // 到期日 YYYY-MM-DD
	Strike       float64                     `gorm:"type:decimal(20,8);not null" json:"strike"`       // 行权价
	OptionType   OptionType                  `gorm:"type:varchar(4);not null" json:"option_type"`     // call/put
	Direction    TradeDirection              `gorm:"type:varchar(10);not null" json:"direction"`      // 该腿的方向
	EntryPrice   float64                     `gorm:"type:decimal(20,8)" json:"entry_price"`           // 入场均价
	ExitPrice    float64                     `gorm:"type:decimal(20,8)" json:"exit_price"`            // 离场均价
	TotalQty     float64                     `gorm:"type:decimal(20,8)" json:"total_qty"`             // 合约总数量
	ExitedQty    float64                     `gorm:"type:decimal(20,8)" json:"exited_qty"`            // 已离场数量
	EntryFillIDs datatypes.JSONSlice[string] `gorm:"type:json" json:"entry_fill_ids"`                 // 已匹配的入场成交ID
	ExitFillIDs  datatypes.JSONSlice[string] `gorm:"type:json" json:"exit_fill_ids"`                  // 已匹配的离场成交ID
	CreatedAt    time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt              `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName 指定表名
func (*OptionLeg) TableName() string {
	return "journal_entry_legs"
}

// Key 腿的唯一标识：标的+到期日+行权价+类型
func (l *OptionLeg) Key() string {
	return OptionLegKey(l.Underlying, l.Expiration, l.Strike, l.OptionType)
}

// OptionLegKey 构造腿的分组键
func OptionLegKey(underlying, expiration string, strike float64, optionType OptionType) string {
	return fmt.Sprintf("%s|%s|%.4f|%s", underlying, expiration, strike, optionType)
}

// IsFullyExited 该腿是否完全离场
func (l *OptionLeg) IsFullyExited() bool {
	return l.TotalQty > 0 && l.ExitedQty == l.TotalQty
}

// HasMatchedFill 指定成交ID是否已经匹配过
func (l *OptionLeg) HasMatchedFill(fillID string) bool {
	for _, id := range l.EntryFillIDs {
		if id == fillID {
			return true
		}
	}
	for _, id := range l.ExitFillIDs {
		if id == fillID {
			return true
		}
	}
	return false
}

// RealizedPnl 该腿的已实现盈亏（含合约乘数）
func (l *OptionLeg) RealizedPnl() float64 {
	return l.Direction.Sign() * (l.ExitPrice - l.EntryPrice) * l.ExitedQty * OptionContractMultiplier
}
