package broker

import "time"

// 通用券商类型定义，独立于任何特定券商
// 这样可以方便地支持多个券商（盈透、嘉信、Tradier等）

// FillSide 成交方向
type FillSide string

const (
	FillSideBuy  FillSide = "buy"
	FillSideSell FillSide = "sell"
)

// AssetClass 资产类别
type AssetClass string

const (
	AssetClassEquity AssetClass = "equity"
	AssetClassOption AssetClass = "option"
)

// OptionType 期权类型
type OptionType string

const (
	OptionTypeCall OptionType = "call"
	OptionTypePut  OptionType = "put"
)

// Fill 券商成交记录
// 按至少一次语义投递，FillID 用于去重，接收后不可变
type Fill struct {
	FillID     string     `json:"fill_id"`     // 成交唯一ID（去重键）
	OrderID    string     `json:"order_id"`    // 所属订单ID
	Symbol     string     `json:"symbol"`      // 交易标的
	Side       FillSide   `json:"side"`        // buy/sell
	Quantity   float64    `json:"quantity"`    // 成交数量
	Price      float64    `json:"price"`       // 成交价格
	FilledAt   time.Time  `json:"filled_at"`   // 成交时间
	AssetClass AssetClass `json:"asset_class"` // 资产类别

	// 期权合约要素（仅期权成交有值）
	Underlying string     `json:"underlying,omitempty"` // 标的代码
	Expiration string     `json:"expiration,omitempty"` // 到期日 YYYY-MM-DD
	Strike     float64    `json:"strike,omitempty"`     // 行权价
	OptionType OptionType `json:"option_type,omitempty"`
}

// Quote 实时报价
type Quote struct {
	Symbol   string    `json:"symbol"`
	Last     float64   `json:"last"`
	QuotedAt time.Time `json:"quoted_at"`
}

// String 方法用于日志输出
func (s FillSide) String() string {
	return string(s)
}

func (a AssetClass) String() string {
	return string(a)
}

func (o OptionType) String() string {
	return string(o)
}
