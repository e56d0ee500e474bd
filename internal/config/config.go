package config

type Config struct {
	Risk     RiskConf     `json:"risk"`
	Sync     SyncConf     `json:"sync"`
	Broker   BrokerConf   `json:"broker"`
	Telegram TelegramConf `json:"telegram"`
}

// RiskConf 风控参数
type RiskConf struct {
	DailyMaxLossDollars      float64 `json:"daily_max_loss_dollars"`      // 单日最大亏损（美元，正数）
	DailyProfitTargetDollars float64 `json:"daily_profit_target_dollars"` // 单日止盈目标（美元）
	MaxRiskPerTradeDollars   float64 `json:"max_risk_per_trade_dollars"`  // 单笔最大风险（美元）
	MaxOpenPositions         int     `json:"max_open_positions"`          // 最大同时持仓数
	DuplicateScope           string  `json:"duplicate_scope"`             // 重复仓位检查范围：global / desk_only
}

// SyncConf 成交同步任务配置
type SyncConf struct {
	Enabled         bool `json:"enabled"`          // 是否启用定时同步
	IntervalMinutes int  `json:"interval_minutes"` // 同步周期（分钟），默认10
	LockTTLSeconds  int  `json:"lock_ttl_seconds"` // 任务锁TTL（秒），默认600
	LookbackMinutes int  `json:"lookback_minutes"` // 成交拉取回看窗口（分钟），默认120
	RunOffHours     bool `json:"run_off_hours"`    // 休市时段是否也执行
}

// BrokerConf 券商接入配置
type BrokerConf struct {
	Provider  string `json:"provider"` // 券商标识，空或 replay 时使用回放模式
	APIKey    string `json:"api_key"`
	Secret    string `json:"secret"`
	BaseURL   string `json:"base_url"`
	AccountID string `json:"account_id"`
}

type TelegramConf struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  string `json:"chat_id"`
}

// 重复仓位检查范围
const (
	DuplicateScopeGlobal   = "global"
	DuplicateScopeDeskOnly = "desk_only"
)
