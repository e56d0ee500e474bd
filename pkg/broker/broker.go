package broker

import (
	"context"
	"errors"
	"time"
)

// ErrQuoteNotFound 报价不存在
var ErrQuoteNotFound = errors.New("broker: quote not found")

// ProviderReplay 回放券商的配置名
const ProviderReplay = "replay"

// Broker 券商接口，对账核心只依赖这个抽象
// 具体券商客户端在外部实现并注入
type Broker interface {
	// ListFills 拉取指定时间之后的成交记录（至少一次投递，可能包含重复）
	ListFills(ctx context.Context, since time.Time) ([]Fill, error)

	// GetQuote 获取单个标的的最新报价，用于刷新未实现盈亏
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
}
