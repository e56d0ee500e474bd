package broker

import (
	"context"
	"sync"
	"time"
)

// ReplayBroker 回放券商（纸面模式）
// 成交和报价由外部预先注入，用于未配置真实券商时的本地运行和测试
type ReplayBroker struct {
	mu     sync.RWMutex
	fills  []Fill
	quotes map[string]*Quote
}

// NewReplayBroker 创建回放券商
func NewReplayBroker() *ReplayBroker {
	return &ReplayBroker{
		quotes: make(map[string]*Quote),
	}
}

var _ Broker = (*ReplayBroker)(nil)

// PushFills 注入待回放的成交记录
func (r *ReplayBroker) PushFills(fills ...Fill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fills = append(r.fills, fills...)
}

// SetQuote 注入标的报价
func (r *ReplayBroker) SetQuote(symbol string, last float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quotes[symbol] = &Quote{
		Symbol:   symbol,
		Last:     last,
		QuotedAt: time.Now(),
	}
}

// ListFills 返回指定时间之后的成交记录
func (r *ReplayBroker) ListFills(ctx context.Context, since time.Time) ([]Fill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Fill, 0, len(r.fills))
	for _, f := range r.fills {
		if f.FilledAt.Before(since) {
			continue
		}
		result = append(result, f)
	}
	return result, nil
}

// GetQuote 返回已注入的报价
func (r *ReplayBroker) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	quote, ok := r.quotes[symbol]
	if !ok {
		return nil, ErrQuoteNotFound
	}
	return quote, nil
}
