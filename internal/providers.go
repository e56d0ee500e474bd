package internal

import (
	"net/http"
	"time"

	"github.com/dushixiang/tally/internal/config"
	"github.com/dushixiang/tally/internal/telegram"
	"github.com/dushixiang/tally/pkg/broker"
	"go.uber.org/zap"
)

const telegramHTTPTimeout = 10 * time.Second

// provideTelegram provides telegram instance
func provideTelegram(logger *zap.Logger, conf *config.Config) *telegram.Telegram {
	if !conf.Telegram.Enabled {
		return nil
	}

	httpClient := &http.Client{Timeout: telegramHTTPTimeout}

	tg, err := telegram.NewTelegram(logger, telegram.Settings{
		Token:  conf.Telegram.Token,
		Client: httpClient,
	})
	if err != nil {
		logger.Error("failed to init telegram", zap.Error(err))
		return nil
	}

	return tg
}

// provideBroker provides the fill source
// 未配置真实券商时退化为回放源，便于本地联调
func provideBroker(conf *config.Config, logger *zap.Logger) broker.Broker {
	switch conf.Broker.Provider {
	case "", broker.ProviderReplay:
		logger.Info("using replay broker, push fills via test hooks or keep the queue empty")
		return broker.NewReplayBroker()
	default:
		logger.Warn("unknown broker provider, falling back to replay",
			zap.String("provider", conf.Broker.Provider))
		return broker.NewReplayBroker()
	}
}
