//go:build wireinject
// +build wireinject

package internal

import (
	"github.com/google/wire"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dushixiang/tally/internal/config"
	"github.com/dushixiang/tally/internal/handler"
	"github.com/dushixiang/tally/internal/service"
)

var (
	handlerSet = wire.NewSet(
		handler.NewDeskHandler,
	)

	reconcileSet = wire.NewSet(
		provideBroker,
		service.NewLockService,
		service.NewJournalService,
		service.NewLedgerService,
		service.NewReconcileService,
		service.NewRiskService,
		service.NewSyncLoop,
	)
)

// InitializeApp 初始化应用
func InitializeApp(logger *zap.Logger, db *gorm.DB, conf *config.Config) (*AppComponents, error) {
	wire.Build(
		handlerSet,
		reconcileSet,
		provideTelegram,
		wire.Struct(new(AppComponents), "*"),
	)
	return nil, nil
}
