package internal

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dushixiang/tally/internal/config"
	"github.com/dushixiang/tally/internal/handler"
	"github.com/dushixiang/tally/internal/models"
	"github.com/dushixiang/tally/internal/service"
	"github.com/dushixiang/tally/internal/telegram"
	"github.com/dushixiang/tally/pkg/nostd"
	"github.com/go-orz/orz"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func Run(configPath string) error {
	app := NewTallyApp()

	framework, err := orz.NewFramework(
		orz.WithConfig(configPath),
		orz.WithLoggerFromConfig(),
		orz.WithDatabase(),
		orz.WithHTTP(),
		orz.WithApplication(app),
	)
	if err != nil {
		return err
	}

	return framework.Run()
}

func NewTallyApp() orz.Application {
	return &TallyApp{}
}

var _ orz.Application = (*TallyApp)(nil)

type AppComponents struct {
	DeskHandler *handler.DeskHandler

	// Reconciliation services
	SyncLoop         *service.SyncLoop
	LockService      *service.LockService
	JournalService   *service.JournalService
	LedgerService    *service.LedgerService
	ReconcileService *service.ReconcileService
	RiskService      *service.RiskService

	tg *telegram.Telegram
}

type TallyApp struct {
	components *AppComponents
	conf       *config.Config
}

// GetComponents 获取应用组件
func (r *TallyApp) GetComponents() *AppComponents {
	return r.components
}

func (r *TallyApp) Configure(app *orz.App) error {
	logger := app.Logger()
	e := app.GetEcho()
	db := app.GetDatabase()

	var conf config.Config
	err := app.GetConfig().App.Unmarshal(&conf)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %v", err)
	}

	components, err := InitializeApp(logger, db, &conf)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %v", err)
	}
	r.components = components
	r.conf = &conf

	if err := db.AutoMigrate(
		models.JournalEntry{}, models.OptionLeg{}, models.LedgerEntry{}, models.JobLock{},
	); err != nil {
		logger.Fatal("database auto migrate failed", zap.Error(err))
	}

	if err := r.Init(logger); err != nil {
		logger.Fatal("app init failed", zap.Error(err))
	}

	e.HidePort = true
	e.HideBanner = true

	e.Use(middleware.Gzip())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		Skipper:      middleware.DefaultSkipper,
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			sugar := logger.Sugar()
			sugar.Error(fmt.Sprintf("[PANIC RECOVER] %v %s\n", err, stack))
			return err
		},
	}))
	e.Use(WithErrorHandler(logger))
	customValidator := nostd.CustomValidator{Validator: validator.New()}
	if err := customValidator.TransInit(); err != nil {
		logger.Sugar().Fatal("failed to init custom validator", zap.Error(err))
	}
	e.Validator = &customValidator

	api := e.Group("/api")
	{
		if r.components.DeskHandler != nil {
			r.components.DeskHandler.RegisterRoutes(api)
		}
	}

	return nil
}

func (r *TallyApp) Init(logger *zap.Logger) error {
	logger.Info("=================================================")
	logger.Info("Tally Reconciliation Service Starting...")
	logger.Info("=================================================")

	components := r.GetComponents()
	if components == nil {
		return fmt.Errorf("components not initialized")
	}

	if components.tg != nil {
		components.tg.Start()
	}

	if !r.conf.Sync.Enabled {
		logger.Info("fill sync disabled by config, manual trigger only")
		return nil
	}

	logger.Info("sync loop initialized, starting...")

	go func() {
		if err := components.SyncLoop.Start(context.Background()); err != nil {
			logger.Error("sync loop error", zap.Error(err))
		}
	}()
	return nil
}
