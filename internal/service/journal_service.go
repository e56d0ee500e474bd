package service

import (
	"context"
	"time"

	"github.com/dushixiang/tally/internal/models"
	"github.com/dushixiang/tally/internal/repo"
	"github.com/go-orz/orz"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// JournalService 交易日志查询服务
// 条目的创建和编辑属于日志子系统，这里只提供对账和风控需要的读写
type JournalService struct {
	logger *zap.Logger

	*orz.Service
	*repo.JournalEntryRepo

	legRepo *repo.OptionLegRepo
}

// NewJournalService 创建日志服务
func NewJournalService(db *gorm.DB, logger *zap.Logger) *JournalService {
	return &JournalService{
		logger:           logger,
		Service:          orz.NewService(db),
		JournalEntryRepo: repo.NewJournalEntryRepo(db),
		legRepo:          repo.NewOptionLegRepo(db),
	}
}

// GetOpenEntries 获取所有待对账的条目
func (s *JournalService) GetOpenEntries(ctx context.Context) ([]models.JournalEntry, error) {
	return s.JournalEntryRepo.FindOpenEntries(ctx)
}

// GetEntriesForRiskWindow 获取风控计算所需的条目：活跃条目加当日离场条目
func (s *JournalService) GetEntriesForRiskWindow(ctx context.Context, from, to time.Time) ([]models.JournalEntry, error) {
	open, err := s.JournalEntryRepo.FindOpenEntries(ctx)
	if err != nil {
		return nil, err
	}

	exited, err := s.JournalEntryRepo.FindExitedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	return append(open, exited...), nil
}

// GetEntry 获取单个条目
func (s *JournalService) GetEntry(ctx context.Context, id string) (*models.JournalEntry, error) {
	entry, err := s.JournalEntryRepo.FindById(ctx, id)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetLegs 获取条目的期权腿
func (s *JournalService) GetLegs(ctx context.Context, entryID string) ([]models.OptionLeg, error) {
	return s.legRepo.FindByEntryID(ctx, entryID)
}

// RefreshMark 更新条目的标记价格
func (s *JournalService) RefreshMark(ctx context.Context, entryID string, price float64) error {
	return s.JournalEntryRepo.UpdateCurrentPrice(ctx, entryID, price)
}
