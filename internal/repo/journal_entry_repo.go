package repo

import (
	"context"
	"time"

	"github.com/dushixiang/tally/internal/models"
	"github.com/go-orz/orz"
	"gorm.io/gorm"
)

func NewJournalEntryRepo(db *gorm.DB) *JournalEntryRepo {
	return &JournalEntryRepo{
		Repository: orz.NewRepository[models.JournalEntry, string](db),
	}
}

type JournalEntryRepo struct {
	orz.Repository[models.JournalEntry, string]
}

var liveStatuses = []models.EntryStatus{
	models.EntryStatusPlanned,
	models.EntryStatusEntered,
	models.EntryStatusOpen,
}

// FindOpenEntries 查找所有待对账的条目（活跃且非草稿）
func (r JournalEntryRepo) FindOpenEntries(ctx context.Context) ([]models.JournalEntry, error) {
	var entries []models.JournalEntry
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("status IN ? AND is_draft = ?", liveStatuses, false).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

// FindLiveBySymbol 查找指定标的的活跃条目（重复仓位检查用）
func (r JournalEntryRepo) FindLiveBySymbol(ctx context.Context, symbol string) ([]models.JournalEntry, error) {
	var entries []models.JournalEntry
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("symbol = ? AND status IN ? AND is_draft = ?", symbol, liveStatuses, false).
		Find(&entries).Error
	return entries, err
}

// FindExitedBetween 查找指定时间段内离场的条目
func (r JournalEntryRepo) FindExitedBetween(ctx context.Context, from, to time.Time) ([]models.JournalEntry, error) {
	var entries []models.JournalEntry
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("status IN ? AND exited_at >= ? AND exited_at < ?",
			[]models.EntryStatus{models.EntryStatusExited, models.EntryStatusClosed}, from, to).
		Find(&entries).Error
	return entries, err
}

// UpdateCurrentPrice 更新标记价格
func (r JournalEntryRepo) UpdateCurrentPrice(ctx context.Context, id string, price float64) error {
	db := r.GetDB(ctx)
	return db.Table(r.GetTableName()).
		Where("id = ?", id).
		Update("current_price", price).Error
}
