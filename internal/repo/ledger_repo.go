package repo

import (
	"context"
	"errors"
	"time"

	"github.com/dushixiang/tally/internal/models"
	"github.com/go-orz/orz"
	"gorm.io/gorm"
)

func NewLedgerRepo(db *gorm.DB) *LedgerRepo {
	return &LedgerRepo{
		Repository: orz.NewRepository[models.LedgerEntry, string](db),
	}
}

type LedgerRepo struct {
	orz.Repository[models.LedgerEntry, string]
}

// ExistsByEntryID 指定日志条目是否已有台账行
func (r LedgerRepo) ExistsByEntryID(ctx context.Context, entryID string) (bool, error) {
	var m models.LedgerEntry
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("entry_id = ?", entryID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FindByExitBetween 查找指定时间段内离场的台账行
func (r LedgerRepo) FindByExitBetween(ctx context.Context, from, to time.Time) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("exit_at >= ? AND exit_at < ?", from, to).
		Order("exit_at ASC").
		Find(&entries).Error
	return entries, err
}
