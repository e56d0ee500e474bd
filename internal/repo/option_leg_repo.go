package repo

import (
	"context"

	"github.com/dushixiang/tally/internal/models"
	"github.com/go-orz/orz"
	"gorm.io/gorm"
)

func NewOptionLegRepo(db *gorm.DB) *OptionLegRepo {
	return &OptionLegRepo{
		Repository: orz.NewRepository[models.OptionLeg, string](db),
	}
}

type OptionLegRepo struct {
	orz.Repository[models.OptionLeg, string]
}

// FindByEntryID 查找指定条目的所有腿
func (r OptionLegRepo) FindByEntryID(ctx context.Context, entryID string) ([]models.OptionLeg, error) {
	var legs []models.OptionLeg
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("entry_id = ?", entryID).
		Order("created_at ASC").
		Find(&legs).Error
	return legs, err
}
