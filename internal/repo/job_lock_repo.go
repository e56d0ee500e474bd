package repo

import (
	"context"
	"time"

	"github.com/dushixiang/tally/internal/models"
	"github.com/go-orz/orz"
	"gorm.io/gorm"
)

func NewJobLockRepo(db *gorm.DB) *JobLockRepo {
	return &JobLockRepo{
		Repository: orz.NewRepository[models.JobLock, string](db),
	}
}

type JobLockRepo struct {
	orz.Repository[models.JobLock, string]
}

// FindByJobName 按任务名查找锁行
// 表主键是 job_name，不能走通用的按 id 查找
func (r JobLockRepo) FindByJobName(ctx context.Context, jobName string) (models.JobLock, error) {
	var m models.JobLock
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("job_name = ?", jobName).
		First(&m).Error
	return m, err
}

// DeleteByJobName 删除指定任务的锁行
func (r JobLockRepo) DeleteByJobName(ctx context.Context, jobName string) error {
	db := r.GetDB(ctx)
	return db.Where("job_name = ?", jobName).Delete(&models.JobLock{}).Error
}

// ReleaseByRunID 按任务名和运行ID释放锁，只更新匹配且未释放的行
// 返回受影响行数，0 表示锁已被其他运行持有或已释放
func (r JobLockRepo) ReleaseByRunID(ctx context.Context, jobName, runID, errMsg string, releasedAt time.Time) (int64, error) {
	db := r.GetDB(ctx)
	result := db.Table(r.GetTableName()).
		Where("job_name = ? AND run_id = ? AND released_at IS NULL", jobName, runID).
		Updates(map[string]interface{}{
			"released_at": releasedAt,
			"error":       errMsg,
		})
	return result.RowsAffected, result.Error
}

// DeleteExpiredUnreleased 批量删除已过期且从未释放的锁行，返回删除数量
func (r JobLockRepo) DeleteExpiredUnreleased(ctx context.Context, before time.Time) (int64, error) {
	db := r.GetDB(ctx)
	result := db.Where("expires_at < ? AND released_at IS NULL", before).Delete(&models.JobLock{})
	return result.RowsAffected, result.Error
}
