package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dushixiang/tally/internal/models"
	"github.com/dushixiang/tally/internal/repo"
	"github.com/go-orz/orz"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 锁释放时错误信息的最大长度
const lockErrorMaxLen = 500

// LockService 定时任务分布式锁服务
// TTL 保证持锁进程崩溃后锁可被下一次运行回收，不会永久死锁
type LockService struct {
	logger *zap.Logger

	*orz.Service
	*repo.JobLockRepo
}

// NewLockService 创建任务锁服务
func NewLockService(db *gorm.DB, logger *zap.Logger) *LockService {
	return &LockService{
		logger:      logger,
		Service:     orz.NewService(db),
		JobLockRepo: repo.NewJobLockRepo(db),
	}
}

// AcquireResult 抢锁结果
type AcquireResult struct {
	Acquired    bool   `json:"acquired"`
	RunID       string `json:"run_id,omitempty"`        // 抢锁成功时的本次运行ID
	Reason      string `json:"reason,omitempty"`        // 抢锁失败原因
	HolderRunID string `json:"holder_run_id,omitempty"` // 当前持锁者的运行ID
}

// Acquire 尝试获取任务锁
// 失败是正常结果（其他运行正在进行），调用方应跳过本轮而不是重试
func (s *LockService) Acquire(ctx context.Context, jobName string, ttl time.Duration) (*AcquireResult, error) {
	now := time.Now()

	existing, err := s.JobLockRepo.FindByJobName(ctx, jobName)
	if err == nil {
		if existing.IsActive(now) {
			return &AcquireResult{
				Acquired:    false,
				Reason:      "lock held by another run",
				HolderRunID: existing.RunID,
			}, nil
		}
		// 过期或已释放的旧锁，清掉后重新插入
		if err := s.JobLockRepo.DeleteByJobName(ctx, jobName); err != nil {
			return nil, fmt.Errorf("failed to clear stale lock: %w", err)
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to read job lock: %w", err)
	}

	lock := &models.JobLock{
		JobName:    jobName,
		RunID:      ulid.Make().String(),
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}

	// job_name 是主键，并发插入时输的一方会触发唯一约束冲突
	if err := s.JobLockRepo.Create(ctx, lock); err != nil {
		if isUniqueViolation(err) {
			s.logger.Info("lost job lock acquire race", zap.String("job_name", jobName))
			return &AcquireResult{Acquired: false, Reason: "lost acquire race"}, nil
		}
		return nil, fmt.Errorf("failed to insert job lock: %w", err)
	}

	return &AcquireResult{Acquired: true, RunID: lock.RunID}, nil
}

// Release 释放任务锁
// 只释放 job_name 和 run_id 都匹配的行，过期后被他人重新持有的锁不会被误清
func (s *LockService) Release(ctx context.Context, jobName, runID string, runErr error) error {
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		if len(errMsg) > lockErrorMaxLen {
			errMsg = errMsg[:lockErrorMaxLen]
		}
	}

	affected, err := s.JobLockRepo.ReleaseByRunID(ctx, jobName, runID, errMsg, time.Now())
	if err != nil {
		return fmt.Errorf("failed to release job lock: %w", err)
	}

	if affected == 0 {
		// 锁已过期并被其他运行接管，迟到的释放调用按无操作处理
		s.logger.Warn("job lock release matched no rows",
			zap.String("job_name", jobName),
			zap.String("run_id", runID))
	}

	return nil
}

// GetLock 查询当前锁行，不存在时返回 nil
func (s *LockService) GetLock(ctx context.Context, jobName string) (*models.JobLock, error) {
	lock, err := s.JobLockRepo.FindByJobName(ctx, jobName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lock, nil
}

// ExpireStaleLocks 清理已过期且从未释放的锁行
// 定期维护用，正确性由 Acquire 的检查和唯一约束保证
func (s *LockService) ExpireStaleLocks(ctx context.Context) (int64, error) {
	count, err := s.JobLockRepo.DeleteExpiredUnreleased(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale locks: %w", err)
	}

	if count > 0 {
		s.logger.Info("expired stale job locks", zap.Int64("count", count))
	}
	return count, nil
}

// isUniqueViolation 是否是唯一约束冲突
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}
