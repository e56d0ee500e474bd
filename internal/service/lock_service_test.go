package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dushixiang/tally/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLockAcquireSingleFlight(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewLockService(db, zap.NewNop())
	ctx := context.Background()

	first, err := svc.Acquire(ctx, "job-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, first.Acquired)
	assert.NotEmpty(t, first.RunID)

	// 锁被持有期间再次抢锁应失败，且能看到持锁者
	second, err := svc.Acquire(ctx, "job-a", time.Minute)
	require.NoError(t, err)
	assert.False(t, second.Acquired)
	assert.Equal(t, first.RunID, second.HolderRunID)
}

func TestLockAcquireConcurrentSingleFlight(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewLockService(db, zap.NewNop())
	ctx := context.Background()

	// TTL窗口内多个并发抢锁，有且只有一个成功
	var wg sync.WaitGroup
	var acquired int64
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Acquire(ctx, "job-race", time.Minute)
			if err == nil && result.Acquired {
				atomic.AddInt64(&acquired, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, acquired)
}

func TestLockReclaimAfterExpiry(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewLockService(db, zap.NewNop())
	ctx := context.Background()

	expired := &models.JobLock{
		JobName:    "job-b",
		RunID:      "stale-run",
		AcquiredAt: time.Now().Add(-10 * time.Minute),
		ExpiresAt:  time.Now().Add(-5 * time.Minute),
	}
	require.NoError(t, db.Create(expired).Error)

	// 过期锁可被直接回收
	result, err := svc.Acquire(ctx, "job-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Acquired)
	assert.NotEqual(t, "stale-run", result.RunID)
}

func TestLockReleaseAndReacquire(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewLockService(db, zap.NewNop())
	ctx := context.Background()

	first, err := svc.Acquire(ctx, "job-c", time.Minute)
	require.NoError(t, err)
	require.True(t, first.Acquired)

	require.NoError(t, svc.Release(ctx, "job-c", first.RunID, nil))

	second, err := svc.Acquire(ctx, "job-c", time.Minute)
	require.NoError(t, err)
	assert.True(t, second.Acquired)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestLockReleaseWrongRunIDIsNoop(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewLockService(db, zap.NewNop())
	ctx := context.Background()

	first, err := svc.Acquire(ctx, "job-d", time.Minute)
	require.NoError(t, err)
	require.True(t, first.Acquired)

	// 迟到的释放（run_id不匹配）不能清掉当前持有者
	require.NoError(t, svc.Release(ctx, "job-d", "someone-else", nil))

	lock, err := svc.GetLock(ctx, "job-d")
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.True(t, lock.IsActive(time.Now()))
	assert.Equal(t, first.RunID, lock.RunID)
}

func TestLockReleaseRecordsError(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewLockService(db, zap.NewNop())
	ctx := context.Background()

	first, err := svc.Acquire(ctx, "job-e", time.Minute)
	require.NoError(t, err)
	require.True(t, first.Acquired)

	require.NoError(t, svc.Release(ctx, "job-e", first.RunID, errors.New("broker timeout")))

	lock, err := svc.GetLock(ctx, "job-e")
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.False(t, lock.IsActive(time.Now()))
	assert.Equal(t, "broker timeout", lock.Error)
	require.NotNil(t, lock.ReleasedAt)
}

func TestLockExpireStaleLocks(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewLockService(db, zap.NewNop())
	ctx := context.Background()

	stale := &models.JobLock{
		JobName:    "job-f",
		RunID:      "dead-run",
		AcquiredAt: time.Now().Add(-time.Hour),
		ExpiresAt:  time.Now().Add(-30 * time.Minute),
	}
	require.NoError(t, db.Create(stale).Error)

	active, err := svc.Acquire(ctx, "job-g", time.Minute)
	require.NoError(t, err)
	require.True(t, active.Acquired)

	// 只清理已过期且未释放的行，活跃锁不受影响
	count, err := svc.ExpireStaleLocks(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	lock, err := svc.GetLock(ctx, "job-g")
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.True(t, lock.IsActive(time.Now()))
}
