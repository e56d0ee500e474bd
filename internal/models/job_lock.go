package models

import (
	"time"
)

// JobLock 定时任务分布式锁
// job_name 作主键，抢锁通过条件插入完成，主键冲突即判定竞争失败
type JobLock struct {
	JobName    string     `gorm:"primaryKey;type:varchar(50)" json:"job_name"`  // 任务名称
	RunID      string     `gorm:"type:varchar(26);not null" json:"run_id"`      // 本次运行ID
	AcquiredAt time.Time  `gorm:"not null" json:"acquired_at"`                  // 加锁时间
	ExpiresAt  time.Time  `gorm:"not null;index" json:"expires_at"`             // 过期时间（TTL保证崩溃后可回收）
	ReleasedAt *time.Time `json:"released_at,omitempty"`                        // 释放时间
	Error      string     `gorm:"type:varchar(500)" json:"error"`               // 运行错误摘要（截断）
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (*JobLock) TableName() string {
	return "job_locks"
}

// IsActive 是否仍然有效（未释放且未过期）
func (l *JobLock) IsActive(now time.Time) bool {
	return l.ReleasedAt == nil && now.Before(l.ExpiresAt)
}
