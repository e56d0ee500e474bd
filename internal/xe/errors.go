package xe

import "github.com/go-orz/orz"

var (
	ErrInvalidParams = orz.NewError(10400, "参数无效")

	ErrSyncAlreadyRunning = orz.NewError(10001, "同步任务正在运行中")
	ErrMarketClosed       = orz.NewError(10002, "当前处于休市时段")
	ErrEntryNotFound      = orz.NewError(10003, "日志条目不存在")
)
