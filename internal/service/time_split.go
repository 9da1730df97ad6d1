package service

import (
	"mission-control/internal/model"
)

const millisPerMinute = 60_000

// BuildTimeSplit 把活动时间窗口 [startAt, endAt) 按 splitMinutes
// 分钟一段轮转分配给候选人员，返回有序分段序列。
//
// 边界情况一律返回空序列而非错误：splitMinutes≤0、窗口为空
// （endAt≤startAt）、无候选人。窗口不能整除时末段短于标准段长。
// 纯函数：相同输入（含候选人顺序）必产生相同输出。
func BuildTimeSplit(startAt, endAt int64, splitMinutes int, candidates []model.User) []model.TimeSegment {
	if splitMinutes <= 0 || endAt <= startAt || len(candidates) == 0 {
		return []model.TimeSegment{}
	}

	segmentMillis := int64(splitMinutes) * millisPerMinute
	segments := make([]model.TimeSegment, 0, int((endAt-startAt)/segmentMillis)+1)

	current := startAt
	remaining := endAt - startAt
	i := 0
	for remaining > 0 {
		chunk := segmentMillis
		if remaining < chunk {
			chunk = remaining
		}
		segments = append(segments, model.TimeSegment{
			UserID: candidates[i].ID,
			Start:  current,
			End:    current + chunk,
		})
		current += chunk
		remaining -= chunk
		i = (i + 1) % len(candidates)
	}
	return segments
}
