package model

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// TimeSegment 时间分段中的一段：某人员负责 [Start, End) 毫秒区间
type TimeSegment struct {
	UserID string `json:"user_id"`
	Start  int64  `json:"start"`
	End    int64  `json:"end"`
}

// ── 分段序列自定义类型 ──

// SegmentList 分段序列，实现 GORM Scanner/Valuer 接口。
// 序列化格式为 "start,end,userId;start,end,userId;..."，
// 本地列存储与远端镜像文档字段共用同一编码。
type SegmentList []TimeSegment

// Encode 序列化为文本
func (l SegmentList) Encode() string {
	if len(l) == 0 {
		return ""
	}
	parts := make([]string, len(l))
	for i, seg := range l {
		parts[i] = fmt.Sprintf("%d,%d,%s", seg.Start, seg.End, seg.UserID)
	}
	return strings.Join(parts, ";")
}

// DecodeSegments 从文本解析分段序列
func DecodeSegments(data string) (SegmentList, error) {
	if strings.TrimSpace(data) == "" {
		return SegmentList{}, nil
	}
	parts := strings.Split(data, ";")
	list := make(SegmentList, 0, len(parts))
	for _, part := range parts {
		pieces := strings.SplitN(part, ",", 3)
		if len(pieces) != 3 {
			return nil, fmt.Errorf("SegmentList: 无效分段 %q", part)
		}
		start, err := strconv.ParseInt(pieces[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("SegmentList: 无效起始时间 %q: %w", pieces[0], err)
		}
		end, err := strconv.ParseInt(pieces[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("SegmentList: 无效结束时间 %q: %w", pieces[1], err)
		}
		list = append(list, TimeSegment{UserID: pieces[2], Start: start, End: end})
	}
	return list, nil
}

// Scan 实现 sql.Scanner
func (l *SegmentList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	var s string
	switch v := src.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return fmt.Errorf("SegmentList.Scan: 不支持的类型 %T", src)
	}
	list, err := DecodeSegments(s)
	if err != nil {
		return err
	}
	*l = list
	return nil
}

// Value 实现 driver.Valuer
func (l SegmentList) Value() (driver.Value, error) {
	return l.Encode(), nil
}

// ActivityTimeSplit 活动时间分段表 — 对应 activity_time_split
// 以活动 ID 为主键，一个活动至多一行
type ActivityTimeSplit struct {
	ActivityID   string      `gorm:"column:activity_id;primaryKey" json:"activity_id"`
	SplitMinutes int         `gorm:"column:split_minutes"          json:"split_minutes"`
	Segments     SegmentList `gorm:"column:segments;type:text"     json:"segments"`
}

// TableName 指定表名
func (ActivityTimeSplit) TableName() string { return TableTimeSplits }
