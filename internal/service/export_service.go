package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ErrExportNoActivities 导出日无任何活动
var ErrExportNoActivities = errors.New("该日期没有可导出的活动")

// ExportService 当日排班表导出为 xlsx
type ExportService struct {
	roster RosterService
	logger *zap.Logger
}

// NewExportService 创建导出服务
func NewExportService(roster RosterService, logger *zap.Logger) *ExportService {
	return &ExportService{roster: roster, logger: logger}
}

const exportSheet = "Sheet1"

// ExportDay 导出指定天序号的排班表。
// 每行一个占位席位：活动名、时间窗口、职能、人员；未填席位留空。
func (s *ExportService) ExportDay(ctx context.Context, epochDay int) (*bytes.Buffer, error) {
	activities, err := s.roster.ListActivitiesOnDay(ctx, epochDay)
	if err != nil {
		return nil, err
	}
	if len(activities) == 0 {
		return nil, ErrExportNoActivities
	}

	users, err := s.roster.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	nameByID := make(map[string]string, len(users))
	for _, u := range users {
		nameByID[u.ID] = u.Name
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	headers := []string{"活动", "开始", "结束", "职能", "人员"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return nil, err
		}
	}

	row := 2
	for _, activity := range activities {
		assignments, err := s.roster.ListAssignmentsForActivity(ctx, activity.ID)
		if err != nil {
			return nil, err
		}
		if len(assignments) == 0 {
			// 无指派的活动也占一行，便于一眼看出空班
			if err := writeExportRow(f, row, []interface{}{
				activity.Name, formatClock(activity.StartAt), formatClock(activity.EndAt), "", "",
			}); err != nil {
				return nil, err
			}
			row++
			continue
		}
		for _, a := range assignments {
			if err := writeExportRow(f, row, []interface{}{
				activity.Name,
				formatClock(activity.StartAt),
				formatClock(activity.EndAt),
				string(a.Role),
				nameByID[a.UserID],
			}); err != nil {
				return nil, err
			}
			row++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("生成排班表失败: %w", err)
	}
	s.logger.Info("排班表导出完成",
		zap.Int("epoch_day", epochDay),
		zap.Int("activities", len(activities)),
		zap.Int("rows", row-2))
	return buf, nil
}

func writeExportRow(f *excelize.File, row int, values []interface{}) error {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		if err := f.SetCellValue(exportSheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func formatClock(unixMillis int64) string {
	return time.UnixMilli(unixMillis).UTC().Format("2006-01-02 15:04")
}
