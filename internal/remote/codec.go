package remote

import (
	"fmt"
	"strconv"

	"mission-control/internal/model"
)

// 文档编解码：实体 ↔ 哈希字段。
// 编码只写出有值的字段（nil 指针字段省略），配合 HSET 形成
// 字段覆盖式合并；解码对枚举使用 Unknown 回落，对缺失/畸形文档
// 返回错误，由拉取方跳过（并发写入方产生的异物是预期情况）。

// ── 编码 ──

func encodeUser(u *model.User) map[string]interface{} {
	m := map[string]interface{}{
		"id":             u.ID,
		"name":           u.Name,
		"isActive":       u.IsActive,
		"canFillAnyRole": u.CanFillAnyRole,
	}
	if u.Team != nil {
		m["team"] = string(*u.Team)
	}
	return m
}

func encodeActivity(a *model.Activity) map[string]interface{} {
	m := map[string]interface{}{
		"id":            a.ID,
		"name":          a.Name,
		"startAt":       a.StartAt,
		"endAt":         a.EndAt,
		"dateEpochDay":  a.DateEpochDay,
		"timeSplitMode": string(a.TimeSplitMode),
	}
	if a.Team != nil {
		m["team"] = string(*a.Team)
	}
	return m
}

func encodeAssignment(a *model.Assignment) map[string]interface{} {
	m := map[string]interface{}{
		"id":              a.ID,
		"activityId":      a.ActivityID,
		"userId":          a.UserID,
		"role":            string(a.Role),
		"orderInActivity": a.OrderInActivity,
	}
	if a.AllocatedMinutes != nil {
		m["allocatedMinutes"] = *a.AllocatedMinutes
	}
	return m
}

func encodeRequirement(r *model.ActivityRoleRequirement) map[string]interface{} {
	return map[string]interface{}{
		"id":            r.ID,
		"activityId":    r.ActivityID,
		"profession":    string(r.Profession),
		"requiredCount": r.RequiredCount,
	}
}

func encodeUserProfession(up *model.UserProfession) map[string]interface{} {
	return map[string]interface{}{
		"userId":     up.UserID,
		"profession": string(up.Profession),
	}
}

func encodeTimeSplit(s *model.ActivityTimeSplit) map[string]interface{} {
	return map[string]interface{}{
		"activityId":   s.ActivityID,
		"splitMinutes": s.SplitMinutes,
		"segments":     s.Segments.Encode(),
	}
}

// ── 解码 ──

func fieldInt64(fields map[string]string, key string) (int64, error) {
	raw, ok := fields[key]
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("字段 %s 非整数: %q", key, raw)
	}
	return n, nil
}

func fieldBool(fields map[string]string, key string) bool {
	switch fields[key] {
	case "1", "true":
		return true
	default:
		return false
	}
}

func fieldTeam(fields map[string]string, key string) *model.Team {
	raw, ok := fields[key]
	if !ok || raw == "" {
		return nil
	}
	team := model.ParseTeam(raw)
	return &team
}

func decodeUser(fields map[string]string) (model.User, error) {
	if fields["id"] == "" {
		return model.User{}, fmt.Errorf("人员文档缺少 id")
	}
	return model.User{
		ID:             fields["id"],
		Name:           fields["name"],
		IsActive:       fieldBool(fields, "isActive"),
		CanFillAnyRole: fieldBool(fields, "canFillAnyRole"),
		Team:           fieldTeam(fields, "team"),
	}, nil
}

func decodeActivity(fields map[string]string) (model.Activity, error) {
	if fields["id"] == "" {
		return model.Activity{}, fmt.Errorf("活动文档缺少 id")
	}
	startAt, err := fieldInt64(fields, "startAt")
	if err != nil {
		return model.Activity{}, err
	}
	endAt, err := fieldInt64(fields, "endAt")
	if err != nil {
		return model.Activity{}, err
	}
	epochDay, err := fieldInt64(fields, "dateEpochDay")
	if err != nil {
		return model.Activity{}, err
	}
	return model.Activity{
		ID:            fields["id"],
		Name:          fields["name"],
		StartAt:       startAt,
		EndAt:         endAt,
		DateEpochDay:  int(epochDay),
		Team:          fieldTeam(fields, "team"),
		TimeSplitMode: model.ParseTimeSplitMode(fields["timeSplitMode"]),
	}, nil
}

func decodeAssignment(fields map[string]string) (model.Assignment, error) {
	if fields["id"] == "" {
		return model.Assignment{}, fmt.Errorf("指派文档缺少 id")
	}
	order, err := fieldInt64(fields, "orderInActivity")
	if err != nil {
		return model.Assignment{}, err
	}
	a := model.Assignment{
		ID:              fields["id"],
		ActivityID:      fields["activityId"],
		UserID:          fields["userId"],
		Role:            model.ParseProfession(fields["role"]),
		OrderInActivity: int(order),
	}
	if raw, ok := fields["allocatedMinutes"]; ok && raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			return model.Assignment{}, fmt.Errorf("字段 allocatedMinutes 非整数: %q", raw)
		}
		a.AllocatedMinutes = &minutes
	}
	return a, nil
}

func decodeRequirement(fields map[string]string) (model.ActivityRoleRequirement, error) {
	if fields["id"] == "" || fields["activityId"] == "" {
		return model.ActivityRoleRequirement{}, fmt.Errorf("需求文档缺少 id/activityId")
	}
	count, err := fieldInt64(fields, "requiredCount")
	if err != nil {
		return model.ActivityRoleRequirement{}, err
	}
	return model.ActivityRoleRequirement{
		ID:            fields["id"],
		ActivityID:    fields["activityId"],
		Profession:    model.ParseProfession(fields["profession"]),
		RequiredCount: int(count),
	}, nil
}

func decodeUserProfession(fields map[string]string) (model.UserProfession, error) {
	if fields["userId"] == "" {
		return model.UserProfession{}, fmt.Errorf("人员职能文档缺少 userId")
	}
	return model.UserProfession{
		UserID:     fields["userId"],
		Profession: model.ParseProfession(fields["profession"]),
	}, nil
}

func decodeTimeSplit(fields map[string]string) (model.ActivityTimeSplit, error) {
	if fields["activityId"] == "" {
		return model.ActivityTimeSplit{}, fmt.Errorf("时间分段文档缺少 activityId")
	}
	minutes, err := fieldInt64(fields, "splitMinutes")
	if err != nil {
		return model.ActivityTimeSplit{}, err
	}
	segments, err := model.DecodeSegments(fields["segments"])
	if err != nil {
		return model.ActivityTimeSplit{}, err
	}
	return model.ActivityTimeSplit{
		ActivityID:   fields["activityId"],
		SplitMinutes: int(minutes),
		Segments:     segments,
	}, nil
}
