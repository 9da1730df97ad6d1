// Package remote 定义远端文档库镜像的访问边界。
//
// 镜像不是可信源：本地库才是运行设备上的权威数据，镜像用于跨设备
// 传播。写入采用按文档字段覆盖的合并语义（新字段覆盖旧字段），
// 并为关系型实体使用确定性复合文档 ID 以保证重复写入幂等。
package remote

import (
	"context"

	"mission-control/internal/model"
)

// 远端集合名（与各实体一一对应）
const (
	ColUsers           = "users"
	ColActivities      = "activities"
	ColAssignments     = "assignments"
	ColRequirements    = "activity_role_requirements"
	ColUserProfessions = "user_professions"
	ColTimeSplits      = "activity_time_split"
)

// RequirementDocID 需求文档的确定性 ID：{activityId}_{profession}
func RequirementDocID(activityID string, p model.Profession) string {
	return activityID + "_" + string(p)
}

// UserProfessionDocID 人员职能文档的确定性 ID：{userId}_{profession}
func UserProfessionDocID(userID string, p model.Profession) string {
	return userID + "_" + string(p)
}

// Snapshot 一次全量拉取的结果（每个集合一次读取）
type Snapshot struct {
	Users           []model.User
	Activities      []model.Activity
	Assignments     []model.Assignment
	Requirements    []model.ActivityRoleRequirement
	UserProfessions []model.UserProfession
	TimeSplits      []model.ActivityTimeSplit
}

// Mirror 远端镜像操作接口。
// 所有方法返回显式错误；吞错的决定只在写透网关一处做出。
type Mirror interface {
	// PullAll 全量拉取所有集合
	PullAll(ctx context.Context) (*Snapshot, error)

	UpsertUser(ctx context.Context, u *model.User) error
	DeleteUser(ctx context.Context, id string) error

	UpsertActivity(ctx context.Context, a *model.Activity) error
	DeleteActivity(ctx context.Context, id string) error

	UpsertAssignment(ctx context.Context, a *model.Assignment) error
	DeleteAssignment(ctx context.Context, id string) error
	// ReplaceAssignmentsForActivity 删除活动范围内现有文档并写入新列表，一次批量提交
	ReplaceAssignmentsForActivity(ctx context.Context, activityID string, assignments []model.Assignment) error

	UpsertRequirement(ctx context.Context, r *model.ActivityRoleRequirement) error
	UpsertAllRequirements(ctx context.Context, reqs []model.ActivityRoleRequirement) error
	DeleteRequirement(ctx context.Context, activityID string, p model.Profession) error
	DeleteAllRequirementsForActivity(ctx context.Context, activityID string) error

	// ReplaceUserProfessions 删除人员名下全部职能文档并写入新集合
	ReplaceUserProfessions(ctx context.Context, userID string, professions []model.Profession) error

	// ReplaceTimeSplit 整文档替换（非字段合并）
	ReplaceTimeSplit(ctx context.Context, split *model.ActivityTimeSplit) error
	DeleteTimeSplit(ctx context.Context, activityID string) error

	Close() error
}
