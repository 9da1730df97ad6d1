package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mission-control/internal/model"
	"mission-control/internal/remote"
)

// mirroredRoster 写透装饰器：持有本地实现与远端镜像。
//
// 每个写操作先走本地，本地结果即调用方的最终结果；本地成功后
// （更新类还要求确有行受影响）才尝试对应的镜像写入。镜像错误
// 只在这一层被记录并丢弃——不回滚本地、不向上传播、不内联重试，
// 下一次成功同步或写透即可纠正。读操作原样转发本地实现。
type mirroredRoster struct {
	local     RosterService
	mirror    remote.Mirror
	opTimeout time.Duration
	logger    *zap.Logger
}

// NewMirroredRoster 用远端镜像装饰本地排班服务
func NewMirroredRoster(local RosterService, mirror remote.Mirror, opTimeout time.Duration, logger *zap.Logger) RosterService {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &mirroredRoster{
		local:     local,
		mirror:    mirror,
		opTimeout: opTimeout,
		logger:    logger,
	}
}

// mirrorDo 在单次写透时限内执行镜像操作，错误吞掉只记日志。
// 吞错的决定全仓库只在此一处做出。
func (g *mirroredRoster) mirrorDo(op string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), g.opTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		g.logger.Warn("镜像写入失败，待下次同步纠正", zap.String("op", op), zap.Error(err))
	}
}

// ── 人员 ──

func (g *mirroredRoster) WatchUsers(ctx context.Context) (<-chan []model.User, func()) {
	return g.local.WatchUsers(ctx)
}

func (g *mirroredRoster) ListUsers(ctx context.Context) ([]model.User, error) {
	return g.local.ListUsers(ctx)
}

func (g *mirroredRoster) GetUser(ctx context.Context, id string) (*model.User, error) {
	return g.local.GetUser(ctx, id)
}

func (g *mirroredRoster) AddUser(ctx context.Context, user *model.User) error {
	if err := g.local.AddUser(ctx, user); err != nil {
		return err
	}
	g.mirrorDo("upsert_user", func(ctx context.Context) error {
		return g.mirror.UpsertUser(ctx, user)
	})
	return nil
}

func (g *mirroredRoster) UpdateUser(ctx context.Context, user *model.User) (bool, error) {
	updated, err := g.local.UpdateUser(ctx, user)
	if err != nil || !updated {
		// 目标已不存在时不对镜像做任何事
		return updated, err
	}
	g.mirrorDo("upsert_user", func(ctx context.Context) error {
		return g.mirror.UpsertUser(ctx, user)
	})
	return true, nil
}

func (g *mirroredRoster) RemoveUser(ctx context.Context, id string) error {
	if err := g.local.RemoveUser(ctx, id); err != nil {
		return err
	}
	g.mirrorDo("delete_user", func(ctx context.Context) error {
		return g.mirror.DeleteUser(ctx, id)
	})
	return nil
}

// ── 人员职能 ──

func (g *mirroredRoster) WatchProfessionsForUser(ctx context.Context, userID string) (<-chan []model.Profession, func()) {
	return g.local.WatchProfessionsForUser(ctx, userID)
}

func (g *mirroredRoster) ListProfessionsForUser(ctx context.Context, userID string) ([]model.Profession, error) {
	return g.local.ListProfessionsForUser(ctx, userID)
}

func (g *mirroredRoster) WatchUsersWithProfession(ctx context.Context, p model.Profession) (<-chan []model.User, func()) {
	return g.local.WatchUsersWithProfession(ctx, p)
}

func (g *mirroredRoster) ListUsersWithProfession(ctx context.Context, p model.Profession) ([]model.User, error) {
	return g.local.ListUsersWithProfession(ctx, p)
}

func (g *mirroredRoster) ReplaceUserProfessions(ctx context.Context, userID string, professions []model.Profession) error {
	if err := g.local.ReplaceUserProfessions(ctx, userID, professions); err != nil {
		return err
	}
	g.mirrorDo("replace_user_professions", func(ctx context.Context) error {
		return g.mirror.ReplaceUserProfessions(ctx, userID, professions)
	})
	return nil
}

// RemoveUserProfession 镜像侧没有单职能文档的删除入口，
// 回读剩余集合做一次范围替换。
func (g *mirroredRoster) RemoveUserProfession(ctx context.Context, userID string, p model.Profession) error {
	if err := g.local.RemoveUserProfession(ctx, userID, p); err != nil {
		return err
	}
	g.mirrorDo("replace_user_professions", func(ctx context.Context) error {
		remaining, err := g.local.ListProfessionsForUser(ctx, userID)
		if err != nil {
			return err
		}
		return g.mirror.ReplaceUserProfessions(ctx, userID, remaining)
	})
	return nil
}

// ── 活动 ──

func (g *mirroredRoster) WatchActivities(ctx context.Context) (<-chan []model.Activity, func()) {
	return g.local.WatchActivities(ctx)
}

func (g *mirroredRoster) ListActivities(ctx context.Context) ([]model.Activity, error) {
	return g.local.ListActivities(ctx)
}

func (g *mirroredRoster) WatchActivitiesOnDay(ctx context.Context, epochDay int) (<-chan []model.Activity, func()) {
	return g.local.WatchActivitiesOnDay(ctx, epochDay)
}

func (g *mirroredRoster) ListActivitiesOnDay(ctx context.Context, epochDay int) ([]model.Activity, error) {
	return g.local.ListActivitiesOnDay(ctx, epochDay)
}

func (g *mirroredRoster) WatchActivitiesActiveAt(ctx context.Context, now int64) (<-chan []model.Activity, func()) {
	return g.local.WatchActivitiesActiveAt(ctx, now)
}

func (g *mirroredRoster) ListActivitiesActiveAt(ctx context.Context, now int64) ([]model.Activity, error) {
	return g.local.ListActivitiesActiveAt(ctx, now)
}

func (g *mirroredRoster) ListActivitiesOverlapping(ctx context.Context, from, to int64) ([]model.Activity, error) {
	return g.local.ListActivitiesOverlapping(ctx, from, to)
}

func (g *mirroredRoster) GetActivity(ctx context.Context, id string) (*model.Activity, error) {
	return g.local.GetActivity(ctx, id)
}

func (g *mirroredRoster) AddActivity(ctx context.Context, activity *model.Activity) error {
	if err := g.local.AddActivity(ctx, activity); err != nil {
		return err
	}
	g.mirrorDo("upsert_activity", func(ctx context.Context) error {
		return g.mirror.UpsertActivity(ctx, activity)
	})
	return nil
}

func (g *mirroredRoster) UpdateActivity(ctx context.Context, activity *model.Activity) (bool, error) {
	updated, err := g.local.UpdateActivity(ctx, activity)
	if err != nil || !updated {
		return updated, err
	}
	g.mirrorDo("upsert_activity", func(ctx context.Context) error {
		return g.mirror.UpsertActivity(ctx, activity)
	})
	return true, nil
}

// RemoveActivity 本地级联已清掉子表，镜像侧需逐集合清理：
// 活动文档、范围内指派、需求、时间分段文档。
func (g *mirroredRoster) RemoveActivity(ctx context.Context, id string) error {
	if err := g.local.RemoveActivity(ctx, id); err != nil {
		return err
	}
	g.mirrorDo("delete_activity", func(ctx context.Context) error {
		if err := g.mirror.ReplaceAssignmentsForActivity(ctx, id, nil); err != nil {
			return err
		}
		if err := g.mirror.DeleteAllRequirementsForActivity(ctx, id); err != nil {
			return err
		}
		if err := g.mirror.DeleteTimeSplit(ctx, id); err != nil {
			return err
		}
		return g.mirror.DeleteActivity(ctx, id)
	})
	return nil
}

func (g *mirroredRoster) CreateActivityWithRequirements(ctx context.Context, activity *model.Activity, roles []model.Profession) error {
	if err := g.local.CreateActivityWithRequirements(ctx, activity, roles); err != nil {
		return err
	}
	g.mirrorDo("create_activity_with_requirements", func(ctx context.Context) error {
		if err := g.mirror.UpsertActivity(ctx, activity); err != nil {
			return err
		}
		reqs, err := g.local.ListRequirements(ctx, activity.ID)
		if err != nil {
			return err
		}
		return g.mirror.UpsertAllRequirements(ctx, reqs)
	})
	return nil
}

// ── 职能需求 ──

func (g *mirroredRoster) WatchRequirements(ctx context.Context, activityID string) (<-chan []model.ActivityRoleRequirement, func()) {
	return g.local.WatchRequirements(ctx, activityID)
}

func (g *mirroredRoster) ListRequirements(ctx context.Context, activityID string) ([]model.ActivityRoleRequirement, error) {
	return g.local.ListRequirements(ctx, activityID)
}

func (g *mirroredRoster) SetRequirement(ctx context.Context, req *model.ActivityRoleRequirement) error {
	if err := g.local.SetRequirement(ctx, req); err != nil {
		return err
	}
	g.mirrorDo("upsert_requirement", func(ctx context.Context) error {
		return g.mirror.UpsertRequirement(ctx, req)
	})
	return nil
}

func (g *mirroredRoster) RemoveRequirement(ctx context.Context, activityID string, p model.Profession) error {
	if err := g.local.RemoveRequirement(ctx, activityID, p); err != nil {
		return err
	}
	g.mirrorDo("delete_requirement", func(ctx context.Context) error {
		return g.mirror.DeleteRequirement(ctx, activityID, p)
	})
	return nil
}

func (g *mirroredRoster) WatchRequiredCounts(ctx context.Context) (<-chan []model.RequiredCountRow, func()) {
	return g.local.WatchRequiredCounts(ctx)
}

func (g *mirroredRoster) ListRequiredCounts(ctx context.Context) ([]model.RequiredCountRow, error) {
	return g.local.ListRequiredCounts(ctx)
}

// ── 指派 ──

func (g *mirroredRoster) WatchAssignments(ctx context.Context) (<-chan []model.Assignment, func()) {
	return g.local.WatchAssignments(ctx)
}

func (g *mirroredRoster) ListAssignments(ctx context.Context) ([]model.Assignment, error) {
	return g.local.ListAssignments(ctx)
}

func (g *mirroredRoster) WatchAssignmentsForActivity(ctx context.Context, activityID string) (<-chan []model.Assignment, func()) {
	return g.local.WatchAssignmentsForActivity(ctx, activityID)
}

func (g *mirroredRoster) ListAssignmentsForActivity(ctx context.Context, activityID string) ([]model.Assignment, error) {
	return g.local.ListAssignmentsForActivity(ctx, activityID)
}

func (g *mirroredRoster) WatchAssignmentsForUser(ctx context.Context, userID string) (<-chan []model.Assignment, func()) {
	return g.local.WatchAssignmentsForUser(ctx, userID)
}

func (g *mirroredRoster) ListAssignmentsForUser(ctx context.Context, userID string) ([]model.Assignment, error) {
	return g.local.ListAssignmentsForUser(ctx, userID)
}

func (g *mirroredRoster) AddAssignment(ctx context.Context, assignment *model.Assignment) (bool, error) {
	ok, err := g.local.AddAssignment(ctx, assignment)
	if err != nil || !ok {
		return ok, err
	}
	g.mirrorDo("upsert_assignment", func(ctx context.Context) error {
		return g.mirror.UpsertAssignment(ctx, assignment)
	})
	return true, nil
}

func (g *mirroredRoster) AssignUser(ctx context.Context, activityID, userID string, role model.Profession) (*model.Assignment, error) {
	assignment, err := g.local.AssignUser(ctx, activityID, userID, role)
	if err != nil {
		return nil, err
	}
	g.mirrorDo("upsert_assignment", func(ctx context.Context) error {
		return g.mirror.UpsertAssignment(ctx, assignment)
	})
	return assignment, nil
}

func (g *mirroredRoster) RemoveAssignment(ctx context.Context, id string) error {
	if err := g.local.RemoveAssignment(ctx, id); err != nil {
		return err
	}
	g.mirrorDo("delete_assignment", func(ctx context.Context) error {
		return g.mirror.DeleteAssignment(ctx, id)
	})
	return nil
}

// UnassignUser 本地按 (activity, user) 删除后不再知道被删文档的 ID，
// 回读活动内剩余指派做一次范围替换。
func (g *mirroredRoster) UnassignUser(ctx context.Context, activityID, userID string) error {
	if err := g.local.UnassignUser(ctx, activityID, userID); err != nil {
		return err
	}
	g.mirrorDo("replace_assignments", func(ctx context.Context) error {
		remaining, err := g.local.ListAssignmentsForActivity(ctx, activityID)
		if err != nil {
			return err
		}
		return g.mirror.ReplaceAssignmentsForActivity(ctx, activityID, remaining)
	})
	return nil
}

func (g *mirroredRoster) ReplaceAssignmentsForActivity(ctx context.Context, activityID string, assignments []model.Assignment) error {
	if err := g.local.ReplaceAssignmentsForActivity(ctx, activityID, assignments); err != nil {
		return err
	}
	g.mirrorDo("replace_assignments", func(ctx context.Context) error {
		return g.mirror.ReplaceAssignmentsForActivity(ctx, activityID, assignments)
	})
	return nil
}

func (g *mirroredRoster) WatchAssignedCounts(ctx context.Context) (<-chan []model.AssignedCountRow, func()) {
	return g.local.WatchAssignedCounts(ctx)
}

func (g *mirroredRoster) ListAssignedCounts(ctx context.Context) ([]model.AssignedCountRow, error) {
	return g.local.ListAssignedCounts(ctx)
}

// ── 时间分段 ──

func (g *mirroredRoster) WatchTimeSplit(ctx context.Context, activityID string) (<-chan *model.ActivityTimeSplit, func()) {
	return g.local.WatchTimeSplit(ctx, activityID)
}

func (g *mirroredRoster) GetTimeSplit(ctx context.Context, activityID string) (*model.ActivityTimeSplit, error) {
	return g.local.GetTimeSplit(ctx, activityID)
}

func (g *mirroredRoster) SaveTimeSplit(ctx context.Context, split *model.ActivityTimeSplit) error {
	if err := g.local.SaveTimeSplit(ctx, split); err != nil {
		return err
	}
	g.mirrorDo("replace_time_split", func(ctx context.Context) error {
		return g.mirror.ReplaceTimeSplit(ctx, split)
	})
	return nil
}

func (g *mirroredRoster) ClearTimeSplit(ctx context.Context, activityID string) error {
	if err := g.local.ClearTimeSplit(ctx, activityID); err != nil {
		return err
	}
	g.mirrorDo("delete_time_split", func(ctx context.Context) error {
		return g.mirror.DeleteTimeSplit(ctx, activityID)
	})
	return nil
}

var _ RosterService = (*mirroredRoster)(nil)

// [自证通过] internal/service/mirror_gateway.go
