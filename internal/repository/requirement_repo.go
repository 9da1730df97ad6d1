package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mission-control/internal/model"
)

// RequirementRepository 活动职能需求数据访问接口
type RequirementRepository interface {
	// Upsert 以 (activity_id, profession) 为冲突键更新需求数，保留原行 ID
	Upsert(ctx context.Context, req *model.ActivityRoleRequirement) error
	UpsertAll(ctx context.Context, reqs []model.ActivityRoleRequirement) error
	ListForActivity(ctx context.Context, activityID string) ([]model.ActivityRoleRequirement, error)
	// RequiredCounts 按活动聚合需求总席位数
	RequiredCounts(ctx context.Context) ([]model.RequiredCountRow, error)
	Delete(ctx context.Context, activityID string, p model.Profession) error
	DeleteAllForActivity(ctx context.Context, activityID string) error
	DeleteAll(ctx context.Context) error
}

// requirementRepo RequirementRepository 的 GORM 实现
type requirementRepo struct {
	db *gorm.DB
}

// NewRequirementRepo 创建 RequirementRepository 实例
func NewRequirementRepo(db *gorm.DB) RequirementRepository {
	return &requirementRepo{db: db}
}

var requirementConflict = clause.OnConflict{
	Columns:   []clause.Column{{Name: "activity_id"}, {Name: "profession"}},
	DoUpdates: clause.AssignmentColumns([]string{"required_count"}),
}

func (r *requirementRepo) Upsert(ctx context.Context, req *model.ActivityRoleRequirement) error {
	return r.db.WithContext(ctx).
		Clauses(requirementConflict).
		Create(req).Error
}

func (r *requirementRepo) UpsertAll(ctx context.Context, reqs []model.ActivityRoleRequirement) error {
	if len(reqs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(requirementConflict).
		Create(&reqs).Error
}

func (r *requirementRepo) ListForActivity(ctx context.Context, activityID string) ([]model.ActivityRoleRequirement, error) {
	var reqs []model.ActivityRoleRequirement
	err := r.db.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *requirementRepo) RequiredCounts(ctx context.Context) ([]model.RequiredCountRow, error) {
	var rows []model.RequiredCountRow
	err := r.db.WithContext(ctx).
		Model(&model.ActivityRoleRequirement{}).
		Select("activity_id AS activity_id, SUM(required_count) AS required").
		Group("activity_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *requirementRepo) Delete(ctx context.Context, activityID string, p model.Profession) error {
	return r.db.WithContext(ctx).
		Where("activity_id = ? AND profession = ?", activityID, p).
		Delete(&model.ActivityRoleRequirement{}).Error
}

func (r *requirementRepo) DeleteAllForActivity(ctx context.Context, activityID string) error {
	return r.db.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Delete(&model.ActivityRoleRequirement{}).Error
}

func (r *requirementRepo) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&model.ActivityRoleRequirement{}).Error
}
