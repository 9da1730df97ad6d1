package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mission-control/internal/model"
)

// ActivityRepository 活动数据访问接口
type ActivityRepository interface {
	Upsert(ctx context.Context, activity *model.Activity) error
	UpsertAll(ctx context.Context, activities []model.Activity) error
	// Update 返回受影响行数；目标不存在时为 0，不视为错误
	Update(ctx context.Context, activity *model.Activity) (int64, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	GetByID(ctx context.Context, id string) (*model.Activity, error)
	ListAll(ctx context.Context) ([]model.Activity, error)
	ListOnDay(ctx context.Context, epochDay int) ([]model.Activity, error)
	// ListActiveAt 返回在 now（Unix 毫秒）时刻正在进行的活动
	ListActiveAt(ctx context.Context, now int64) ([]model.Activity, error)
	// ListOverlapping 返回与 [from, to) 毫秒窗口重叠的活动
	ListOverlapping(ctx context.Context, from, to int64) ([]model.Activity, error)
}

// activityRepo ActivityRepository 的 GORM 实现
type activityRepo struct {
	db *gorm.DB
}

// NewActivityRepo 创建 ActivityRepository 实例
func NewActivityRepo(db *gorm.DB) ActivityRepository {
	return &activityRepo{db: db}
}

func (r *activityRepo) Upsert(ctx context.Context, activity *model.Activity) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(activity).Error
}

func (r *activityRepo) UpsertAll(ctx context.Context, activities []model.Activity) error {
	if len(activities) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&activities).Error
}

func (r *activityRepo) Update(ctx context.Context, activity *model.Activity) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Activity{}).
		Where("id = ?", activity.ID).
		Updates(map[string]interface{}{
			"name":            activity.Name,
			"start_at":        activity.StartAt,
			"end_at":          activity.EndAt,
			"date_epoch_day":  activity.DateEpochDay,
			"team":            activity.Team,
			"time_split_mode": activity.TimeSplitMode,
		})
	return res.RowsAffected, res.Error
}

func (r *activityRepo) DeleteByID(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Activity{}).Error
}

func (r *activityRepo) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&model.Activity{}).Error
}

func (r *activityRepo) GetByID(ctx context.Context, id string) (*model.Activity, error) {
	var activity model.Activity
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&activity).Error
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

func (r *activityRepo) ListAll(ctx context.Context) ([]model.Activity, error) {
	var activities []model.Activity
	err := r.db.WithContext(ctx).Order("start_at").Find(&activities).Error
	if err != nil {
		return nil, err
	}
	return activities, nil
}

func (r *activityRepo) ListOnDay(ctx context.Context, epochDay int) ([]model.Activity, error) {
	var activities []model.Activity
	err := r.db.WithContext(ctx).
		Where("date_epoch_day = ?", epochDay).
		Order("start_at").
		Find(&activities).Error
	if err != nil {
		return nil, err
	}
	return activities, nil
}

func (r *activityRepo) ListActiveAt(ctx context.Context, now int64) ([]model.Activity, error) {
	var activities []model.Activity
	err := r.db.WithContext(ctx).
		Where("start_at <= ? AND end_at > ?", now, now).
		Order("start_at").
		Find(&activities).Error
	if err != nil {
		return nil, err
	}
	return activities, nil
}

func (r *activityRepo) ListOverlapping(ctx context.Context, from, to int64) ([]model.Activity, error) {
	var activities []model.Activity
	err := r.db.WithContext(ctx).
		Where("start_at < ? AND end_at > ?", to, from).
		Order("start_at").
		Find(&activities).Error
	if err != nil {
		return nil, err
	}
	return activities, nil
}

// [自证通过] internal/repository/activity_repo.go
