package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mission-control/internal/model"
)

// TimeSplitRepository 活动时间分段数据访问接口
type TimeSplitRepository interface {
	// Get 不存在时返回 gorm.ErrRecordNotFound
	Get(ctx context.Context, activityID string) (*model.ActivityTimeSplit, error)
	Upsert(ctx context.Context, split *model.ActivityTimeSplit) error
	UpsertAll(ctx context.Context, splits []model.ActivityTimeSplit) error
	DeleteByActivity(ctx context.Context, activityID string) error
	DeleteAll(ctx context.Context) error
}

// timeSplitRepo TimeSplitRepository 的 GORM 实现
type timeSplitRepo struct {
	db *gorm.DB
}

// NewTimeSplitRepo 创建 TimeSplitRepository 实例
func NewTimeSplitRepo(db *gorm.DB) TimeSplitRepository {
	return &timeSplitRepo{db: db}
}

func (r *timeSplitRepo) Get(ctx context.Context, activityID string) (*model.ActivityTimeSplit, error) {
	var split model.ActivityTimeSplit
	err := r.db.WithContext(ctx).
		Where("activity_id = ?", activityID).
		First(&split).Error
	if err != nil {
		return nil, err
	}
	return &split, nil
}

func (r *timeSplitRepo) Upsert(ctx context.Context, split *model.ActivityTimeSplit) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(split).Error
}

func (r *timeSplitRepo) UpsertAll(ctx context.Context, splits []model.ActivityTimeSplit) error {
	if len(splits) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&splits).Error
}

func (r *timeSplitRepo) DeleteByActivity(ctx context.Context, activityID string) error {
	return r.db.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Delete(&model.ActivityTimeSplit{}).Error
}

func (r *timeSplitRepo) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&model.ActivityTimeSplit{}).Error
}
