//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mission-control/internal/model"
	"mission-control/internal/repository"
	"mission-control/pkg/database"
	pkgerrors "mission-control/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "roster-test-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "创建临时目录失败: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(dir)

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(dir, "test.db"))
	testDB, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法打开测试数据库: %v\n", err)
		os.Exit(1)
	}
	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取底层 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "迁移失败: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Exit(code)
}

// setupTestData 清空全部表并写入一名人员与一个活动
func setupTestData(t *testing.T) (*repository.Repository, *model.User, *model.Activity) {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewRepository(testDB)

	for _, fn := range []func(context.Context) error{
		repo.Assignment.DeleteAll, repo.Requirement.DeleteAll,
		repo.UserProfession.DeleteAll, repo.TimeSplit.DeleteAll,
		repo.User.DeleteAll, repo.Activity.DeleteAll,
	} {
		if err := fn(ctx); err != nil {
			t.Fatalf("清空表失败: %v", err)
		}
	}

	user := &model.User{ID: "u1", Name: "测试人员", IsActive: true}
	if err := repo.User.Upsert(ctx, user); err != nil {
		t.Fatalf("创建人员失败: %v", err)
	}
	activity := &model.Activity{ID: "a1", Name: "测试活动", StartAt: 0, EndAt: 3600_000, TimeSplitMode: model.TimeSplitNone}
	if err := repo.Activity.Upsert(ctx, activity); err != nil {
		t.Fatalf("创建活动失败: %v", err)
	}
	return repo, user, activity
}

// ═══════════════════════════════════════════════════════════
// 人员
// ═══════════════════════════════════════════════════════════

func TestUserRepo_UpdateZeroRows(t *testing.T) {
	repo, _, _ := setupTestData(t)
	ctx := context.Background()

	rows, err := repo.User.Update(ctx, &model.User{ID: "missing", Name: "无"})
	if err != nil {
		t.Fatalf("零行更新不应报错: %v", err)
	}
	if rows != 0 {
		t.Fatalf("目标不存在应返回 0 行: %d", rows)
	}
}

func TestUserRepo_UpsertOverwrites(t *testing.T) {
	repo, user, _ := setupTestData(t)
	ctx := context.Background()

	user.Name = "改名"
	user.CanFillAnyRole = true
	if err := repo.User.Upsert(ctx, user); err != nil {
		t.Fatalf("重复 Upsert 失败: %v", err)
	}
	got, err := repo.User.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if got.Name != "改名" || !got.CanFillAnyRole {
		t.Fatalf("Upsert 未覆盖: %+v", got)
	}
}

// ═══════════════════════════════════════════════════════════
// 外键与约束
// ═══════════════════════════════════════════════════════════

func TestDeleteUser_CascadesChildren(t *testing.T) {
	repo, user, activity := setupTestData(t)
	ctx := context.Background()

	if err := repo.UserProfession.InsertAll(ctx, []model.UserProfession{
		{UserID: user.ID, Profession: model.ProfessionMedic},
	}); err != nil {
		t.Fatalf("插入职能失败: %v", err)
	}
	if err := repo.Assignment.Insert(ctx, &model.Assignment{
		ID: "as1", ActivityID: activity.ID, UserID: user.ID,
		Role: model.ProfessionMedic, OrderInActivity: 0,
	}); err != nil {
		t.Fatalf("插入指派失败: %v", err)
	}

	if err := repo.User.DeleteByID(ctx, user.ID); err != nil {
		t.Fatalf("删除人员失败: %v", err)
	}

	professions, _ := repo.UserProfession.ListForUser(ctx, user.ID)
	if len(professions) != 0 {
		t.Fatal("人员职能未级联删除")
	}
	assignments, _ := repo.Assignment.ListByUser(ctx, user.ID)
	if len(assignments) != 0 {
		t.Fatal("指派未级联删除")
	}
}

func TestDeleteActivity_CascadesChildren(t *testing.T) {
	repo, user, activity := setupTestData(t)
	ctx := context.Background()

	_ = repo.Requirement.Upsert(ctx, &model.ActivityRoleRequirement{
		ID: "r1", ActivityID: activity.ID, Profession: model.ProfessionMedic, RequiredCount: 1,
	})
	_ = repo.Assignment.Insert(ctx, &model.Assignment{
		ID: "as1", ActivityID: activity.ID, UserID: user.ID,
		Role: model.ProfessionMedic, OrderInActivity: 0,
	})
	_ = repo.TimeSplit.Upsert(ctx, &model.ActivityTimeSplit{
		ActivityID: activity.ID, SplitMinutes: 30,
		Segments: model.SegmentList{{UserID: user.ID, Start: 0, End: 1800_000}},
	})

	if err := repo.Activity.DeleteByID(ctx, activity.ID); err != nil {
		t.Fatalf("删除活动失败: %v", err)
	}

	reqs, _ := repo.Requirement.ListForActivity(ctx, activity.ID)
	if len(reqs) != 0 {
		t.Fatal("需求未级联删除")
	}
	assignments, _ := repo.Assignment.ListByActivity(ctx, activity.ID)
	if len(assignments) != 0 {
		t.Fatal("指派未级联删除")
	}
	if _, err := repo.TimeSplit.Get(ctx, activity.ID); err == nil {
		t.Fatal("时间分段未级联删除")
	}
}

func TestAssignment_DuplicateOrderRejected(t *testing.T) {
	repo, user, activity := setupTestData(t)
	ctx := context.Background()

	second := &model.User{ID: "u2", Name: "乙", IsActive: true}
	_ = repo.User.Upsert(ctx, second)

	if err := repo.Assignment.Insert(ctx, &model.Assignment{
		ID: "as1", ActivityID: activity.ID, UserID: user.ID,
		Role: model.ProfessionMedic, OrderInActivity: 0,
	}); err != nil {
		t.Fatalf("首次插入失败: %v", err)
	}

	err := repo.Assignment.Insert(ctx, &model.Assignment{
		ID: "as2", ActivityID: activity.ID, UserID: second.ID,
		Role: model.ProfessionDriver, OrderInActivity: 0,
	})
	if err == nil {
		t.Fatal("重复序号位应被唯一约束拒绝")
	}
	if !pkgerrors.IsConstraintViolation(err) {
		t.Fatalf("应识别为约束冲突: %v", err)
	}
}

func TestAssignment_DanglingForeignKeyRejected(t *testing.T) {
	repo, user, _ := setupTestData(t)
	ctx := context.Background()

	err := repo.Assignment.Insert(ctx, &model.Assignment{
		ID: "as1", ActivityID: "missing", UserID: user.ID,
		Role: model.ProfessionMedic, OrderInActivity: 0,
	})
	if err == nil {
		t.Fatal("悬挂外键应被拒绝")
	}
	if !pkgerrors.IsConstraintViolation(err) {
		t.Fatalf("应识别为约束冲突: %v", err)
	}
}

func TestAssignment_DeleteByPairRemovesAllSeats(t *testing.T) {
	repo, user, activity := setupTestData(t)
	ctx := context.Background()

	second := &model.User{ID: "u2", Name: "乙", IsActive: true}
	_ = repo.User.Upsert(ctx, second)
	_ = repo.Assignment.InsertAll(ctx, []model.Assignment{
		{ID: "as1", ActivityID: activity.ID, UserID: user.ID, Role: model.ProfessionMedic, OrderInActivity: 0},
		{ID: "as2", ActivityID: activity.ID, UserID: second.ID, Role: model.ProfessionDriver, OrderInActivity: 1},
		{ID: "as3", ActivityID: activity.ID, UserID: user.ID, Role: model.ProfessionDriver, OrderInActivity: 2},
	})

	if err := repo.Assignment.Delete(ctx, activity.ID, user.ID); err != nil {
		t.Fatalf("按 (活动, 人员) 删除失败: %v", err)
	}

	remaining, _ := repo.Assignment.ListByActivity(ctx, activity.ID)
	if len(remaining) != 1 || remaining[0].UserID != second.ID {
		t.Fatalf("该人员的全部序号位都应被删除: %v", remaining)
	}
}

func TestUserProfession_DeleteSingleRow(t *testing.T) {
	repo, user, _ := setupTestData(t)
	ctx := context.Background()

	_ = repo.UserProfession.InsertAll(ctx, []model.UserProfession{
		{UserID: user.ID, Profession: model.ProfessionMedic},
		{UserID: user.ID, Profession: model.ProfessionDriver},
	})

	if err := repo.UserProfession.Delete(ctx, user.ID, model.ProfessionMedic); err != nil {
		t.Fatalf("删除单条职能失败: %v", err)
	}

	professions, _ := repo.UserProfession.ListForUser(ctx, user.ID)
	if len(professions) != 1 || professions[0] != model.ProfessionDriver {
		t.Fatalf("应只剩 Driver 职能: %v", professions)
	}
}

func TestRequirement_UpsertUpdatesCount(t *testing.T) {
	repo, _, activity := setupTestData(t)
	ctx := context.Background()

	_ = repo.Requirement.Upsert(ctx, &model.ActivityRoleRequirement{
		ID: "r1", ActivityID: activity.ID, Profession: model.ProfessionMedic, RequiredCount: 1,
	})
	// 同活动同职能再次 Upsert 只更新计数，不产生第二行
	if err := repo.Requirement.Upsert(ctx, &model.ActivityRoleRequirement{
		ID: "r2", ActivityID: activity.ID, Profession: model.ProfessionMedic, RequiredCount: 3,
	}); err != nil {
		t.Fatalf("冲突 Upsert 失败: %v", err)
	}

	reqs, _ := repo.Requirement.ListForActivity(ctx, activity.ID)
	if len(reqs) != 1 {
		t.Fatalf("应只有一行需求: %d", len(reqs))
	}
	if reqs[0].RequiredCount != 3 {
		t.Fatalf("计数未更新: %d", reqs[0].RequiredCount)
	}
}

// ═══════════════════════════════════════════════════════════
// 事务与集合替换
// ═══════════════════════════════════════════════════════════

func TestReplaceForUser_Transactional(t *testing.T) {
	repo, user, _ := setupTestData(t)
	ctx := context.Background()

	_ = repo.UserProfession.InsertAll(ctx, []model.UserProfession{
		{UserID: user.ID, Profession: model.ProfessionMedic},
		{UserID: user.ID, Profession: model.ProfessionDriver},
	})

	if err := repo.UserProfession.ReplaceForUser(ctx, user.ID, []model.Profession{model.ProfessionMag}); err != nil {
		t.Fatalf("替换失败: %v", err)
	}
	professions, _ := repo.UserProfession.ListForUser(ctx, user.ID)
	if len(professions) != 1 || professions[0] != model.ProfessionMag {
		t.Fatalf("替换结果不符: %v", professions)
	}
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	repo, user, activity := setupTestData(t)
	ctx := context.Background()

	err := repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Assignment.Insert(ctx, &model.Assignment{
			ID: "as1", ActivityID: activity.ID, UserID: user.ID,
			Role: model.ProfessionMedic, OrderInActivity: 0,
		}); err != nil {
			return err
		}
		// 第二条违反唯一约束，整个事务应回滚
		return tx.Assignment.Insert(ctx, &model.Assignment{
			ID: "as2", ActivityID: activity.ID, UserID: user.ID,
			Role: model.ProfessionMedic, OrderInActivity: 0,
		})
	})
	if err == nil {
		t.Fatal("事务应失败")
	}

	assignments, _ := repo.Assignment.ListByActivity(ctx, activity.ID)
	if len(assignments) != 0 {
		t.Fatalf("回滚后不应残留指派: %v", assignments)
	}
}

func TestAssignmentRepo_MaxOrder(t *testing.T) {
	repo, user, activity := setupTestData(t)
	ctx := context.Background()

	if got, err := repo.Assignment.MaxOrder(ctx, activity.ID); err != nil || got != -1 {
		t.Fatalf("无指派时 MaxOrder 应为 -1: got=%d err=%v", got, err)
	}

	_ = repo.Assignment.Insert(ctx, &model.Assignment{
		ID: "as1", ActivityID: activity.ID, UserID: user.ID,
		Role: model.ProfessionMedic, OrderInActivity: 7,
	})
	if got, _ := repo.Assignment.MaxOrder(ctx, activity.ID); got != 7 {
		t.Fatalf("MaxOrder 不符: %d", got)
	}
}

func TestTimeSplit_SegmentsRoundTripThroughDB(t *testing.T) {
	repo, user, activity := setupTestData(t)
	ctx := context.Background()

	split := &model.ActivityTimeSplit{
		ActivityID:   activity.ID,
		SplitMinutes: 30,
		Segments: model.SegmentList{
			{UserID: user.ID, Start: 0, End: 1800_000},
			{UserID: user.ID, Start: 1800_000, End: 3600_000},
		},
	}
	if err := repo.TimeSplit.Upsert(ctx, split); err != nil {
		t.Fatalf("写入分段失败: %v", err)
	}

	got, err := repo.TimeSplit.Get(ctx, activity.ID)
	if err != nil {
		t.Fatalf("读取分段失败: %v", err)
	}
	if len(got.Segments) != 2 || got.Segments[1].End != 3600_000 {
		t.Fatalf("分段列往返不符: %+v", got.Segments)
	}
}

func TestActivityRepo_DayAndWindowQueries(t *testing.T) {
	repo, _, _ := setupTestData(t)
	ctx := context.Background()

	day := int64(2 * 86400_000)
	_ = repo.Activity.Upsert(ctx, &model.Activity{
		ID: "a2", Name: "第二天", StartAt: day, EndAt: day + 3600_000,
		DateEpochDay: 2, TimeSplitMode: model.TimeSplitNone,
	})

	onDay, err := repo.Activity.ListOnDay(ctx, 2)
	if err != nil || len(onDay) != 1 || onDay[0].ID != "a2" {
		t.Fatalf("按天查询不符: %v err=%v", onDay, err)
	}

	active, _ := repo.Activity.ListActiveAt(ctx, day+100)
	if len(active) != 1 || active[0].ID != "a2" {
		t.Fatalf("进行中查询不符: %v", active)
	}

	overlapping, _ := repo.Activity.ListOverlapping(ctx, day-100, day+100)
	if len(overlapping) != 1 || overlapping[0].ID != "a2" {
		t.Fatalf("窗口重叠查询不符: %v", overlapping)
	}
}
