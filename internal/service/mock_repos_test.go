package service

import (
	"context"
	"sort"

	sqlite3 "github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"mission-control/internal/model"
	"mission-control/internal/repository"
)

// errConstraintStub 模拟序号位唯一约束被数据库拒绝
var errConstraintStub error = sqlite3.Error{Code: sqlite3.ErrConstraint}

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Upsert(_ context.Context, user *model.User) error {
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *mockUserRepo) UpsertAll(_ context.Context, users []model.User) error {
	for i := range users {
		clone := users[i]
		m.users[clone.ID] = &clone
	}
	return nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) (int64, error) {
	if _, ok := m.users[user.ID]; !ok {
		return 0, nil
	}
	clone := *user
	m.users[user.ID] = &clone
	return 1, nil
}

func (m *mockUserRepo) DeleteByID(_ context.Context, id string) error {
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) DeleteAll(_ context.Context) error {
	m.users = make(map[string]*model.User)
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListAll(_ context.Context) ([]model.User, error) {
	result := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ── Mock UserProfessionRepository ──

type mockUserProfessionRepo struct {
	rows  []model.UserProfession
	users *mockUserRepo
}

func newMockUserProfessionRepo(users *mockUserRepo) *mockUserProfessionRepo {
	return &mockUserProfessionRepo{users: users}
}

func (m *mockUserProfessionRepo) ListForUser(_ context.Context, userID string) ([]model.Profession, error) {
	var result []model.Profession
	for _, row := range m.rows {
		if row.UserID == userID {
			result = append(result, row.Profession)
		}
	}
	return result, nil
}

func (m *mockUserProfessionRepo) ListUsersWithProfession(_ context.Context, p model.Profession) ([]model.User, error) {
	var result []model.User
	for _, row := range m.rows {
		if row.Profession != p {
			continue
		}
		if u, ok := m.users.users[row.UserID]; ok && u.IsActive {
			result = append(result, *u)
		}
	}
	return result, nil
}

func (m *mockUserProfessionRepo) InsertAll(_ context.Context, rows []model.UserProfession) error {
	for _, row := range rows {
		if m.has(row.UserID, row.Profession) {
			continue
		}
		m.rows = append(m.rows, row)
	}
	return nil
}

func (m *mockUserProfessionRepo) Delete(_ context.Context, userID string, p model.Profession) error {
	kept := m.rows[:0]
	for _, row := range m.rows {
		if row.UserID == userID && row.Profession == p {
			continue
		}
		kept = append(kept, row)
	}
	m.rows = kept
	return nil
}

func (m *mockUserProfessionRepo) DeleteAll(_ context.Context) error {
	m.rows = nil
	return nil
}

func (m *mockUserProfessionRepo) ReplaceForUser(_ context.Context, userID string, professions []model.Profession) error {
	kept := m.rows[:0]
	for _, row := range m.rows {
		if row.UserID != userID {
			kept = append(kept, row)
		}
	}
	m.rows = kept
	for _, p := range professions {
		m.rows = append(m.rows, model.UserProfession{UserID: userID, Profession: p})
	}
	return nil
}

func (m *mockUserProfessionRepo) has(userID string, p model.Profession) bool {
	for _, row := range m.rows {
		if row.UserID == userID && row.Profession == p {
			return true
		}
	}
	return false
}

// ── Mock ActivityRepository ──

type mockActivityRepo struct {
	activities map[string]*model.Activity
}

func newMockActivityRepo() *mockActivityRepo {
	return &mockActivityRepo{activities: make(map[string]*model.Activity)}
}

func (m *mockActivityRepo) Upsert(_ context.Context, activity *model.Activity) error {
	clone := *activity
	m.activities[activity.ID] = &clone
	return nil
}

func (m *mockActivityRepo) UpsertAll(_ context.Context, activities []model.Activity) error {
	for i := range activities {
		clone := activities[i]
		m.activities[clone.ID] = &clone
	}
	return nil
}

func (m *mockActivityRepo) Update(_ context.Context, activity *model.Activity) (int64, error) {
	if _, ok := m.activities[activity.ID]; !ok {
		return 0, nil
	}
	clone := *activity
	m.activities[activity.ID] = &clone
	return 1, nil
}

func (m *mockActivityRepo) DeleteByID(_ context.Context, id string) error {
	delete(m.activities, id)
	return nil
}

func (m *mockActivityRepo) DeleteAll(_ context.Context) error {
	m.activities = make(map[string]*model.Activity)
	return nil
}

func (m *mockActivityRepo) GetByID(_ context.Context, id string) (*model.Activity, error) {
	if a, ok := m.activities[id]; ok {
		clone := *a
		return &clone, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockActivityRepo) ListAll(_ context.Context) ([]model.Activity, error) {
	result := make([]model.Activity, 0, len(m.activities))
	for _, a := range m.activities {
		result = append(result, *a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartAt < result[j].StartAt })
	return result, nil
}

func (m *mockActivityRepo) ListOnDay(_ context.Context, epochDay int) ([]model.Activity, error) {
	var result []model.Activity
	for _, a := range m.activities {
		if a.DateEpochDay == epochDay {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartAt < result[j].StartAt })
	return result, nil
}

func (m *mockActivityRepo) ListActiveAt(_ context.Context, now int64) ([]model.Activity, error) {
	var result []model.Activity
	for _, a := range m.activities {
		if a.StartAt <= now && a.EndAt > now {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *mockActivityRepo) ListOverlapping(_ context.Context, from, to int64) ([]model.Activity, error) {
	var result []model.Activity
	for _, a := range m.activities {
		if a.StartAt < to && a.EndAt > from {
			result = append(result, *a)
		}
	}
	return result, nil
}

// ── Mock RequirementRepository ──

type mockRequirementRepo struct {
	reqs map[string]*model.ActivityRoleRequirement // 键: activityID+"/"+profession
}

func newMockRequirementRepo() *mockRequirementRepo {
	return &mockRequirementRepo{reqs: make(map[string]*model.ActivityRoleRequirement)}
}

func reqKey(activityID string, p model.Profession) string {
	return activityID + "/" + string(p)
}

func (m *mockRequirementRepo) Upsert(_ context.Context, req *model.ActivityRoleRequirement) error {
	clone := *req
	m.reqs[reqKey(req.ActivityID, req.Profession)] = &clone
	return nil
}

func (m *mockRequirementRepo) UpsertAll(ctx context.Context, reqs []model.ActivityRoleRequirement) error {
	for i := range reqs {
		if err := m.Upsert(ctx, &reqs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockRequirementRepo) ListForActivity(_ context.Context, activityID string) ([]model.ActivityRoleRequirement, error) {
	var result []model.ActivityRoleRequirement
	for _, r := range m.reqs {
		if r.ActivityID == activityID {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Profession < result[j].Profession })
	return result, nil
}

func (m *mockRequirementRepo) RequiredCounts(_ context.Context) ([]model.RequiredCountRow, error) {
	byActivity := make(map[string]int)
	for _, r := range m.reqs {
		byActivity[r.ActivityID] += r.RequiredCount
	}
	var result []model.RequiredCountRow
	for id, count := range byActivity {
		result = append(result, model.RequiredCountRow{ActivityID: id, Required: count})
	}
	return result, nil
}

func (m *mockRequirementRepo) Delete(_ context.Context, activityID string, p model.Profession) error {
	delete(m.reqs, reqKey(activityID, p))
	return nil
}

func (m *mockRequirementRepo) DeleteAllForActivity(_ context.Context, activityID string) error {
	for key, r := range m.reqs {
		if r.ActivityID == activityID {
			delete(m.reqs, key)
		}
	}
	return nil
}

func (m *mockRequirementRepo) DeleteAll(_ context.Context) error {
	m.reqs = make(map[string]*model.ActivityRoleRequirement)
	return nil
}

// ── Mock AssignmentRepository ──

type mockAssignmentRepo struct {
	assignments map[string]*model.Assignment

	insertErr error // 注入：下一次 Insert/InsertAll 返回的错误
}

func newMockAssignmentRepo() *mockAssignmentRepo {
	return &mockAssignmentRepo{assignments: make(map[string]*model.Assignment)}
}

func (m *mockAssignmentRepo) Insert(_ context.Context, assignment *model.Assignment) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, a := range m.assignments {
		if a.ActivityID == assignment.ActivityID && a.OrderInActivity == assignment.OrderInActivity {
			return errConstraintStub
		}
	}
	clone := *assignment
	m.assignments[assignment.ID] = &clone
	return nil
}

func (m *mockAssignmentRepo) InsertAll(ctx context.Context, assignments []model.Assignment) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	for i := range assignments {
		if err := m.Insert(ctx, &assignments[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockAssignmentRepo) DeleteByID(_ context.Context, id string) error {
	delete(m.assignments, id)
	return nil
}

func (m *mockAssignmentRepo) Delete(_ context.Context, activityID, userID string) error {
	for id, a := range m.assignments {
		if a.ActivityID == activityID && a.UserID == userID {
			delete(m.assignments, id)
		}
	}
	return nil
}

func (m *mockAssignmentRepo) DeleteByActivity(_ context.Context, activityID string) error {
	for id, a := range m.assignments {
		if a.ActivityID == activityID {
			delete(m.assignments, id)
		}
	}
	return nil
}

func (m *mockAssignmentRepo) DeleteAll(_ context.Context) error {
	m.assignments = make(map[string]*model.Assignment)
	return nil
}

func (m *mockAssignmentRepo) ListAll(_ context.Context) ([]model.Assignment, error) {
	result := make([]model.Assignment, 0, len(m.assignments))
	for _, a := range m.assignments {
		result = append(result, *a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockAssignmentRepo) ListByActivity(_ context.Context, activityID string) ([]model.Assignment, error) {
	var result []model.Assignment
	for _, a := range m.assignments {
		if a.ActivityID == activityID {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].OrderInActivity < result[j].OrderInActivity })
	return result, nil
}

func (m *mockAssignmentRepo) ListByUser(_ context.Context, userID string) ([]model.Assignment, error) {
	var result []model.Assignment
	for _, a := range m.assignments {
		if a.UserID == userID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *mockAssignmentRepo) AssignedCounts(_ context.Context) ([]model.AssignedCountRow, error) {
	byActivity := make(map[string]int)
	for _, a := range m.assignments {
		byActivity[a.ActivityID]++
	}
	var result []model.AssignedCountRow
	for id, count := range byActivity {
		result = append(result, model.AssignedCountRow{ActivityID: id, Assigned: count})
	}
	return result, nil
}

func (m *mockAssignmentRepo) MaxOrder(_ context.Context, activityID string) (int, error) {
	max := -1
	for _, a := range m.assignments {
		if a.ActivityID == activityID && a.OrderInActivity > max {
			max = a.OrderInActivity
		}
	}
	return max, nil
}

// ── Mock TimeSplitRepository ──

type mockTimeSplitRepo struct {
	splits map[string]*model.ActivityTimeSplit
}

func newMockTimeSplitRepo() *mockTimeSplitRepo {
	return &mockTimeSplitRepo{splits: make(map[string]*model.ActivityTimeSplit)}
}

func (m *mockTimeSplitRepo) Get(_ context.Context, activityID string) (*model.ActivityTimeSplit, error) {
	if s, ok := m.splits[activityID]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTimeSplitRepo) Upsert(_ context.Context, split *model.ActivityTimeSplit) error {
	clone := *split
	m.splits[split.ActivityID] = &clone
	return nil
}

func (m *mockTimeSplitRepo) UpsertAll(ctx context.Context, splits []model.ActivityTimeSplit) error {
	for i := range splits {
		if err := m.Upsert(ctx, &splits[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockTimeSplitRepo) DeleteByActivity(_ context.Context, activityID string) error {
	delete(m.splits, activityID)
	return nil
}

func (m *mockTimeSplitRepo) DeleteAll(_ context.Context) error {
	m.splits = make(map[string]*model.ActivityTimeSplit)
	return nil
}

// ── 聚合装配 ──

// mockRepos 全部实体 mock 仓库的集合
type mockRepos struct {
	users       *mockUserRepo
	professions *mockUserProfessionRepo
	activities  *mockActivityRepo
	reqs        *mockRequirementRepo
	assignments *mockAssignmentRepo
	splits      *mockTimeSplitRepo
}

func newMockRepos() *mockRepos {
	users := newMockUserRepo()
	return &mockRepos{
		users:       users,
		professions: newMockUserProfessionRepo(users),
		activities:  newMockActivityRepo(),
		reqs:        newMockRequirementRepo(),
		assignments: newMockAssignmentRepo(),
		splits:      newMockTimeSplitRepo(),
	}
}

// toRepository 装配带事务语义的 Repository 聚合：
// 事务回调失败时恢复进入前的快照，模拟全有或全无的回滚。
func (m *mockRepos) toRepository() *repository.Repository {
	repo := &repository.Repository{
		User:           m.users,
		UserProfession: m.professions,
		Activity:       m.activities,
		Requirement:    m.reqs,
		Assignment:     m.assignments,
		TimeSplit:      m.splits,
	}
	repo.Tx = func(ctx context.Context, fn func(tx *repository.Repository) error) error {
		snap := m.snapshot()
		if err := fn(repo); err != nil {
			m.restore(snap)
			return err
		}
		return nil
	}
	return repo
}

type mockSnapshot struct {
	users       map[string]*model.User
	professions []model.UserProfession
	activities  map[string]*model.Activity
	reqs        map[string]*model.ActivityRoleRequirement
	assignments map[string]*model.Assignment
	splits      map[string]*model.ActivityTimeSplit
}

func (m *mockRepos) snapshot() mockSnapshot {
	snap := mockSnapshot{
		users:       make(map[string]*model.User, len(m.users.users)),
		professions: append([]model.UserProfession(nil), m.professions.rows...),
		activities:  make(map[string]*model.Activity, len(m.activities.activities)),
		reqs:        make(map[string]*model.ActivityRoleRequirement, len(m.reqs.reqs)),
		assignments: make(map[string]*model.Assignment, len(m.assignments.assignments)),
		splits:      make(map[string]*model.ActivityTimeSplit, len(m.splits.splits)),
	}
	for k, v := range m.users.users {
		clone := *v
		snap.users[k] = &clone
	}
	for k, v := range m.activities.activities {
		clone := *v
		snap.activities[k] = &clone
	}
	for k, v := range m.reqs.reqs {
		clone := *v
		snap.reqs[k] = &clone
	}
	for k, v := range m.assignments.assignments {
		clone := *v
		snap.assignments[k] = &clone
	}
	for k, v := range m.splits.splits {
		clone := *v
		snap.splits[k] = &clone
	}
	return snap
}

func (m *mockRepos) restore(snap mockSnapshot) {
	m.users.users = snap.users
	m.professions.rows = snap.professions
	m.activities.activities = snap.activities
	m.reqs.reqs = snap.reqs
	m.assignments.assignments = snap.assignments
	m.splits.splits = snap.splits
}
