package service

import (
	"context"
	"errors"
	"time"

	"mission-control/internal/model"
	"mission-control/internal/remote"
)

var errMirrorDown = errors.New("镜像不可达")

// mockMirror 远端镜像 mock：记录调用、可注入失败与拉取延迟
type mockMirror struct {
	snapshot remote.Snapshot

	failAll   bool          // 所有操作返回 errMirrorDown
	pullDelay time.Duration // PullAll 在返回前等待（用于模拟超时）

	calls []string

	lastReplacedAssignments []model.Assignment // 最近一次范围替换写入的指派
	lastReplacedProfessions []model.Profession // 最近一次范围替换写入的职能
}

func newMockMirror() *mockMirror {
	return &mockMirror{}
}

func (m *mockMirror) record(op string) error {
	m.calls = append(m.calls, op)
	if m.failAll {
		return errMirrorDown
	}
	return nil
}

func (m *mockMirror) PullAll(ctx context.Context) (*remote.Snapshot, error) {
	if err := m.record("pull_all"); err != nil {
		return nil, err
	}
	if m.pullDelay > 0 {
		select {
		case <-time.After(m.pullDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	snap := m.snapshot
	return &snap, nil
}

func (m *mockMirror) UpsertUser(_ context.Context, _ *model.User) error {
	return m.record("upsert_user")
}

func (m *mockMirror) DeleteUser(_ context.Context, _ string) error {
	return m.record("delete_user")
}

func (m *mockMirror) UpsertActivity(_ context.Context, _ *model.Activity) error {
	return m.record("upsert_activity")
}

func (m *mockMirror) DeleteActivity(_ context.Context, _ string) error {
	return m.record("delete_activity")
}

func (m *mockMirror) UpsertAssignment(_ context.Context, _ *model.Assignment) error {
	return m.record("upsert_assignment")
}

func (m *mockMirror) DeleteAssignment(_ context.Context, _ string) error {
	return m.record("delete_assignment")
}

func (m *mockMirror) ReplaceAssignmentsForActivity(_ context.Context, _ string, assignments []model.Assignment) error {
	m.lastReplacedAssignments = assignments
	return m.record("replace_assignments")
}

func (m *mockMirror) UpsertRequirement(_ context.Context, _ *model.ActivityRoleRequirement) error {
	return m.record("upsert_requirement")
}

func (m *mockMirror) UpsertAllRequirements(_ context.Context, _ []model.ActivityRoleRequirement) error {
	return m.record("upsert_all_requirements")
}

func (m *mockMirror) DeleteRequirement(_ context.Context, _ string, _ model.Profession) error {
	return m.record("delete_requirement")
}

func (m *mockMirror) DeleteAllRequirementsForActivity(_ context.Context, _ string) error {
	return m.record("delete_all_requirements")
}

func (m *mockMirror) ReplaceUserProfessions(_ context.Context, _ string, professions []model.Profession) error {
	m.lastReplacedProfessions = professions
	return m.record("replace_user_professions")
}

func (m *mockMirror) ReplaceTimeSplit(_ context.Context, _ *model.ActivityTimeSplit) error {
	return m.record("replace_time_split")
}

func (m *mockMirror) DeleteTimeSplit(_ context.Context, _ string) error {
	return m.record("delete_time_split")
}

func (m *mockMirror) Close() error { return nil }

func (m *mockMirror) callCount(op string) int {
	n := 0
	for _, c := range m.calls {
		if c == op {
			n++
		}
	}
	return n
}

var _ remote.Mirror = (*mockMirror)(nil)
