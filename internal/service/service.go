// Package service 排班业务层：写透网关、席位规划、时间分段、
// 全量同步与导出。
package service

import (
	"go.uber.org/zap"

	"mission-control/config"
	"mission-control/internal/remote"
	"mission-control/internal/repository"
	"mission-control/internal/watch"
)

// Service 业务服务聚合入口
type Service struct {
	Roster RosterService
	Sync   *SyncService
	Export *ExportService
}

// NewService 按配置装配服务。镜像可用时排班服务套上写透装饰器，
// 否则以纯本地模式运行（镜像不可达属于降级而非启动失败）。
func NewService(cfg *config.Config, repo *repository.Repository, mirror remote.Mirror, hub *watch.Hub, logger *zap.Logger) *Service {
	roster := NewLocalRoster(repo, hub, logger)
	if mirror != nil {
		roster = NewMirroredRoster(roster, mirror, cfg.Mirror.OpTimeout, logger)
	}
	return &Service{
		Roster: roster,
		Sync:   NewSyncService(repo, mirror, hub, cfg.Sync.Timeout, logger),
		Export: NewExportService(roster, logger),
	}
}
