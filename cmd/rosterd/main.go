package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"mission-control/config"
	"mission-control/internal/remote"
	"mission-control/internal/repository"
	"mission-control/internal/service"
	"mission-control/internal/watch"
	"mission-control/pkg/database"
	applogger "mission-control/pkg/logger"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.String("db_path", cfg.Database.Path),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接远端镜像（可选：连接失败时降级为纯本地运行，不中断启动）
	var mirror remote.Mirror
	if cfg.Mirror.Enabled {
		m, err := remote.NewRedisMirror(&cfg.Mirror, logger)
		if err != nil {
			logger.Warn("远端镜像连接失败，以纯本地模式运行", zap.Error(err))
		} else {
			mirror = m
		}
	}

	// 5. 依赖注入: Repository → Hub → Service
	repo := repository.NewRepository(db)
	hub := watch.NewHub()
	svc := service.NewService(cfg, repo, mirror, hub, logger)

	// 6. 启动时同步 + 周期同步
	if cfg.Sync.RunOnStart && mirror != nil {
		go func() {
			if !svc.Sync.SyncOnce(context.Background()) {
				logger.Warn("启动同步未完成，继续使用本地数据")
			}
		}()
	}

	var scheduler *cron.Cron
	if cfg.Sync.Cron != "" && mirror != nil {
		scheduler = cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
		))
		if _, err := scheduler.AddFunc(cfg.Sync.Cron, func() {
			svc.Sync.SyncOnce(context.Background())
		}); err != nil {
			logger.Fatal("周期同步调度表达式无效", zap.String("cron", cfg.Sync.Cron), zap.Error(err))
		}
		scheduler.Start()
		logger.Info("周期同步已启动", zap.String("cron", cfg.Sync.Cron))
	}

	// 7. 监听配置文件变更
	cfg.WatchFile(logger)

	// 8. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	// 关闭数据库连接
	closeDB, _ := db.DB()
	if closeDB != nil {
		closeDB.Close()
	}

	// 关闭远端镜像连接
	if mirror != nil {
		mirror.Close()
	}

	logger.Info("服务已关闭")
}
