package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config 应用全局配置结构体
type Config struct {
	Database DatabaseConfig `mapstructure:"db"`
	Mirror   MirrorConfig   `mapstructure:"mirror"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Log      LogConfig      `mapstructure:"log"`

	v *viper.Viper
}

// DatabaseConfig 本地 SQLite 数据库配置
type DatabaseConfig struct {
	Path        string `mapstructure:"path"`
	BusyTimeout int    `mapstructure:"busy_timeout"` // 写锁等待（毫秒）
}

// DSN 生成 SQLite 连接字符串
// 外键约束必须开启：子表级联删除依赖它
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=%d", c.Path, c.BusyTimeout)
}

// MirrorConfig 远端镜像（Redis 文档库）配置
type MirrorConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	OpTimeout time.Duration `mapstructure:"op_timeout"` // 单次写透操作上限
	WriteRate float64       `mapstructure:"write_rate"` // 每秒写入上限，≤0 不限速
}

// SyncConfig 全量同步配置
type SyncConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`      // 整个拉取-替换操作的时限
	RunOnStart bool          `mapstructure:"run_on_start"` // 启动时执行一次同步
	Cron       string        `mapstructure:"cron"`         // 周期同步调度表达式
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("db.path", "mission-control.db")
	v.SetDefault("db.busy_timeout", 5000)

	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.addr", "localhost:6379")
	v.SetDefault("mirror.password", "")
	v.SetDefault("mirror.db", 0)
	v.SetDefault("mirror.op_timeout", "3s")
	v.SetDefault("mirror.write_rate", 0)

	v.SetDefault("sync.timeout", "10s")
	v.SetDefault("sync.run_on_start", true)
	v.SetDefault("sync.cron", "@every 15m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		// 配置文件缺失时仅使用默认值 + 环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("MISSION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.v = v

	return cfg, nil
}

// WatchFile 监听配置文件变更并记录日志
// 当前不做运行中热更新，变更在下次启动生效
func (c *Config) WatchFile(logger *zap.Logger) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("配置文件已变更，将在下次启动生效",
			zap.String("file", e.Name),
			zap.String("op", e.Op.String()),
		)
	})
	c.v.WatchConfig()
}
