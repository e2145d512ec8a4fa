package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
	Split    SplitConfig    `mapstructure:"split"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`          // 服务器主机
	Port         int           `mapstructure:"port"`          // 服务器端口
	Mode         string        `mapstructure:"mode"`          // gin运行模式：debug、release、test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`  // 读取超时
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // 写入超时
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"` // 上传文件大小上限
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type"`     // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`     // 本地存储路径
	Bucket    string `mapstructure:"bucket"`   // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"` // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // 数据库类型，目前只支持sqlite
	DSN  string `mapstructure:"dsn"`  // 数据源名称
}

// CacheConfig 页面文本缓存配置
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`   // 是否启用缓存
	Type     string `mapstructure:"type"`     // 缓存类型：memory 或 redis
	Address  string `mapstructure:"address"`  // Redis地址
	Password string `mapstructure:"password"` // Redis密码
	DB       int    `mapstructure:"db"`       // Redis数据库
	Prefix   string `mapstructure:"prefix"`   // 键前缀
	TTL      int    `mapstructure:"ttl"`      // 缓存TTL（秒）

	MaxEntries int `mapstructure:"max_entries"` // 内存缓存最多保存的报告数，0表示不限制
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`        // 日志级别
	File       string `mapstructure:"file"`         // 日志文件，为空时只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"`  // 单个日志文件大小上限
	MaxBackups int    `mapstructure:"max_backups"`  // 保留的旧日志文件数量
	MaxAgeDays int    `mapstructure:"max_age_days"` // 旧日志保留天数
	Compress   bool   `mapstructure:"compress"`     // 是否压缩旧日志
}

// SplitConfig 报告拆分配置
type SplitConfig struct {
	Marker        string   `mapstructure:"marker"`         // 报告标识文本，为空时不检查
	ScanPages     int      `mapstructure:"scan_pages"`     // 在前几页中查找报告标识
	Pattern       string   `mapstructure:"pattern"`        // 默认文件名模板
	Separator     string   `mapstructure:"separator"`      // 字段列表拼模板时的分隔符
	MissingPolicy string   `mapstructure:"missing_policy"` // 缺失字段策略：skip、placeholder、fail
	Placeholder   string   `mapstructure:"placeholder"`    // 缺失字段的占位值
	Fields        []string `mapstructure:"fields"`         // 需要提取的字段标签，为空时使用默认字段
}

// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	var config Config

	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}

		// 找不到配置文件时写出一份默认配置
		log.Printf("Warning: Config file not found at %s, using defaults", configPath)
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err == nil {
			if err := v.WriteConfigAs(configPath); err != nil {
				log.Printf("Warning: Could not write default config to %s: %v", configPath, err)
			}
		}
	} else {
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	// 支持环境变量覆盖，例如 SERVER_PORT、SPLIT_PATTERN
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	return processEnvironmentVariables(&config), nil
}

// processEnvironmentVariables 展开写成 ${NAME} 的敏感配置项
func processEnvironmentVariables(cfg *Config) *Config {
	cfg.Storage.AccessKey = expandEnv(cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = expandEnv(cfg.Storage.SecretKey)
	cfg.Cache.Password = expandEnv(cfg.Cache.Password)
	return cfg
}

// expandEnv 值为 ${NAME} 且环境变量存在时返回环境变量的值
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		if envVal := os.Getenv(s[2 : len(s)-1]); envVal != "" {
			return envVal
		}
	}
	return s
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.max_upload_mb", 200)

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./data/files")
	v.SetDefault("storage.bucket", "issue-reports")
	v.SetDefault("storage.use_ssl", false)

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/reports.db")

	// 缓存默认配置
	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.prefix", "splitter")
	v.SetDefault("cache.ttl", 86400) // 1天
	v.SetDefault("cache.max_entries", 256)

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	// 拆分默认配置
	v.SetDefault("split.marker", "Issue Report")
	v.SetDefault("split.scan_pages", 3)
	v.SetDefault("split.pattern", "Issue_{Issue ID}")
	v.SetDefault("split.separator", "_")
	v.SetDefault("split.missing_policy", "skip")
	v.SetDefault("split.placeholder", "NA")
}
