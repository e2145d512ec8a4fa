package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyerfyer/issue-report-splitter/api"
	"github.com/fyerfyer/issue-report-splitter/api/handler"
	"github.com/fyerfyer/issue-report-splitter/api/middleware"
	"github.com/fyerfyer/issue-report-splitter/api/model"
	appconfig "github.com/fyerfyer/issue-report-splitter/config"
	"github.com/fyerfyer/issue-report-splitter/internal/cache"
	"github.com/fyerfyer/issue-report-splitter/internal/database"
	"github.com/fyerfyer/issue-report-splitter/internal/repository"
	"github.com/fyerfyer/issue-report-splitter/internal/services"
	"github.com/fyerfyer/issue-report-splitter/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// 命令行选项，显式指定时覆盖配置文件
type options struct {
	ConfigFile string
	Port       int
	Mode       string
	LogLevel   string
}

func main() {
	// .env不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: Failed to load .env: %v", err)
	}

	opts := parseFlags()

	cfg, err := appconfig.Load(opts.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg, opts)

	gin.SetMode(cfg.Server.Mode)

	// 初始化日志
	logger, err := middleware.ConfigureLogger(middleware.LogOptions{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		log.Fatalf("Failed to configure logger: %v", err)
	}
	logger.Info("Starting Issue Report Splitter...")

	if err := model.RegisterValidators(); err != nil {
		logger.Fatalf("Failed to register validators: %v", err)
	}

	// 初始化数据库
	if err := setupDatabase(cfg, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// 创建文件存储服务
	fileStorage, err := setupStorage(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// 创建页面文本缓存
	pageCache, err := setupPageCache(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize cache: %v", err)
	}

	splitService, err := setupSplitService(cfg, fileStorage, pageCache, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize split service: %v", err)
	}

	reportHandler := handler.NewReportHandler(splitService, cfg.Server.MaxUploadMB<<20)
	r := api.SetupRouter(reportHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 优雅关闭
	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// parseFlags 解析命令行参数
func parseFlags() options {
	opts := options{}

	flag.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to config file")
	flag.IntVar(&opts.Port, "port", 8080, "Server port")
	flag.StringVar(&opts.Mode, "mode", "release", "Run mode (debug/release)")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level (debug/info/warn/error)")

	flag.Parse()
	return opts
}

// applyFlags 只用命令行上显式设置的参数覆盖配置
func applyFlags(cfg *appconfig.Config, opts options) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port = opts.Port
		case "mode":
			cfg.Server.Mode = opts.Mode
		case "log-level":
			cfg.Log.Level = opts.LogLevel
		}
	})
}

// setupDatabase 设置数据库
func setupDatabase(cfg *appconfig.Config, logger *logrus.Logger) error {
	return database.Setup(&database.Config{
		Type:         cfg.Database.Type,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		MaxLifetime:  time.Hour,
	}, logger)
}

// setupStorage 设置文件存储服务
func setupStorage(cfg *appconfig.Config) (storage.Storage, error) {
	switch cfg.Storage.Type {
	case "minio":
		return storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
		})
	case "local", "":
		if err := os.MkdirAll(cfg.Storage.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %v", err)
		}
		return storage.NewLocalStorage(storage.LocalConfig{Path: cfg.Storage.Path})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// setupPageCache 设置页面文本缓存，未启用时返回nil
func setupPageCache(cfg *appconfig.Config, logger *logrus.Logger) (*cache.PageCache, error) {
	if !cfg.Cache.Enable {
		logger.Info("Page cache disabled")
		return nil, nil
	}

	ttl := time.Duration(cfg.Cache.TTL) * time.Second
	c, err := cache.NewCache(cache.Config{
		Type:            cfg.Cache.Type,
		RedisAddr:       cfg.Cache.Address,
		RedisPassword:   cfg.Cache.Password,
		RedisDB:         cfg.Cache.DB,
		Prefix:          cfg.Cache.Prefix,
		DefaultTTL:      ttl,
		CleanupInterval: 10 * time.Minute,
		MaxEntries:      cfg.Cache.MaxEntries,
	})
	if err != nil {
		return nil, err
	}

	logger.WithField("type", cfg.Cache.Type).Info("Page cache initialized")
	return cache.NewPageCache(c, ttl), nil
}

// setupSplitService 按配置创建拆分服务
func setupSplitService(cfg *appconfig.Config, store storage.Storage, pageCache *cache.PageCache, logger *logrus.Logger) (*services.SplitService, error) {
	policy, err := services.ParseMissingPolicy(cfg.Split.MissingPolicy)
	if err != nil {
		return nil, err
	}

	opts := []services.SplitOption{
		services.WithLogger(logger),
		services.WithReportMarker(cfg.Split.Marker, cfg.Split.ScanPages),
		services.WithDefaultPattern(cfg.Split.Pattern, cfg.Split.Separator),
		services.WithMissingPolicy(policy, cfg.Split.Placeholder),
	}
	if pageCache != nil {
		opts = append(opts, services.WithPageCache(pageCache))
	}
	if len(cfg.Split.Fields) > 0 {
		opts = append(opts, services.WithFieldLabels(cfg.Split.Fields...))
	}

	return services.NewSplitService(store, repository.NewReportRepository(), opts...), nil
}
