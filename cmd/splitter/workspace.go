package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyerfyer/issue-report-splitter/api/middleware"
	"github.com/fyerfyer/issue-report-splitter/internal/database"
	"github.com/fyerfyer/issue-report-splitter/internal/models"
	"github.com/fyerfyer/issue-report-splitter/internal/repository"
	"github.com/fyerfyer/issue-report-splitter/internal/services"
	"github.com/fyerfyer/issue-report-splitter/pkg/storage"
)

// workspace 单次命令使用的临时数据库和存储
type workspace struct {
	dir     string
	service *services.SplitService
}

// openWorkspace 在临时目录中创建服务
func openWorkspace(opts ...services.SplitOption) (*workspace, error) {
	dir, err := os.MkdirTemp("", "splitter-*")
	if err != nil {
		return nil, err
	}

	logger := middleware.GetLogger()
	if err := database.Setup(&database.Config{
		Type:         "sqlite",
		DSN:          filepath.Join(dir, "reports.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, logger); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: filepath.Join(dir, "files")})
	if err != nil {
		database.Close()
		os.RemoveAll(dir)
		return nil, err
	}

	opts = append([]services.SplitOption{
		services.WithLogger(logger),
		services.WithReportMarker(marker, 3),
	}, opts...)
	return &workspace{
		dir:     dir,
		service: services.NewSplitService(store, repository.NewReportRepository(), opts...),
	}, nil
}

// load 上传输入文件并完成分析
func (w *workspace) load(ctx context.Context, path string) (*models.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	report, err := w.service.Upload(ctx, f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return report, nil
}

func (w *workspace) Close() {
	_ = database.Close()
	_ = os.RemoveAll(w.dir)
}
