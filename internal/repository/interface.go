package repository

import (
	"context"

	"github.com/fyerfyer/issue-report-splitter/internal/models"
)

// ReportRepository 报告仓储接口
// 负责报告元数据以及识别出的问题的存储和检索
type ReportRepository interface {
	// Create 创建报告记录
	Create(report *models.Report) error

	// Update 更新报告记录
	Update(report *models.Report) error

	// GetByID 根据ID获取报告
	GetByID(id string) (*models.Report, error)

	// FindByChecksum 根据内容校验和查找最近一次分析成功的报告
	FindByChecksum(checksum string) (*models.Report, error)

	// List 列出报告列表，支持分页和筛选
	List(offset, limit int, filters map[string]interface{}) ([]*models.Report, int64, error)

	// Delete 删除报告及其问题
	Delete(id string) error

	// UpdateStatus 更新报告状态
	UpdateStatus(id string, status models.ReportStatus, errorMsg string) error

	// SetArchive 记录最近一次生成的压缩包
	SetArchive(id, archiveID, pattern string) error

	// ReplaceIssues 用新的分析结果替换报告的全部问题
	ReplaceIssues(reportID string, issues []*models.Issue) error

	// GetIssues 按顺序获取报告的所有问题
	GetIssues(reportID string) ([]*models.Issue, error)

	// CountIssues 统计报告的问题数量
	CountIssues(reportID string) (int, error)

	// WithContext 创建带有上下文的仓储
	WithContext(ctx context.Context) ReportRepository
}
