package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyerfyer/issue-report-splitter/internal/database"
	"github.com/fyerfyer/issue-report-splitter/internal/models"
	"gorm.io/gorm"
)

// reportRepository 报告仓储实现
type reportRepository struct {
	db *gorm.DB // 数据库连接
}

// NewReportRepository 创建报告仓储实例
func NewReportRepository() ReportRepository {
	return &reportRepository{db: database.MustDB()}
}

// NewReportRepositoryWithDB 使用指定的数据库连接创建报告仓储实例
func NewReportRepositoryWithDB(db *gorm.DB) ReportRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &reportRepository{db: db}
}

// Create 创建报告记录
func (r *reportRepository) Create(report *models.Report) error {
	if report.ID == "" {
		return errors.New("report ID cannot be empty")
	}

	return r.db.Omit("Issues").Create(report).Error
}

// Update 更新报告记录
func (r *reportRepository) Update(report *models.Report) error {
	if report.ID == "" {
		return errors.New("report ID cannot be empty")
	}

	return r.db.Omit("Issues").Save(report).Error
}

// GetByID 根据ID获取报告
func (r *reportRepository) GetByID(id string) (*models.Report, error) {
	var report models.Report
	err := r.db.Where("id = ?", id).First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrReportNotFound, id)
		}
		return nil, err
	}
	return &report, nil
}

// FindByChecksum 根据内容校验和查找最近一次分析成功的报告
func (r *reportRepository) FindByChecksum(checksum string) (*models.Report, error) {
	var report models.Report
	err := r.db.Where("checksum = ? AND status IN ?", checksum, []models.ReportStatus{
		models.ReportStatusAnalyzed,
		models.ReportStatusEmpty,
		models.ReportStatusArchived,
	}).Order("uploaded_at DESC").First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: checksum %s", models.ErrReportNotFound, checksum)
		}
		return nil, err
	}
	return &report, nil
}

// List 列出报告列表，支持分页和筛选
func (r *reportRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.Report, int64, error) {
	var reports []*models.Report
	var total int64

	query := r.db.Model(&models.Report{})

	if filters != nil {
		// 状态过滤
		switch s := filters["status"].(type) {
		case models.ReportStatus:
			if s != "" {
				query = query.Where("status = ?", string(s))
			}
		case string:
			if s != "" {
				query = query.Where("status = ?", s)
			}
		}

		// 时间范围过滤
		if startTime, ok := filters["start_time"].(string); ok && startTime != "" {
			query = query.Where("uploaded_at >= ?", startTime)
		}

		if endTime, ok := filters["end_time"].(string); ok && endTime != "" {
			query = query.Where("uploaded_at <= ?", endTime)
		}

		if archiveID, ok := filters["archive_id"].(string); ok && archiveID != "" {
			query = query.Where("archive_id = ?", archiveID)
		}

		if checksum, ok := filters["checksum"].(string); ok && checksum != "" {
			query = query.Where("checksum = ?", checksum)
		}

		// 文件名过滤
		if fileName, ok := filters["file_name"].(string); ok && fileName != "" {
			query = query.Where("file_name LIKE ?", "%"+fileName+"%")
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("uploaded_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&reports).Error
	if err != nil {
		return nil, 0, err
	}

	return reports, total, nil
}

// Delete 删除报告及其问题
func (r *reportRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("report_id = ?", id).Delete(&models.Issue{}).Error; err != nil {
			return err
		}

		res := tx.Where("id = ?", id).Delete(&models.Report{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", models.ErrReportNotFound, id)
		}
		return nil
	})
}

// UpdateStatus 更新报告状态
func (r *reportRepository) UpdateStatus(id string, status models.ReportStatus, errorMsg string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %s", models.ErrInvalidReportStatus, status)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":     status,
		"error":      errorMsg,
		"updated_at": now,
	}

	// 分析结束时记录完成时间
	if status == models.ReportStatusAnalyzed || status == models.ReportStatusEmpty {
		updates["analyzed_at"] = &now
	}

	res := r.db.Model(&models.Report{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrReportNotFound, id)
	}
	return nil
}

// SetArchive 记录最近一次生成的压缩包
func (r *reportRepository) SetArchive(id, archiveID, pattern string) error {
	res := r.db.Model(&models.Report{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.ReportStatusArchived,
			"archive_id": archiveID,
			"pattern":    pattern,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrReportNotFound, id)
	}
	return nil
}

// ReplaceIssues 用新的分析结果替换报告的全部问题
func (r *reportRepository) ReplaceIssues(reportID string, issues []*models.Issue) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("report_id = ?", reportID).Delete(&models.Issue{}).Error; err != nil {
			return err
		}

		if len(issues) > 0 {
			for i, is := range issues {
				is.ReportID = reportID
				is.Position = i
			}
			if err := tx.CreateInBatches(issues, 100).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.Report{}).
			Where("id = ?", reportID).
			Updates(map[string]interface{}{
				"issue_count": len(issues),
				"updated_at":  time.Now(),
			}).Error
	})
}

// GetIssues 按顺序获取报告的所有问题
func (r *reportRepository) GetIssues(reportID string) ([]*models.Issue, error) {
	var issues []*models.Issue
	err := r.db.Where("report_id = ?", reportID).
		Order("position ASC").
		Find(&issues).Error
	return issues, err
}

// CountIssues 统计报告的问题数量
func (r *reportRepository) CountIssues(reportID string) (int, error) {
	var count int64
	err := r.db.Model(&models.Issue{}).
		Where("report_id = ?", reportID).
		Count(&count).Error
	return int(count), err
}

// WithContext 创建带有上下文的仓储
func (r *reportRepository) WithContext(ctx context.Context) ReportRepository {
	return &reportRepository{db: r.db.WithContext(ctx)}
}
