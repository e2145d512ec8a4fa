package models

import "errors"

var (
	// ErrReportNotFound 报告不存在错误
	ErrReportNotFound = errors.New("report not found")

	// ErrInvalidReportStatus 无效的报告状态错误
	ErrInvalidReportStatus = errors.New("invalid report status")
)

// Valid 判断状态是否合法
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusUploaded, ReportStatusAnalyzed, ReportStatusEmpty,
		ReportStatusArchived, ReportStatusFailed:
		return true
	}
	return false
}
