package model

import (
	"time"

	"github.com/fyerfyer/issue-report-splitter/internal/models"
	"github.com/fyerfyer/issue-report-splitter/internal/services"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// ReportInfo 报告信息
type ReportInfo struct {
	ReportID   string     `json:"report_id"`             // 报告ID
	FileName   string     `json:"filename"`              // 文件名
	FileType   string     `json:"file_type"`             // 文件类型
	FileSize   int64      `json:"file_size"`             // 文件大小
	Status     string     `json:"status"`                // 处理状态
	PageCount  int        `json:"page_count"`            // 总页数
	IssueCount int        `json:"issue_count"`           // 问题数量
	Error      string     `json:"error,omitempty"`       // 错误信息
	ArchiveID  string     `json:"archive_id,omitempty"`  // 最近一次生成的压缩包
	Pattern    string     `json:"pattern,omitempty"`     // 最近一次使用的模板
	UploadedAt time.Time  `json:"uploaded_at"`           // 上传时间
	AnalyzedAt *time.Time `json:"analyzed_at,omitempty"` // 分析完成时间
}

// NewReportInfo 从数据库模型构建响应
func NewReportInfo(r *models.Report) ReportInfo {
	return ReportInfo{
		ReportID:   r.ID,
		FileName:   r.FileName,
		FileType:   r.FileType,
		FileSize:   r.FileSize,
		Status:     string(r.Status),
		PageCount:  r.PageCount,
		IssueCount: r.IssueCount,
		Error:      r.Error,
		ArchiveID:  r.ArchiveID,
		Pattern:    r.Pattern,
		UploadedAt: r.UploadedAt,
		AnalyzedAt: r.AnalyzedAt,
	}
}

// IssueInfo 问题信息，页码从1开始
type IssueInfo struct {
	IssueID   string            `json:"issue_id"`
	StartPage int               `json:"start_page"`
	EndPage   int               `json:"end_page"`
	Pages     int               `json:"pages"`
	Fields    map[string]string `json:"fields"`
}

// NewIssueInfo 从数据库模型构建响应
func NewIssueInfo(i *models.Issue) IssueInfo {
	b := i.Boundary()
	return IssueInfo{
		IssueID:   b.ID,
		StartPage: b.Start + 1,
		EndPage:   b.End,
		Pages:     b.Pages(),
		Fields:    i.Metadata().Fields,
	}
}

// ReportDetailResponse 报告详情响应
type ReportDetailResponse struct {
	ReportInfo
	Issues []IssueInfo `json:"issues"`
}

// NewReportDetailResponse 构建报告详情
func NewReportDetailResponse(r *models.Report, issues []*models.Issue) ReportDetailResponse {
	resp := ReportDetailResponse{
		ReportInfo: NewReportInfo(r),
		Issues:     make([]IssueInfo, 0, len(issues)),
	}
	for _, i := range issues {
		resp.Issues = append(resp.Issues, NewIssueInfo(i))
	}
	return resp
}

// ReportListResponse 报告列表响应
type ReportListResponse struct {
	Total    int64        `json:"total"`     // 总数量
	Page     int          `json:"page"`      // 当前页码
	PageSize int          `json:"page_size"` // 每页大小
	Reports  []ReportInfo `json:"reports"`   // 报告列表
}

// FieldsResponse 可用字段响应
type FieldsResponse struct {
	ReportID string   `json:"report_id"`
	Fields   []string `json:"fields"`
}

// ArchiveResponse 压缩包生成响应
type ArchiveResponse struct {
	ArchiveID   string           `json:"archive_id"`   // 压缩包ID
	FileName    string           `json:"filename"`     // 压缩包文件名
	Size        int64            `json:"size"`         // 压缩包大小
	Pattern     string           `json:"pattern"`      // 实际使用的模板
	Skipped     int              `json:"skipped"`      // 跳过的问题数量
	DownloadURL string           `json:"download_url"` // 下载地址
	Entries     []services.Entry `json:"entries"`      // 每个问题的结果
}

// NewArchiveResponse 从生成结果构建响应
func NewArchiveResponse(res *services.ArchiveResult) ArchiveResponse {
	return ArchiveResponse{
		ArchiveID:   res.Archive.ID,
		FileName:    res.Archive.Name,
		Size:        res.Archive.Size,
		Pattern:     res.Pattern,
		Skipped:     res.Skipped,
		DownloadURL: "/api/archives/" + res.Archive.ID,
		Entries:     res.Entries,
	}
}

// ReportDeleteResponse 报告删除响应
type ReportDeleteResponse struct {
	Success  bool   `json:"success"`   // 是否成功
	ReportID string `json:"report_id"` // 报告ID
}
