package model

import (
	"mime/multipart"
)

// 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// Offset 当前页的起始偏移
func (p *PaginationRequest) Offset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// ReportUploadRequest 报告上传请求
type ReportUploadRequest struct {
	File *multipart.FileHeader `form:"file" binding:"required"` // 报告文件
}

// ReportIDRequest 路径中的报告ID
type ReportIDRequest struct {
	ID string `uri:"id" binding:"required"`
}

// ReportListRequest 报告列表请求
type ReportListRequest struct {
	PaginationRequest
	Status   string `form:"status" json:"status" binding:"omitempty,oneof=uploaded analyzed empty archived failed"` // 状态过滤
	FileName string `form:"file_name" json:"file_name" binding:"omitempty,max=255"`                                  // 文件名模糊匹配
}

// Filters 转换为仓储层的过滤条件
func (r *ReportListRequest) Filters() map[string]interface{} {
	filters := make(map[string]interface{})
	if r.Status != "" {
		filters["status"] = r.Status
	}
	if r.FileName != "" {
		filters["file_name"] = r.FileName
	}
	return filters
}

// ArchiveRequest 生成压缩包请求
// pattern与fields二选一，都为空时使用默认模板
type ArchiveRequest struct {
	Pattern       string   `json:"pattern" binding:"omitempty,max=255,filename_pattern"`
	Fields        []string `json:"fields" binding:"omitempty,max=16,dive,required"`
	Separator     string   `json:"separator" binding:"omitempty,max=8"`
	MissingPolicy string   `json:"missing_policy" binding:"omitempty,oneof=skip placeholder fail"`
	Placeholder   string   `json:"placeholder" binding:"omitempty,max=64"`
}
