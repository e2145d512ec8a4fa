package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fyerfyer/issue-report-splitter/api/middleware"
	"github.com/fyerfyer/issue-report-splitter/api/model"
	"github.com/fyerfyer/issue-report-splitter/internal/document"
	"github.com/fyerfyer/issue-report-splitter/internal/issue"
	"github.com/fyerfyer/issue-report-splitter/internal/models"
	"github.com/fyerfyer/issue-report-splitter/internal/services"
	"github.com/fyerfyer/issue-report-splitter/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ReportHandler 处理问题报告相关的API请求
type ReportHandler struct {
	splitService *services.SplitService // 拆分服务
	maxUpload    int64                  // 上传大小上限（字节），0表示不限制
	logger       *logrus.Logger         // 日志记录器
}

// NewReportHandler 创建新的报告处理器
func NewReportHandler(splitService *services.SplitService, maxUpload int64) *ReportHandler {
	return &ReportHandler{
		splitService: splitService,
		maxUpload:    maxUpload,
		logger:       middleware.GetLogger(),
	}
}

// UploadReport 上传报告并立即识别问题
// POST /api/reports
func (h *ReportHandler) UploadReport(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	var req model.ReportUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			middleware.HandleError(c, middleware.NewTooLargeError(
				fmt.Sprintf("report exceeds %d bytes", h.maxUpload)))
			return
		}
		middleware.HandleError(c, middleware.NewValidationError("invalid upload request", model.ValidationMessage(err)))
		return
	}

	filename := req.File.Filename
	file, err := req.File.Open()
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("failed to open uploaded file", err.Error()))
		return
	}
	defer file.Close()

	report, err := h.splitService.Upload(c.Request.Context(), file, filename)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			middleware.FieldError:   err.Error(),
			middleware.FieldTraceID: middleware.GetTraceID(c),
			"filename":              filename,
		}).Warn("Report upload failed")
		middleware.HandleError(c, mapError(err))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewReportInfo(report)))
}

// ListReports 分页列出报告
// GET /api/reports
func (h *ReportHandler) ListReports(c *gin.Context) {
	var req model.ReportListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid list request", model.ValidationMessage(err)))
		return
	}

	reports, total, err := h.splitService.ListReports(c.Request.Context(), req.Offset(), req.GetPageSize(), req.Filters())
	if err != nil {
		middleware.HandleError(c, mapError(err))
		return
	}

	resp := model.ReportListResponse{
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
		Reports:  make([]model.ReportInfo, 0, len(reports)),
	}
	for _, r := range reports {
		resp.Reports = append(resp.Reports, model.NewReportInfo(r))
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetReport 获取报告详情及识别出的问题
// GET /api/reports/:id
func (h *ReportHandler) GetReport(c *gin.Context) {
	var req model.ReportIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid report id", model.ValidationMessage(err)))
		return
	}

	report, issues, err := h.splitService.GetReport(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, mapError(err))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewReportDetailResponse(report, issues)))
}

// GetFields 列出可用于文件名模板的字段
// GET /api/reports/:id/fields
func (h *ReportHandler) GetFields(c *gin.Context) {
	var req model.ReportIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid report id", model.ValidationMessage(err)))
		return
	}

	fields, err := h.splitService.AvailableFields(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, mapError(err))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.FieldsResponse{
		ReportID: req.ID,
		Fields:   fields,
	}))
}

// BuildArchive 按文件名模板拆分报告并打包
// POST /api/reports/:id/archive
func (h *ReportHandler) BuildArchive(c *gin.Context) {
	var uri model.ReportIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid report id", model.ValidationMessage(err)))
		return
	}

	var req model.ArchiveRequest
	// 请求体可以为空，此时全部使用默认值
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.HandleError(c, middleware.NewValidationError("invalid archive request", model.ValidationMessage(err)))
		return
	}

	result, err := h.splitService.BuildArchive(c.Request.Context(), uri.ID, services.ArchiveRequest{
		Pattern:       req.Pattern,
		Fields:        req.Fields,
		Separator:     req.Separator,
		MissingPolicy: services.MissingPolicy(req.MissingPolicy),
		Placeholder:   req.Placeholder,
	})
	if err != nil {
		middleware.HandleError(c, mapError(err))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewArchiveResponse(result)))
}

// DownloadArchive 下载压缩包
// GET /api/archives/:id
func (h *ReportHandler) DownloadArchive(c *gin.Context) {
	archiveID := c.Param("id")
	rc, name, err := h.splitService.OpenArchive(c.Request.Context(), archiveID)
	if err != nil {
		middleware.HandleError(c, mapError(err))
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Header("Content-Type", "application/zip")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		h.logger.WithFields(logrus.Fields{
			middleware.FieldError:   err.Error(),
			middleware.FieldTraceID: middleware.GetTraceID(c),
			"archive_id":            archiveID,
		}).Warn("Archive download interrupted")
	}
}

// DeleteReport 删除报告及其文件
// DELETE /api/reports/:id
func (h *ReportHandler) DeleteReport(c *gin.Context) {
	var req model.ReportIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid report id", model.ValidationMessage(err)))
		return
	}

	if err := h.splitService.DeleteReport(c.Request.Context(), req.ID); err != nil {
		middleware.HandleError(c, mapError(err))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.ReportDeleteResponse{
		Success:  true,
		ReportID: req.ID,
	}))
}

// mapError 把服务层错误转换为API错误
func mapError(err error) error {
	var syntaxErr *issue.SyntaxError
	switch {
	case errors.Is(err, models.ErrReportNotFound), errors.Is(err, storage.ErrNotFound):
		return middleware.NewNotFoundError(err.Error())
	case errors.As(err, &syntaxErr),
		errors.Is(err, services.ErrInvalidPolicy),
		errors.Is(err, document.ErrUnsupportedType):
		return middleware.NewValidationError(err.Error())
	case errors.Is(err, document.ErrNotIssueReport),
		errors.Is(err, services.ErrNoIssues),
		errors.Is(err, issue.ErrMissingField):
		return middleware.NewBusinessError(err.Error())
	default:
		return middleware.NewInternalError("request failed", err.Error())
	}
}
