package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyerfyer/issue-report-splitter/internal/archive"
	"github.com/fyerfyer/issue-report-splitter/internal/cache"
	"github.com/fyerfyer/issue-report-splitter/internal/document"
	"github.com/fyerfyer/issue-report-splitter/internal/issue"
	"github.com/fyerfyer/issue-report-splitter/internal/models"
	"github.com/fyerfyer/issue-report-splitter/internal/repository"
	"github.com/fyerfyer/issue-report-splitter/pkg/storage"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoIssues 报告中没有可以拆分的问题
	ErrNoIssues = errors.New("report contains no issues")

	// ErrInvalidPolicy 未知的缺失字段处理策略
	ErrInvalidPolicy = errors.New("invalid missing field policy")
)

// MissingPolicy 模板引用的字段缺失时的处理方式
type MissingPolicy string

const (
	// MissingSkip 跳过该问题，在清单中记录错误
	MissingSkip MissingPolicy = "skip"
	// MissingPlaceholder 用占位值代替缺失字段
	MissingPlaceholder MissingPolicy = "placeholder"
	// MissingFail 整个压缩包生成失败
	MissingFail MissingPolicy = "fail"
)

// ParseMissingPolicy 解析策略名称，空字符串返回默认的skip
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch p := MissingPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return MissingSkip, nil
	case MissingSkip, MissingPlaceholder, MissingFail:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidPolicy, s)
	}
}

// ArchiveRequest 生成压缩包的参数
// Pattern优先；为空时用Fields和Separator拼出模板；都为空时使用服务的默认模板
type ArchiveRequest struct {
	Pattern       string
	Fields        []string
	Separator     string
	MissingPolicy MissingPolicy
	Placeholder   string
}

// Entry 压缩包中的一个问题
type Entry struct {
	IssueID   string `json:"issue_id"`
	Filename  string `json:"filename,omitempty"`
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`
	Error     string `json:"error,omitempty"`
}

// ArchiveResult 压缩包生成结果
type ArchiveResult struct {
	Archive storage.FileInfo
	Pattern string
	Entries []Entry
	Skipped int
}

// SplitService 报告拆分服务
// 负责协调报告存储、页面文本抽取、问题识别和压缩包生成
type SplitService struct {
	storage        storage.Storage             // 文件存储服务
	repo           repository.ReportRepository // 报告元数据存储
	pages          *cache.PageCache            // 页面文本缓存，可为空
	extractor      *issue.Extractor            // 字段提取器
	marker         string                      // 报告标识文本
	scanPages      int                         // 在前几页中查找报告标识
	defaultPattern string                      // 默认文件名模板
	separator      string                      // 字段列表拼模板时的分隔符
	policy         MissingPolicy               // 默认缺失字段策略
	placeholder    string                      // 默认占位值
	logger         *logrus.Logger              // 日志记录器
}

// SplitOption 拆分服务配置选项
type SplitOption func(*SplitService)

// NewSplitService 创建拆分服务
func NewSplitService(store storage.Storage, repo repository.ReportRepository, opts ...SplitOption) *SplitService {
	srv := &SplitService{
		storage:        store,
		repo:           repo,
		extractor:      issue.NewExtractor(),
		marker:         "Issue Report",
		scanPages:      3,
		defaultPattern: "Issue_{Issue ID}",
		separator:      "_",
		policy:         MissingSkip,
		placeholder:    "NA",
		logger:         logrus.New(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) SplitOption {
	return func(s *SplitService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPageCache 设置页面文本缓存
func WithPageCache(pc *cache.PageCache) SplitOption {
	return func(s *SplitService) {
		s.pages = pc
	}
}

// WithFieldLabels 设置需要提取的字段标签
func WithFieldLabels(labels ...string) SplitOption {
	return func(s *SplitService) {
		if len(labels) > 0 {
			s.extractor = issue.NewExtractor(labels...)
		}
	}
}

// WithReportMarker 设置报告标识文本和查找的页数，marker为空时不检查
func WithReportMarker(marker string, scanPages int) SplitOption {
	return func(s *SplitService) {
		s.marker = marker
		s.scanPages = scanPages
	}
}

// WithDefaultPattern 设置默认文件名模板和字段分隔符
func WithDefaultPattern(pattern, separator string) SplitOption {
	return func(s *SplitService) {
		if pattern != "" {
			s.defaultPattern = pattern
		}
		s.separator = separator
	}
}

// WithMissingPolicy 设置默认缺失字段策略和占位值
func WithMissingPolicy(policy MissingPolicy, placeholder string) SplitOption {
	return func(s *SplitService) {
		if policy != "" {
			s.policy = policy
		}
		if placeholder != "" {
			s.placeholder = placeholder
		}
	}
}

// Upload 保存上传的报告并立即分析
// 分析失败时仍返回已保存的报告记录，状态为failed
func (s *SplitService) Upload(ctx context.Context, r io.Reader, filename string) (*models.Report, error) {
	contentType := document.DetectContentType(filename)
	if contentType == document.Unknown {
		return nil, fmt.Errorf("%w: %s", document.ErrUnsupportedType, filepath.Ext(filename))
	}

	info, err := s.storage.Save(r, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}

	report := &models.Report{
		ID:       info.ID,
		FileName: filename,
		FileType: string(contentType),
		FilePath: info.Path,
		FileSize: info.Size,
		Checksum: info.Checksum,
		Status:   models.ReportStatusUploaded,
	}
	if err := s.repo.WithContext(ctx).Create(report); err != nil {
		_ = s.storage.Delete(info.ID)
		return nil, fmt.Errorf("failed to create report record: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"report_id": report.ID,
		"file_name": filename,
		"file_size": info.Size,
	}).Info("Report uploaded")

	return s.Analyze(ctx, report.ID)
}

// Analyze 识别报告中的问题并保存
func (s *SplitService) Analyze(ctx context.Context, reportID string) (*models.Report, error) {
	repo := s.repo.WithContext(ctx)
	report, err := repo.GetByID(reportID)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{
		"report_id": report.ID,
		"file_name": report.FileName,
	})

	result, pageCount, err := s.analyze(ctx, report)
	if err != nil {
		log.WithError(err).Error("Report analysis failed")
		if uerr := repo.UpdateStatus(report.ID, models.ReportStatusFailed, err.Error()); uerr != nil {
			log.WithError(uerr).Error("Failed to mark report as failed")
		}
		report.Status = models.ReportStatusFailed
		report.Error = err.Error()
		return report, err
	}

	issues := make([]*models.Issue, 0, result.Len())
	for i, b := range result.Boundaries {
		row, err := models.NewIssue(report.ID, i, b, result.Metadata[i])
		if err != nil {
			return report, fmt.Errorf("failed to encode issue %s: %w", b.ID, err)
		}
		issues = append(issues, row)
	}
	if err := repo.ReplaceIssues(report.ID, issues); err != nil {
		return report, fmt.Errorf("failed to save issues: %w", err)
	}

	report.PageCount = pageCount
	report.IssueCount = result.Len()
	report.Error = ""
	report.Status = models.ReportStatusAnalyzed
	if result.Empty() {
		report.Status = models.ReportStatusEmpty
	}
	if err := repo.Update(report); err != nil {
		return report, fmt.Errorf("failed to update report: %w", err)
	}
	if err := repo.UpdateStatus(report.ID, report.Status, ""); err != nil {
		return report, fmt.Errorf("failed to update report status: %w", err)
	}

	log.WithFields(logrus.Fields{
		"pages":  pageCount,
		"issues": result.Len(),
	}).Info("Report analyzed")

	return repo.GetByID(report.ID)
}

// analyze 读取页面文本并运行识别流程
func (s *SplitService) analyze(ctx context.Context, report *models.Report) (issue.Result, int, error) {
	pages, err := s.loadPages(ctx, report)
	if err != nil {
		return issue.Result{}, 0, err
	}

	if !document.IsIssueReport(pages, s.marker, s.scanPages) {
		return issue.Result{}, len(pages), document.ErrNotIssueReport
	}

	return issue.AnalyzeWith(s.extractor, pages), len(pages), nil
}

// loadPages 优先从缓存读取页面文本
func (s *SplitService) loadPages(ctx context.Context, report *models.Report) ([]issue.PageText, error) {
	if s.pages != nil && report.Checksum != "" {
		pages, found, err := s.pages.Get(report.Checksum)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to read page cache")
		}
		if found {
			s.logger.WithField("report_id", report.ID).Debug("Page text loaded from cache")
			return pages, nil
		}
	}

	path, cleanup, err := s.localCopy(ctx, report)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	source, err := document.PageSourceFactory(path)
	if err != nil {
		return nil, err
	}
	pages, err := source.Pages(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pages: %w", err)
	}

	if s.pages != nil && report.Checksum != "" {
		if err := s.pages.Set(report.Checksum, pages); err != nil {
			s.logger.WithError(err).Warn("Failed to write page cache")
		}
	}
	return pages, nil
}

// localCopy 返回报告在本地文件系统中的路径
// 存储不在本地时复制到临时文件，cleanup负责删除
func (s *SplitService) localCopy(ctx context.Context, report *models.Report) (string, func(), error) {
	noop := func() {}

	if resolver, ok := s.storage.(storage.PathResolver); ok {
		path, err := resolver.LocalPath(report.ID)
		if err != nil {
			return "", noop, fmt.Errorf("failed to locate report file: %w", err)
		}
		return path, noop, nil
	}

	rc, err := s.storage.Get(report.ID)
	if err != nil {
		return "", noop, fmt.Errorf("failed to open report file: %w", err)
	}
	defer rc.Close()

	ext := document.ContentType(report.FileType).Ext()
	tmp, err := os.CreateTemp("", "report-*"+ext)
	if err != nil {
		return "", noop, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: rc}); err != nil {
		tmp.Close()
		cleanup()
		return "", noop, fmt.Errorf("failed to copy report file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", noop, err
	}
	return tmp.Name(), cleanup, nil
}

// resolvePattern 根据请求确定使用的模板
func (s *SplitService) resolvePattern(req ArchiveRequest) (issue.Pattern, error) {
	raw := req.Pattern
	if raw == "" && len(req.Fields) > 0 {
		sep := req.Separator
		if sep == "" {
			sep = s.separator
		}
		raw = issue.PatternFromFields(req.Fields, sep)
	}
	if raw == "" {
		raw = s.defaultPattern
	}
	return issue.ParsePattern(raw)
}

// BuildArchive 按模板为每个问题生成子文档并打包
func (s *SplitService) BuildArchive(ctx context.Context, reportID string, req ArchiveRequest) (*ArchiveResult, error) {
	pattern, err := s.resolvePattern(req)
	if err != nil {
		return nil, err
	}

	policy := req.MissingPolicy
	if policy == "" {
		policy = s.policy
	}
	if _, err := ParseMissingPolicy(string(policy)); err != nil {
		return nil, err
	}
	placeholder := req.Placeholder
	if placeholder == "" {
		placeholder = s.placeholder
	}

	repo := s.repo.WithContext(ctx)
	report, err := repo.GetByID(reportID)
	if err != nil {
		return nil, err
	}
	rows, err := repo.GetIssues(report.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load issues: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoIssues
	}

	contentType := document.ContentType(report.FileType)
	pattern.Ext = contentType.Ext()

	path, cleanup, err := s.localCopy(ctx, report)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	extractor, err := document.PageExtractorFactory(path)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "archive-*.zip")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp archive: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	log := s.logger.WithFields(logrus.Fields{
		"report_id": report.ID,
		"pattern":   pattern.String(),
		"policy":    policy,
	})

	zw := archive.NewWriter(tmp)
	manifest := archive.NewManifest(s.extractor.Columns())
	result := &ArchiveResult{Pattern: pattern.String()}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		b := row.Boundary()
		meta := row.Metadata()
		entry := Entry{IssueID: b.ID, StartPage: b.Start + 1, EndPage: b.End}

		name, err := s.renderName(pattern, meta, policy, placeholder)
		if err == nil {
			name, err = s.writeIssue(zw, extractor, path, b, name)
		}
		if err != nil {
			if policy == MissingFail && errors.Is(err, issue.ErrMissingField) {
				return nil, err
			}
			log.WithError(err).WithField("issue_id", b.ID).Warn("Issue skipped")
			entry.Error = err.Error()
			result.Skipped++
		} else {
			entry.Filename = name
		}

		result.Entries = append(result.Entries, entry)
		manifest.Add(archive.Row{
			Filename: entry.Filename,
			Boundary: b,
			Metadata: meta,
			Error:    entry.Error,
		})
	}

	if err := zw.AddManifest(manifest); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	info, err := s.storage.Save(tmp, archiveName(report))
	if err != nil {
		return nil, fmt.Errorf("failed to save archive: %w", err)
	}
	result.Archive = info

	// 旧压缩包不再被引用
	if report.ArchiveID != "" && report.ArchiveID != info.ID {
		if err := s.storage.Delete(report.ArchiveID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.WithError(err).Warn("Failed to delete previous archive")
		}
	}
	if err := repo.SetArchive(report.ID, info.ID, pattern.String()); err != nil {
		return nil, fmt.Errorf("failed to record archive: %w", err)
	}

	log.WithFields(logrus.Fields{
		"archive_id": info.ID,
		"issues":     len(rows),
		"skipped":    result.Skipped,
	}).Info("Archive built")

	return result, nil
}

// renderName 渲染单个问题的文件名
func (s *SplitService) renderName(p issue.Pattern, meta issue.Metadata, policy MissingPolicy, placeholder string) (string, error) {
	var name string
	var err error
	if policy == MissingPlaceholder {
		name, err = p.RenderWithDefault(meta, placeholder)
	} else {
		name, err = p.Render(meta)
	}
	if err != nil {
		return "", err
	}

	// 所有字段清洗后为空时退回到问题编号
	if name == p.Ext {
		name = "Issue_" + issue.Sanitize(issue.NormalizeID(meta.ID)) + p.Ext
	}
	return name, nil
}

// writeIssue 提取问题页面写入压缩包，返回实际的文件名
// 提取完成后才创建条目，失败的问题不会在压缩包中留下残缺文件
func (s *SplitService) writeIssue(zw *archive.Writer, ex document.PageExtractor, path string, b issue.Boundary, name string) (string, error) {
	var buf bytes.Buffer
	if err := ex.ExtractRange(path, b, &buf); err != nil {
		return "", fmt.Errorf("issue %s: %w", b.ID, err)
	}

	entry, err := zw.Add(name, &buf)
	if err != nil {
		return "", fmt.Errorf("issue %s: %w", b.ID, err)
	}
	return entry, nil
}

// OpenArchive 打开报告当前的压缩包，同时返回下载用的文件名
// 已被新压缩包替换的旧ID视为不存在
func (s *SplitService) OpenArchive(ctx context.Context, archiveID string) (io.ReadCloser, string, error) {
	reports, _, err := s.repo.WithContext(ctx).List(0, 1, map[string]interface{}{"archive_id": archiveID})
	if err != nil {
		return nil, "", err
	}
	if len(reports) == 0 {
		return nil, "", fmt.Errorf("%w: archive %s", storage.ErrNotFound, archiveID)
	}

	rc, err := s.storage.Get(archiveID)
	if err != nil {
		return nil, "", err
	}
	return rc, archiveName(reports[0]), nil
}

// archiveName 压缩包文件名：<报告名>_issues.zip
func archiveName(report *models.Report) string {
	base := strings.TrimSuffix(report.FileName, filepath.Ext(report.FileName))
	return issue.Sanitize(base) + "_issues.zip"
}

// GetReport 获取报告及其问题
func (s *SplitService) GetReport(ctx context.Context, reportID string) (*models.Report, []*models.Issue, error) {
	repo := s.repo.WithContext(ctx)
	report, err := repo.GetByID(reportID)
	if err != nil {
		return nil, nil, err
	}
	issues, err := repo.GetIssues(reportID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load issues: %w", err)
	}
	return report, issues, nil
}

// ListReports 分页列出报告
func (s *SplitService) ListReports(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Report, int64, error) {
	return s.repo.WithContext(ctx).List(offset, limit, filters)
}

// AvailableFields 返回至少一个问题中出现过的字段，可用于拼文件名
func (s *SplitService) AvailableFields(ctx context.Context, reportID string) ([]string, error) {
	_, issues, err := s.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	metas := make([]issue.Metadata, 0, len(issues))
	for _, is := range issues {
		metas = append(metas, is.Metadata())
	}
	return issue.AvailableFields(metas), nil
}

// DeleteReport 删除报告、存储的文件和缓存
func (s *SplitService) DeleteReport(ctx context.Context, reportID string) error {
	repo := s.repo.WithContext(ctx)
	report, err := repo.GetByID(reportID)
	if err != nil {
		return err
	}

	log := s.logger.WithField("report_id", reportID)
	for _, id := range []string{report.ID, report.ArchiveID} {
		if id == "" {
			continue
		}
		if err := s.storage.Delete(id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.WithError(err).WithField("file_id", id).Warn("Failed to delete stored file")
		}
	}

	if err := repo.Delete(reportID); err != nil {
		return err
	}

	// 页面缓存按内容校验和共享，只有最后一份相同内容的报告被删除时才清理
	if s.pages != nil && report.Checksum != "" {
		_, shared, err := repo.List(0, 1, map[string]interface{}{"checksum": report.Checksum})
		switch {
		case err != nil:
			log.WithError(err).Warn("Failed to check page cache owners")
		case shared == 0:
			if err := s.pages.Delete(report.Checksum); err != nil {
				log.WithError(err).Warn("Failed to drop page cache")
			}
		}
	}
	log.Info("Report deleted")
	return nil
}

// ctxReader 在读取过程中检查上下文是否已取消
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
