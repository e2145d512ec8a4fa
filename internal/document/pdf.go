package document

import (
	"fmt"
	"io"
	"os"

	"github.com/fyerfyer/issue-report-splitter/internal/issue"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"
	"github.com/tsawler/tabula"
	"github.com/tsawler/tabula/reader"
)

// PDFPageSource 基于tabula的PDF逐页文本提取
type PDFPageSource struct {
	logger *logrus.Logger
}

// NewPDFPageSource 创建PDF页面文本来源
func NewPDFPageSource() *PDFPageSource {
	return &PDFPageSource{logger: logrus.StandardLogger()}
}

// SetLogger 设置日志记录器
func (s *PDFPageSource) SetLogger(logger *logrus.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Pages 逐页提取PDF文本
// 单页提取失败只记录警告，该页按空文本处理
func (s *PDFPageSource) Pages(filePath string) ([]issue.PageText, error) {
	r, err := reader.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer r.Close()

	count, err := r.PageCount()
	if err != nil {
		return nil, fmt.Errorf("failed to read page count: %w", err)
	}

	pages := make([]issue.PageText, count)
	for i := 0; i < count; i++ {
		pages[i].Index = i

		text, warnings, err := tabula.FromReader(r).Pages(i + 1).Text()
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"file":  filePath,
				"page":  i + 1,
				"error": err.Error(),
			}).Warn("Failed to extract page text, treating page as empty")
			continue
		}
		if len(warnings) > 0 {
			s.logger.WithFields(logrus.Fields{
				"file":     filePath,
				"page":     i + 1,
				"warnings": tabula.FormatWarnings(warnings),
			}).Debug("Page extracted with warnings")
		}
		pages[i].Text = text
	}

	return pages, nil
}

// PDFPageExtractor 基于pdfcpu的页范围提取
type PDFPageExtractor struct {
	conf *model.Configuration
}

// NewPDFPageExtractor 创建PDF页范围提取器
func NewPDFPageExtractor() *PDFPageExtractor {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFPageExtractor{conf: conf}
}

// ExtractRange 将 [b.Start, b.End) 的页面裁剪为新PDF
func (e *PDFPageExtractor) ExtractRange(filePath string, b issue.Boundary, w io.Writer) error {
	if b.Start < 0 || b.End <= b.Start {
		return fmt.Errorf("invalid page range [%d, %d)", b.Start, b.End)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	// pdfcpu的页码从1开始，且范围包含两端
	selection := []string{fmt.Sprintf("%d-%d", b.Start+1, b.End)}
	if err := api.Trim(f, w, selection, e.conf); err != nil {
		return fmt.Errorf("failed to extract pages %s: %w", selection[0], err)
	}
	return nil
}

// PageCount 获取PDF页数
func PageCount(filePath string) (int, error) {
	n, err := api.PageCountFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}
