package document

import (
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/fyerfyer/issue-report-splitter/internal/issue"
)

var (
	// ErrUnsupportedType 不支持的文件类型
	ErrUnsupportedType = errors.New("unsupported document type")

	// ErrNotIssueReport 文档不是问题报告
	ErrNotIssueReport = errors.New("document is not an issue report")
)

// PageSource 页面文本来源
// 负责把源文档转换为按页排列的文本，无法解析的页返回空文本
type PageSource interface {
	// Pages 读取文档每一页的文本
	Pages(filePath string) ([]issue.PageText, error)
}

// PageExtractor 页范围提取器
// 把源文档中的一段连续页写成一个新文档
type PageExtractor interface {
	// ExtractRange 提取 [b.Start, b.End) 的页面写入w
	ExtractRange(filePath string, b issue.Boundary, w io.Writer) error
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	// PDF 文档类型
	PDF ContentType = "pdf"
	// PlainText 纯文本类型，页之间用换页符分隔
	PlainText ContentType = "plaintext"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// DetectContentType 根据文件扩展名检测内容类型
func DetectContentType(filePath string) ContentType {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		return PDF
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}

// Ext 返回该类型输出文件使用的扩展名
func (c ContentType) Ext() string {
	switch c {
	case PDF:
		return ".pdf"
	case PlainText:
		return ".txt"
	default:
		return ""
	}
}

// PageSourceFactory 根据文件类型创建页面文本来源
func PageSourceFactory(filePath string) (PageSource, error) {
	switch DetectContentType(filePath) {
	case PDF:
		return NewPDFPageSource(), nil
	case PlainText:
		return NewPlainTextPageSource(), nil
	default:
		return nil, ErrUnsupportedType
	}
}

// PageExtractorFactory 根据文件类型创建页范围提取器
func PageExtractorFactory(filePath string) (PageExtractor, error) {
	switch DetectContentType(filePath) {
	case PDF:
		return NewPDFPageExtractor(), nil
	case PlainText:
		return NewPlainTextPageExtractor(), nil
	default:
		return nil, ErrUnsupportedType
	}
}

// IsIssueReport 检查前几页中是否出现报告标识
func IsIssueReport(pages []issue.PageText, marker string, within int) bool {
	if marker == "" {
		return true
	}
	if within <= 0 || within > len(pages) {
		within = len(pages)
	}
	for _, p := range pages[:within] {
		if strings.Contains(p.Text, marker) {
			return true
		}
	}
	return false
}
