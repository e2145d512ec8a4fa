package document

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fyerfyer/issue-report-splitter/internal/issue"
)

// PageSeparator 纯文本报告的分页符
const PageSeparator = "\f"

// PlainTextPageSource 纯文本页面来源，换页符分页
// 主要用于已经导出为文本的报告和测试
type PlainTextPageSource struct{}

// NewPlainTextPageSource 创建纯文本页面来源
func NewPlainTextPageSource() *PlainTextPageSource {
	return &PlainTextPageSource{}
}

// Pages 读取文本并按换页符切分
func (s *PlainTextPageSource) Pages(filePath string) ([]issue.PageText, error) {
	texts, err := readTextPages(filePath)
	if err != nil {
		return nil, err
	}

	pages := make([]issue.PageText, len(texts))
	for i, t := range texts {
		pages[i] = issue.PageText{Index: i, Text: t}
	}
	return pages, nil
}

// PlainTextPageExtractor 纯文本页范围提取
type PlainTextPageExtractor struct{}

// NewPlainTextPageExtractor 创建纯文本页范围提取器
func NewPlainTextPageExtractor() *PlainTextPageExtractor {
	return &PlainTextPageExtractor{}
}

// ExtractRange 输出选中的页，仍以换页符分隔
func (e *PlainTextPageExtractor) ExtractRange(filePath string, b issue.Boundary, w io.Writer) error {
	texts, err := readTextPages(filePath)
	if err != nil {
		return err
	}
	if b.Start < 0 || b.End <= b.Start || b.End > len(texts) {
		return fmt.Errorf("invalid page range [%d, %d) for %d pages", b.Start, b.End, len(texts))
	}

	_, err = io.WriteString(w, strings.Join(texts[b.Start:b.End], PageSeparator))
	return err
}

func readTextPages(filePath string) ([]string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}
	if len(content) == 0 {
		return nil, nil
	}
	return strings.Split(string(content), PageSeparator), nil
}
