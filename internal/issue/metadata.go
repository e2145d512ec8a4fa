package issue

import (
	"regexp"
	"sort"
	"strings"
)

// FieldIssueID 问题编号字段，由边界检测得到而不是从页面抓取
const FieldIssueID = "Issue ID"

// Fields 报告中可用的字段，顺序即默认的文件名字段顺序
var Fields = []string{
	FieldIssueID,
	"Location",
	"Location Detail",
	"Equipment ID",
	"Equipment Type",
	"Project Activity",
	"Responsible Person",
	"Rework Required",
	"Root Cause",
	"Priority",
}

// Metadata 单个问题的元数据
// 页面中不存在的字段不会出现在Fields里
type Metadata struct {
	ID     string            `json:"issue_id"`
	Fields map[string]string `json:"fields"`
}

// Get 获取字段值
func (m Metadata) Get(field string) (string, bool) {
	v, ok := m.Fields[field]
	return v, ok
}

// fieldMatcher 单个标签的匹配规则
type fieldMatcher struct {
	label   string
	pattern *regexp.Regexp
	longer  []string // 以本标签为前缀的更长标签
	labels  []string // 全部抓取标签
}

// Extractor 按标签抓取字段值
type Extractor struct {
	labels   []string
	matchers []fieldMatcher
}

// NewExtractor 创建字段提取器，不传标签时使用默认的报告字段
func NewExtractor(labels ...string) *Extractor {
	if len(labels) == 0 {
		labels = Fields
	}

	var scraped []string
	for _, label := range labels {
		if label == FieldIssueID || strings.TrimSpace(label) == "" {
			continue
		}
		scraped = append(scraped, label)
	}

	e := &Extractor{labels: scraped}
	for _, label := range scraped {
		m := fieldMatcher{
			label:   label,
			pattern: labelPattern(label),
			labels:  scraped,
		}
		for _, other := range scraped {
			if other != label && strings.HasPrefix(other, label) {
				m.longer = append(m.longer, other)
			}
		}
		e.matchers = append(e.matchers, m)
	}
	return e
}

// Labels 返回从页面抓取的标签，不含 "Issue ID"
func (e *Extractor) Labels() []string {
	return append([]string(nil), e.labels...)
}

// Columns 返回清单使用的列：Issue ID 在前，其后是抓取标签
func (e *Extractor) Columns() []string {
	return append([]string{FieldIssueID}, e.labels...)
}

// labelPattern 标签后跟任意空白（可以换行），捕获到行尾
// 标签中的特殊字符（如问号）需要转义
func labelPattern(label string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(label)
	prefix := ""
	if isWordByte(label[0]) {
		prefix = `\b`
	}
	return regexp.MustCompile(prefix + quoted + `[\s\x{00A0}]+(.*)`)
}

func isWordByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

// Extract 从问题首页文本中提取元数据
func (e *Extractor) Extract(id, text string) Metadata {
	meta := Metadata{
		ID:     id,
		Fields: map[string]string{FieldIssueID: id},
	}
	if text == "" {
		return meta
	}

	for _, m := range e.matchers {
		if value, ok := m.find(text); ok {
			meta.Fields[m.label] = value
		}
	}
	return meta
}

// find 返回第一个有效匹配的值
func (m fieldMatcher) find(text string) (string, bool) {
	for _, loc := range m.pattern.FindAllStringSubmatchIndex(text, -1) {
		if m.shadowed(text[loc[0]:]) {
			continue
		}
		value := strings.TrimSpace(text[loc[2]:loc[3]])
		if value == "" {
			continue
		}
		// 值在下一行时，那一行可能是另一个字段，本字段视为空
		sep := text[loc[0]+len(m.label) : loc[2]]
		if strings.ContainsAny(sep, "\r\n") && m.startsWithLabel(value) {
			continue
		}
		return value, true
	}
	return "", false
}

func (m fieldMatcher) startsWithLabel(value string) bool {
	for _, other := range m.labels {
		if strings.HasPrefix(value, other) {
			return true
		}
	}
	return false
}

// shadowed 当前位置实际上是更长的标签，例如 "Location Detail"
func (m fieldMatcher) shadowed(rest string) bool {
	for _, other := range m.longer {
		if strings.HasPrefix(rest, other) {
			return true
		}
	}
	return false
}

var defaultExtractor = NewExtractor()

// ExtractMetadata 使用默认字段列表提取元数据
func ExtractMetadata(id, text string) Metadata {
	return defaultExtractor.Extract(id, text)
}

// AvailableFields 返回至少在一个问题中出现过的字段
// 已知字段按Fields顺序在前，其余字段按名称排序
func AvailableFields(metas []Metadata) []string {
	present := make(map[string]bool)
	for _, m := range metas {
		for k := range m.Fields {
			present[k] = true
		}
	}

	var out []string
	for _, f := range Fields {
		if present[f] {
			out = append(out, f)
			delete(present, f)
		}
	}

	extra := make([]string, 0, len(present))
	for f := range present {
		extra = append(extra, f)
	}
	sort.Strings(extra)
	return append(out, extra...)
}
