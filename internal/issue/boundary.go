package issue

import (
	"regexp"
	"strings"
)

// PageText 单页提取出的文本
// Text为空表示该页没有可用文本（扫描件或解析失败）
type PageText struct {
	Index int    // 页码，从0开始
	Text  string // 页面文本
}

// Boundary 一个问题占用的连续页范围 [Start, End)
type Boundary struct {
	ID    string `json:"issue_id"`   // 归一化后的问题编号
	Start int    `json:"start_page"` // 起始页（包含）
	End   int    `json:"end_page"`   // 结束页（不包含）
}

// Pages 返回该问题包含的页数
func (b Boundary) Pages() int {
	return b.End - b.Start
}

// markerPattern 问题编号标记，形如 "ID 000216"
var markerPattern = regexp.MustCompile(`\bID\s+(\d+)`)

// NormalizeID 去掉编号的前导零，全零时返回 "0"
// 尾部的零必须保留，"000220" 归一化为 "220"
func NormalizeID(raw string) string {
	id := strings.TrimLeft(strings.TrimSpace(raw), "0")
	if id == "" {
		return "0"
	}
	return id
}

// FindMarker 在页面文本中查找第一个问题编号标记
// 属于更长字段标签的 "ID"（例如 "Equipment ID 12345"）不算标记
func FindMarker(text string) (string, bool) {
	return findMarker(text, defaultExtractor.labels)
}

func findMarker(text string, labels []string) (string, bool) {
	if text == "" {
		return "", false
	}
	for _, loc := range markerPattern.FindAllStringSubmatchIndex(text, -1) {
		if isLabelTail(text[:loc[0]], labels) {
			continue
		}
		return NormalizeID(text[loc[2]:loc[3]]), true
	}
	return "", false
}

// isLabelTail 判断 "ID" 前面的文本是否构成某个抓取标签的前缀
// 只看实际从页面读取的标签，"Issue ID" 这类合成字段不参与
func isLabelTail(before string, labels []string) bool {
	for _, label := range labels {
		if label == FieldIssueID || !strings.HasSuffix(label, " ID") {
			continue
		}
		if strings.HasSuffix(before, strings.TrimSuffix(label, "ID")) {
			return true
		}
	}
	return false
}

// DetectBoundaries 按页顺序扫描编号标记，划分每个问题的页范围
// 第一个标记之前的页不属于任何问题；同一编号连续出现视为同一问题的续页
func DetectBoundaries(pages []PageText) []Boundary {
	return detectBoundaries(pages, defaultExtractor.labels)
}

func detectBoundaries(pages []PageText, labels []string) []Boundary {
	var boundaries []Boundary
	current := ""
	open := false

	for i, page := range pages {
		id, ok := findMarker(page.Text, labels)
		if !ok {
			continue
		}
		if open && id == current {
			continue
		}
		if open {
			boundaries[len(boundaries)-1].End = i
		}
		boundaries = append(boundaries, Boundary{ID: id, Start: i})
		current = id
		open = true
	}

	if open {
		boundaries[len(boundaries)-1].End = len(pages)
	}
	return boundaries
}
