package issue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pagesOf(texts ...string) []PageText {
	pages := make([]PageText, len(texts))
	for i, t := range texts {
		pages[i] = PageText{Index: i, Text: t}
	}
	return pages
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"000216", "216"},
		{"000220", "220"},
		{"1200", "1200"},
		{"0000", "0"},
		{"0", "0"},
		{"42", "42"},
		{" 007 ", "7"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeID(tt.in), "NormalizeID(%q)", tt.in)
	}
}

func TestFindMarker(t *testing.T) {
	id, ok := FindMarker("Issue Report\nID 000216\nLocation Roof")
	assert.True(t, ok)
	assert.Equal(t, "216", id)

	_, ok = FindMarker("")
	assert.False(t, ok)

	_, ok = FindMarker("no marker here, IDENTITY 12")
	assert.False(t, ok)

	// Equipment ID 不是问题编号
	id, ok = FindMarker("Equipment ID 555\nID 000300")
	assert.True(t, ok)
	assert.Equal(t, "300", id)

	_, ok = FindMarker("Equipment ID 555")
	assert.False(t, ok)

	// "Issue ID" 是合成字段，不从页面抓取，其后的编号仍是标记
	id, ok = FindMarker("Issue Report\nIssue ID 000216")
	assert.True(t, ok)
	assert.Equal(t, "216", id)
}

func TestDetectBoundaries_IssueIDHeader(t *testing.T) {
	pages := pagesOf(
		"Issue Report\nIssue ID 000216\nLocation Roof",
		"Issue ID 000216\nPhotos",
		"Issue ID 000217\nPriority Low",
	)

	got := DetectBoundaries(pages)
	assert.Equal(t, []Boundary{
		{ID: "216", Start: 0, End: 2},
		{ID: "217", Start: 2, End: 3},
	}, got)
}

func TestAnalyzeWith_CustomLabelEndingInID(t *testing.T) {
	pages := pagesOf(
		"Asset ID 900\nID 000216\nPriority High",
		"Asset ID 901\nphotos",
	)

	res := AnalyzeWith(NewExtractor("Asset ID", "Priority"), pages)
	require.Equal(t, 1, res.Len(), "Custom labels ending in ID are not markers")
	assert.Equal(t, Boundary{ID: "216", Start: 0, End: 2}, res.Boundaries[0])
	assert.Equal(t, "900", res.Metadata[0].Fields["Asset ID"])

	// 未配置 Asset ID 时，它后面的编号按标记处理
	res = AnalyzeWith(NewExtractor("Priority"), pages)
	assert.Equal(t, []Boundary{
		{ID: "900", Start: 0, End: 1},
		{ID: "901", Start: 1, End: 2},
	}, res.Boundaries)
}
