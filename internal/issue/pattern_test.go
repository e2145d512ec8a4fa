package issue

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Roof", "Roof"},
		{"Roof east side", "Roofeastside"},
		{"José Núñez", "JoseNunez"},
		{"Ærø/..\\x", "rx"},
		{"AHU-01_b", "AHU-01_b"},
		{"ﬁle", "file"},
		{"日本語", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in), "Sanitize(%q)", tt.in)
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{"José Núñez", "a b/c", "Crème brûlée #2", "ÅÄÖ-åäö_123", "{Location}", "\t\n"}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
	}
}

func TestParsePattern_Fields(t *testing.T) {
	p, err := ParsePattern("Issue_{Issue ID}_{Location Detail}")
	require.NoError(t, err)
	assert.Equal(t, []string{"Issue ID", "Location Detail"}, p.Fields())
	assert.Equal(t, "Issue_{Issue ID}_{Location Detail}", p.String())
}

func TestParsePattern_SyntaxErrors(t *testing.T) {
	tests := []struct {
		pattern     string
		offset      int
		placeholder string
	}{
		{"Issue_{Issue ID", 6, "{Issue ID"},
		{"Issue_{}", 6, "{}"},
		{"Issue_}", 6, "}"},
		{"{a{b}", 0, "{a"},
		{"a/{Priority}", 1, ""},
		{`a\b`, 1, ""},
	}
	for _, tt := range tests {
		_, err := ParsePattern(tt.pattern)
		require.Error(t, err, tt.pattern)

		var syn *SyntaxError
		require.True(t, errors.As(err, &syn), tt.pattern)
		assert.Equal(t, tt.offset, syn.Offset, tt.pattern)
		assert.Equal(t, tt.placeholder, syn.Placeholder, tt.pattern)
		assert.Contains(t, err.Error(), syn.Reason)
	}
}

func TestPattern_Render(t *testing.T) {
	p := MustParsePattern("Issue_{Issue ID}_{Location Detail}")
	meta := Metadata{ID: "216", Fields: map[string]string{
		FieldIssueID:      "216",
		"Location Detail": "Roof (east)",
	}}

	name, err := p.Render(meta)
	require.NoError(t, err)
	assert.Equal(t, "Issue_216_Roofeast.pdf", name)
}

func TestPattern_RenderEscapedBraces(t *testing.T) {
	p := MustParsePattern("{{x}}_{Priority}")
	meta := Metadata{ID: "1", Fields: map[string]string{"Priority": "High"}}

	name, err := p.Render(meta)
	require.NoError(t, err)
	assert.Equal(t, "{x}_High.pdf", name)
}

func TestPattern_ValuesAreNotTemplateSyntax(t *testing.T) {
	p := MustParsePattern("{Location}")
	meta := Metadata{ID: "1", Fields: map[string]string{
		"Location": "{Priority}",
		"Priority": "High",
	}}

	name, err := p.Render(meta)
	require.NoError(t, err)
	assert.Equal(t, "Priority.pdf", name)
}

func TestPattern_MissingField(t *testing.T) {
	p := MustParsePattern("{Issue ID}_{Root Cause}")
	meta := Metadata{ID: "7", Fields: map[string]string{FieldIssueID: "7"}}

	_, err := p.Render(meta)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingField))

	var missing *MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "Root Cause", missing.Field)
	assert.Equal(t, "7", missing.IssueID)

	name, err := p.RenderWithDefault(meta, "N/A")
	require.NoError(t, err)
	assert.Equal(t, "7_NA.pdf", name)
}

func TestPattern_IssueIDIsNormalized(t *testing.T) {
	p := MustParsePattern("{Issue ID}")
	meta := Metadata{ID: "000220", Fields: map[string]string{FieldIssueID: "000220"}}

	name, err := p.Render(meta)
	require.NoError(t, err)
	assert.Equal(t, "220.pdf", name)
}

func TestPatternFromFields(t *testing.T) {
	assert.Equal(t, "{Issue ID}_{Location}_{Priority}",
		PatternFromFields([]string{"Issue ID", "Location", " ", "Priority"}, "_"))
	assert.Equal(t, "{Priority}{{-}}{Location}",
		PatternFromFields([]string{"Priority", "Location"}, "{-}"))
	assert.Equal(t, "", PatternFromFields(nil, "_"))

	p, err := ParsePattern(PatternFromFields([]string{"Priority", "Location"}, "{-}"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Priority", "Location"}, p.Fields())
}
