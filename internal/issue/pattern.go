package issue

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultExt 渲染结果默认追加的扩展名
const DefaultExt = ".pdf"

// ErrMissingField 模板引用了当前问题不存在的字段
var ErrMissingField = errors.New("missing field")

// MissingFieldError 单个问题渲染失败，记录缺失的字段名
type MissingFieldError struct {
	IssueID string
	Field   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("issue %s: missing field %q", e.IssueID, e.Field)
}

// Is 使 errors.Is(err, ErrMissingField) 成立
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// SyntaxError 模板语法错误
type SyntaxError struct {
	Pattern     string // 原始模板
	Offset      int    // 出错位置（字节）
	Placeholder string // 出错的占位符片段
	Reason      string
}

func (e *SyntaxError) Error() string {
	if e.Placeholder != "" {
		return fmt.Sprintf("invalid filename pattern %q at offset %d (%s): %s", e.Pattern, e.Offset, e.Placeholder, e.Reason)
	}
	return fmt.Sprintf("invalid filename pattern %q at offset %d: %s", e.Pattern, e.Offset, e.Reason)
}

// segment 模板片段，field为空时表示字面文本
type segment struct {
	literal string
	field   string
}

// Pattern 解析后的文件名模板
// 占位符写作 {Field Name}，字面花括号写作 {{ 和 }}
type Pattern struct {
	raw      string
	segments []segment
	Ext      string // 追加的扩展名
}

// ParsePattern 解析文件名模板
func ParsePattern(s string) (Pattern, error) {
	p := Pattern{raw: s, Ext: DefaultExt}
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			p.segments = append(p.segments, segment{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '{':
			if i+1 < len(s) && s[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexAny(s[i+1:], "{}")
			if end < 0 || s[i+1+end] != '}' {
				frag := s[i:]
				if end >= 0 {
					frag = s[i : i+1+end]
				}
				return Pattern{}, &SyntaxError{Pattern: s, Offset: i, Placeholder: frag, Reason: "unterminated placeholder"}
			}
			name := s[i+1 : i+1+end]
			if strings.TrimSpace(name) == "" {
				return Pattern{}, &SyntaxError{Pattern: s, Offset: i, Placeholder: s[i : i+2+end], Reason: "empty placeholder"}
			}
			flush()
			p.segments = append(p.segments, segment{field: strings.TrimSpace(name)})
			i += end + 1
		case '}':
			if i+1 < len(s) && s[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return Pattern{}, &SyntaxError{Pattern: s, Offset: i, Placeholder: "}", Reason: "unmatched closing brace"}
		case '/', '\\':
			return Pattern{}, &SyntaxError{Pattern: s, Offset: i, Reason: "path separator in literal text"}
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return p, nil
}

// MustParsePattern 解析失败时panic，用于常量模板
func MustParsePattern(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String 返回原始模板
func (p Pattern) String() string {
	return p.raw
}

// Fields 返回模板引用的字段，按出现顺序
func (p Pattern) Fields() []string {
	var out []string
	for _, seg := range p.segments {
		if seg.field != "" {
			out = append(out, seg.field)
		}
	}
	return out
}

// Render 用元数据渲染文件名
// 字段值经过Sanitize，字面文本原样保留；替换结果不会再被当作模板解析
func (p Pattern) Render(meta Metadata) (string, error) {
	return p.render(meta, nil)
}

// RenderWithDefault 缺失字段使用fallback代替
func (p Pattern) RenderWithDefault(meta Metadata, fallback string) (string, error) {
	return p.render(meta, &fallback)
}

func (p Pattern) render(meta Metadata, fallback *string) (string, error) {
	var b strings.Builder
	for _, seg := range p.segments {
		if seg.field == "" {
			b.WriteString(seg.literal)
			continue
		}
		value, ok := meta.Get(seg.field)
		if !ok {
			if fallback == nil {
				return "", &MissingFieldError{IssueID: meta.ID, Field: seg.field}
			}
			value = *fallback
		}
		if seg.field == FieldIssueID {
			value = NormalizeID(value)
		}
		b.WriteString(Sanitize(value))
	}
	return b.String() + p.Ext, nil
}

// PatternFromFields 按调用方给定的字段顺序拼出模板
func PatternFromFields(fields []string, sep string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		parts = append(parts, "{"+f+"}")
	}
	return strings.Join(parts, escapeLiteral(sep))
}

func escapeLiteral(s string) string {
	s = strings.ReplaceAll(s, "{", "{{")
	return strings.ReplaceAll(s, "}", "}}")
}

// asciiFold 分解组合字符并去掉附加符号
var asciiFold = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// Sanitize 将任意字符串转换为文件系统安全的ASCII片段
// 只保留字母、数字、下划线和连字符
func Sanitize(s string) string {
	folded, _, err := transform.String(asciiFold, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
