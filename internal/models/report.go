package models

import (
	"encoding/json"
	"time"

	"github.com/fyerfyer/issue-report-splitter/internal/issue"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReportStatus 报告处理状态
type ReportStatus string

const (
	// ReportStatusUploaded 已上传，等待分析
	ReportStatusUploaded ReportStatus = "uploaded"
	// ReportStatusAnalyzed 分析完成，至少找到一个问题
	ReportStatusAnalyzed ReportStatus = "analyzed"
	// ReportStatusEmpty 分析完成，但没有找到问题
	ReportStatusEmpty ReportStatus = "empty"
	// ReportStatusArchived 已生成压缩包
	ReportStatusArchived ReportStatus = "archived"
	// ReportStatusFailed 处理失败
	ReportStatusFailed ReportStatus = "failed"
)

// Report 上传的问题报告
type Report struct {
	ID         string       `gorm:"primaryKey"`         // 报告ID，与存储文件ID一致
	FileName   string       `gorm:"not null"`           // 原始文件名
	FileType   string       `gorm:"not null"`           // 文件类型：pdf、plaintext
	FilePath   string       `gorm:"not null"`           // 存储路径
	FileSize   int64        `gorm:"not null"`           // 文件大小（字节）
	Checksum   string       `gorm:"size:64;index"`      // 内容SHA-256
	Status     ReportStatus `gorm:"not null;index"`     // 处理状态
	PageCount  int          `gorm:"not null;default:0"` // 总页数
	IssueCount int          `gorm:"not null;default:0"` // 问题数量
	Error      string       `gorm:"type:text"`          // 错误信息
	ArchiveID  string       `gorm:"size:64"`            // 最近一次生成的压缩包ID
	Pattern    string       `gorm:"size:255"`           // 最近一次使用的文件名模板
	UploadedAt time.Time    `gorm:"not null;index"`     // 上传时间
	AnalyzedAt *time.Time   `gorm:"index"`              // 分析完成时间
	UpdatedAt  time.Time    `gorm:"not null"`           // 更新时间
	Issues     []Issue      `gorm:"foreignKey:ReportID"`
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (r *Report) BeforeCreate(tx *gorm.DB) (err error) {
	if r.UploadedAt.IsZero() {
		r.UploadedAt = time.Now()
	}
	r.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (r *Report) BeforeUpdate(tx *gorm.DB) (err error) {
	r.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Report) TableName() string {
	return "reports"
}

// Issue 报告中识别出的一个问题
type Issue struct {
	ID        uint           `gorm:"primaryKey;autoIncrement"`
	ReportID  string         `gorm:"not null;index"`   // 所属报告ID
	Position  int            `gorm:"not null"`         // 在报告中的顺序，从0开始
	IssueID   string         `gorm:"size:32;not null"` // 归一化后的问题编号
	StartPage int            `gorm:"not null"`         // 起始页（包含，从0开始）
	EndPage   int            `gorm:"not null"`         // 结束页（不包含）
	Fields    datatypes.JSON `gorm:"type:json"`        // 抓取到的字段
	CreatedAt time.Time      `gorm:"not null"`
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (i *Issue) BeforeCreate(tx *gorm.DB) (err error) {
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now()
	}
	return nil
}

// TableName 明确指定表名
func (Issue) TableName() string {
	return "issues"
}

// NewIssue 从边界和元数据构建数据库记录
func NewIssue(reportID string, position int, b issue.Boundary, meta issue.Metadata) (*Issue, error) {
	fields, err := json.Marshal(meta.Fields)
	if err != nil {
		return nil, err
	}
	return &Issue{
		ReportID:  reportID,
		Position:  position,
		IssueID:   b.ID,
		StartPage: b.Start,
		EndPage:   b.End,
		Fields:    datatypes.JSON(fields),
	}, nil
}

// Boundary 转换为页范围
func (i *Issue) Boundary() issue.Boundary {
	return issue.Boundary{ID: i.IssueID, Start: i.StartPage, End: i.EndPage}
}

// Metadata 转换为元数据，字段解析失败时只保留问题编号
func (i *Issue) Metadata() issue.Metadata {
	meta := issue.Metadata{ID: i.IssueID, Fields: map[string]string{}}
	if len(i.Fields) > 0 {
		_ = json.Unmarshal(i.Fields, &meta.Fields)
	}
	if meta.Fields == nil {
		meta.Fields = map[string]string{}
	}
	meta.Fields[issue.FieldIssueID] = i.IssueID
	return meta
}
