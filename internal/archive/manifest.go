package archive

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/fyerfyer/issue-report-splitter/internal/issue"
)

// Row 清单中的一行，对应一个问题
type Row struct {
	Filename string
	Boundary issue.Boundary
	Metadata issue.Metadata
	Error    string
}

// Manifest 压缩包清单
type Manifest struct {
	Fields []string // 输出的字段列，默认为issue.Fields
	Rows   []Row
}

// NewManifest 创建清单
func NewManifest(fields []string) *Manifest {
	if len(fields) == 0 {
		fields = issue.Fields
	}
	return &Manifest{Fields: fields}
}

// Add 追加一行
func (m *Manifest) Add(row Row) {
	m.Rows = append(m.Rows, row)
}

// Header 返回CSV表头
func (m *Manifest) Header() []string {
	header := []string{"Filename", "Start Page", "End Page"}
	header = append(header, m.Fields...)
	return append(header, "Error")
}

// WriteCSV 写出CSV，页码从1开始且包含两端
func (m *Manifest) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(m.Header()); err != nil {
		return fmt.Errorf("failed to write manifest header: %w", err)
	}

	for _, row := range m.Rows {
		record := []string{
			row.Filename,
			strconv.Itoa(row.Boundary.Start + 1),
			strconv.Itoa(row.Boundary.End),
		}
		for _, f := range m.Fields {
			record = append(record, row.Metadata.Fields[f])
		}
		record = append(record, row.Error)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write manifest row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
