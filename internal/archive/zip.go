package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
)

// ManifestName 清单文件在压缩包中的名称
const ManifestName = "manifest.csv"

// ErrClosed 压缩包已关闭
var ErrClosed = errors.New("archive already closed")

// Writer 顺序写入问题文件的zip压缩包
// 同名文件自动追加 _2、_3 等后缀
type Writer struct {
	zw     *zip.Writer
	used   map[string]int
	now    time.Time
	closed bool
}

// NewWriter 创建压缩包写入器
func NewWriter(w io.Writer) *Writer {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})
	return &Writer{
		zw:   zw,
		used: make(map[string]int),
		now:  time.Now(),
	}
}

// Add 写入一个文件，返回实际使用的文件名
func (w *Writer) Add(name string, r io.Reader) (string, error) {
	if w.closed {
		return "", ErrClosed
	}

	entry := w.uniqueName(name)
	fw, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     entry,
		Method:   zip.Deflate,
		Modified: w.now,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create zip entry %s: %w", entry, err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return "", fmt.Errorf("failed to write zip entry %s: %w", entry, err)
	}
	return entry, nil
}

// AddManifest 写入CSV清单
func (w *Writer) AddManifest(m *Manifest) error {
	if w.closed {
		return ErrClosed
	}

	fw, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     ManifestName,
		Method:   zip.Deflate,
		Modified: w.now,
	})
	if err != nil {
		return fmt.Errorf("failed to create manifest entry: %w", err)
	}
	w.used[strings.ToLower(ManifestName)] = 1
	return m.WriteCSV(fw)
}

// Close 结束写入
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.zw.Close()
}

// uniqueName 为重复的文件名追加序号，比较时忽略大小写
func (w *Writer) uniqueName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "issue"
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := name
	for n := 2; ; n++ {
		key := strings.ToLower(candidate)
		if _, taken := w.used[key]; !taken {
			w.used[key] = 1
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d%s", base, n, ext)
	}
}
