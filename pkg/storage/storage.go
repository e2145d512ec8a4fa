package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"path/filepath"
	"strings"
)

// ErrNotFound 文件不存在
var ErrNotFound = errors.New("file not found")

// FileInfo 文件元数据结构
type FileInfo struct {
	ID       string // 文件唯一标识符
	Name     string // 原始文件名
	Size     int64  // 文件大小(字节)
	MimeType string // 文件MIME类型
	Path     string // 内部存储路径(实现相关)
	Checksum string // 内容SHA-256，十六进制
}

// Storage 文件存储接口
// 上传的报告和生成的压缩包都通过它保存
type Storage interface {
	// Save 保存文件并返回文件信息
	Save(reader io.Reader, filename string) (FileInfo, error)

	// Get 获取文件内容
	Get(id string) (io.ReadCloser, error)

	// Delete 删除文件
	Delete(id string) error

	// List 列出所有文件
	List() ([]FileInfo, error)

	// Exists 检查文件是否存在
	Exists(id string) (bool, error)
}

// PathResolver 能直接给出本地路径的存储实现
// PDF处理需要可随机访问的文件，实现了该接口的存储不需要再复制一份临时文件
type PathResolver interface {
	LocalPath(id string) (string, error)
}

// checksumReader 读取时同步计算SHA-256
type checksumReader struct {
	r io.Reader
	h hash.Hash
	n int64
}

func newChecksumReader(r io.Reader) *checksumReader {
	h := sha256.New()
	return &checksumReader{r: io.TeeReader(r, h), h: h}
}

func (c *checksumReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Sum 返回已读取内容的十六进制摘要
func (c *checksumReader) Sum() string {
	return hex.EncodeToString(c.h.Sum(nil))
}

// Checksum 计算内容的SHA-256
func Checksum(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// getMimeType 根据文件扩展名判断MIME类型
func getMimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".zip":
		return "application/zip"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
