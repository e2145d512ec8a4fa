package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalStorage 本地文件存储实现
// 文件按 年/月/日/ID+扩展名 组织
type LocalStorage struct {
	basePath string // 基础存储路径

	mu    sync.RWMutex
	index map[string]string // ID -> 相对路径
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path string // 本地存储路径
}

// NewLocalStorage 创建本地存储实例
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %v", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %v", err)
	}

	s := &LocalStorage{
		basePath: absPath,
		index:    make(map[string]string),
	}

	// 重启后恢复已有文件的索引
	files, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		s.index[f.ID] = f.Path
	}

	return s, nil
}

// Save 保存文件到本地存储
func (s *LocalStorage) Save(reader io.Reader, filename string) (FileInfo, error) {
	id := uuid.New().String()
	ext := strings.ToLower(filepath.Ext(filename))

	now := time.Now()
	datePath := filepath.Join(fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	dirPath := filepath.Join(s.basePath, datePath)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return FileInfo{}, fmt.Errorf("failed to create directory: %v", err)
	}

	relPath := filepath.Join(datePath, id+ext)
	fullPath := filepath.Join(s.basePath, relPath)

	file, err := os.Create(fullPath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to create file: %v", err)
	}

	cr := newChecksumReader(reader)
	if _, err := io.Copy(file, cr); err != nil {
		file.Close()
		os.Remove(fullPath)
		return FileInfo{}, fmt.Errorf("failed to write file: %v", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(fullPath)
		return FileInfo{}, fmt.Errorf("failed to close file: %v", err)
	}

	s.mu.Lock()
	s.index[id] = relPath
	s.mu.Unlock()

	return FileInfo{
		ID:       id,
		Name:     filename,
		Size:     cr.n,
		MimeType: getMimeType(filename),
		Path:     relPath,
		Checksum: cr.Sum(),
	}, nil
}

// Get 获取文件内容
func (s *LocalStorage) Get(id string) (io.ReadCloser, error) {
	path, err := s.LocalPath(id)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %v", err)
	}
	return file, nil
}

// LocalPath 返回文件的绝对路径
func (s *LocalStorage) LocalPath(id string) (string, error) {
	s.mu.RLock()
	rel, ok := s.index[id]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	path := filepath.Join(s.basePath, rel)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.mu.Lock()
			delete(s.index, id)
			s.mu.Unlock()
			return "", fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return "", err
	}
	return path, nil
}

// Delete 删除文件
func (s *LocalStorage) Delete(id string) error {
	path, err := s.LocalPath(id)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete file: %v", err)
	}

	s.mu.Lock()
	delete(s.index, id)
	s.mu.Unlock()
	return nil
}

// List 列出所有文件
func (s *LocalStorage) List() ([]FileInfo, error) {
	var files []FileInfo

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}

		fileName := d.Name()
		files = append(files, FileInfo{
			ID:       strings.TrimSuffix(fileName, filepath.Ext(fileName)),
			Name:     fileName,
			Size:     info.Size(),
			MimeType: getMimeType(fileName),
			Path:     relPath,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %v", err)
	}

	return files, nil
}

// Exists 检查文件是否存在
func (s *LocalStorage) Exists(id string) (bool, error) {
	_, err := s.LocalPath(id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
