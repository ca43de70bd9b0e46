package notestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"vidnote/app/model"
)

// FileStore 基于文件系统的状态/结果存储
// 每个任务两个文件：<task_id>.status.json 和 <task_id>.json，
// 写入通过临时文件加重命名完成，读取方不会看到部分写入的内容。
type FileStore struct {
	dir string
}

// NewFileStore 创建文件存储，目录不存在时自动创建
func NewFileStore(outputDir string) (*FileStore, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	return &FileStore{dir: outputDir}, nil
}

// Dir 返回存储目录
func (s *FileStore) Dir() string {
	return s.dir
}

// SetStatus 原子覆盖状态记录
func (s *FileStore) SetStatus(taskID string, status model.TaskStatus, message string) error {
	record := StatusRecord{Status: status, Message: message}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化状态记录失败: %w", err)
	}
	return s.writeAtomic(s.statusPath(taskID), data)
}

// GetStatus 读取状态记录
func (s *FileStore) GetStatus(taskID string) (*StatusRecord, error) {
	data, err := os.ReadFile(s.statusPath(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("读取状态记录失败: %w", err)
	}

	var record StatusRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if !record.Status.Valid() {
		return nil, fmt.Errorf("%w: 未知状态 %q", ErrCorrupted, record.Status)
	}
	return &record, nil
}

// PutResult 原子写入结果记录
func (s *FileStore) PutResult(taskID string, result *NoteResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化结果记录失败: %w", err)
	}
	return s.writeAtomic(s.resultPath(taskID), data)
}

// GetResult 读取结果记录
func (s *FileStore) GetResult(taskID string) (*NoteResult, error) {
	data, err := os.ReadFile(s.resultPath(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("读取结果记录失败: %w", err)
	}

	var result NoteResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return &result, nil
}

// Delete 删除任务的状态和结果记录
func (s *FileStore) Delete(taskID string) error {
	for _, path := range []string{s.statusPath(taskID), s.resultPath(taskID)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("删除记录失败: %w", err)
		}
	}
	return nil
}

func (s *FileStore) statusPath(taskID string) string {
	return filepath.Join(s.dir, taskID+".status.json")
}

func (s *FileStore) resultPath(taskID string) string {
	return filepath.Join(s.dir, taskID+".json")
}

// writeAtomic 先写临时文件再重命名，保证单步替换
func (s *FileStore) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("替换记录文件失败: %w", err)
	}
	return nil
}
