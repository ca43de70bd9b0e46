package notestore

import (
	"sync"

	"vidnote/app/model"
)

// MemoryStore 内存实现，用于测试
type MemoryStore struct {
	mu       sync.RWMutex
	statuses map[string]StatusRecord
	results  map[string]NoteResult
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		statuses: make(map[string]StatusRecord),
		results:  make(map[string]NoteResult),
	}
}

// SetStatus 覆盖状态记录
func (s *MemoryStore) SetStatus(taskID string, status model.TaskStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[taskID] = StatusRecord{Status: status, Message: message}
	return nil
}

// GetStatus 读取状态记录
func (s *MemoryStore) GetStatus(taskID string) (*StatusRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.statuses[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

// PutResult 写入结果记录
func (s *MemoryStore) PutResult(taskID string, result *NoteResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[taskID] = *result
	return nil
}

// GetResult 读取结果记录
func (s *MemoryStore) GetResult(taskID string) (*NoteResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	return &result, nil
}

// Delete 删除任务的状态和结果记录
func (s *MemoryStore) Delete(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.statuses, taskID)
	delete(s.results, taskID)
	return nil
}
