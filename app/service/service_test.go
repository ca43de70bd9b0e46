package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"vidnote/app/config"
	"vidnote/app/logger"
	"vidnote/app/model"
	"vidnote/app/notestore"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 创建隔离的测试数据库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.VideoTask{}, &model.Provider{}))
	return db
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.New(config.LogConfig{Level: "error", Output: "stdout"})
}

// fakeGenerator 可控的生成器桩
type fakeGenerator struct {
	mu     sync.Mutex
	gate   chan struct{} // 非 nil 时 Generate 阻塞直到该通道关闭
	result *notestore.NoteResult
	err    error
	panics bool
	calls  int
}

func (f *fakeGenerator) Generate(ctx context.Context, req *GenerateRequest) (*notestore.NoteResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.gate != nil {
		<-f.gate
	}
	if f.panics {
		panic("生成器炸了")
	}
	return f.result, f.err
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingStore 记录写入顺序的存储，用于验证结果先于状态落盘
type recordingStore struct {
	*notestore.MemoryStore
	mu  sync.Mutex
	ops []string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: notestore.NewMemoryStore()}
}

func (s *recordingStore) SetStatus(taskID string, status model.TaskStatus, message string) error {
	s.mu.Lock()
	s.ops = append(s.ops, "status:"+string(status))
	s.mu.Unlock()
	return s.MemoryStore.SetStatus(taskID, status, message)
}

func (s *recordingStore) PutResult(taskID string, result *notestore.NoteResult) error {
	s.mu.Lock()
	s.ops = append(s.ops, "result")
	s.mu.Unlock()
	return s.MemoryStore.PutResult(taskID, result)
}

func (s *recordingStore) operations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

// sampleResult 一条可用的笔记结果
func sampleResult() *notestore.NoteResult {
	return &notestore.NoteResult{
		Title:    "测试笔记",
		Markdown: "# 测试笔记\n\n要点",
		AudioMeta: notestore.AudioMeta{
			Title:    "测试笔记",
			Platform: model.PlatformBilibili,
			VideoID:  "BV1vc411b7Wa",
		},
	}
}
