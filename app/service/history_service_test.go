package service

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vidnote/app/model"
	"vidnote/app/notestore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// insertTask 直接写一条登记，created_at 可控以固定排序
func insertTask(t *testing.T, svc *HistoryService, taskID, videoID, title string, createdAt time.Time) {
	t.Helper()
	task := &model.VideoTask{
		TaskID:     taskID,
		VideoID:    videoID,
		Platform:   model.PlatformBilibili,
		VideoURL:   "https://www.bilibili.com/video/" + videoID,
		VideoTitle: title,
		CreatedAt:  createdAt,
	}
	require.NoError(t, svc.db.Create(task).Error)
}

func newHistoryFixture(t *testing.T) (*HistoryService, *notestore.FileStore) {
	t.Helper()
	store, err := notestore.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return NewHistoryService(newTestDB(t), store, newTestLogger(t)), store
}

func TestListHistoryRegistryOnly(t *testing.T) {
	svc, _ := newHistoryFixture(t)
	insertTask(t, svc, "task-1", "BV1aaa", "", time.Now())

	views, err := svc.ListHistory(10)
	require.NoError(t, err)
	require.Len(t, views, 1)

	// 没有任何记录文件，合成 PENDING 视图
	assert.Equal(t, model.TaskStatusPending, views[0].Status)
	assert.Equal(t, "未命名任务", views[0].Title)
	assert.Equal(t, "BV1aaa", views[0].AudioMeta.VideoID)
}

func TestListHistoryStatusRecord(t *testing.T) {
	svc, store := newHistoryFixture(t)
	insertTask(t, svc, "task-1", "BV1aaa", "某视频", time.Now())
	require.NoError(t, store.SetStatus("task-1", model.TaskStatusRunning, "正在生成笔记"))

	views, err := svc.ListHistory(10)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, model.TaskStatusRunning, views[0].Status)
	assert.Equal(t, "正在生成笔记", views[0].Message)
	assert.Equal(t, "某视频", views[0].Title)
}

func TestListHistoryResultBeatsStaleStatus(t *testing.T) {
	svc, store := newHistoryFixture(t)
	insertTask(t, svc, "task-1", "BV1aaa", "", time.Now())

	// 结果存在，状态却是旧的 FAILED（比如成功后的一次失败重试）
	require.NoError(t, store.PutResult("task-1", sampleResult()))
	require.NoError(t, store.SetStatus("task-1", model.TaskStatusFailed, "重试失败"))

	views, err := svc.ListHistory(10)
	require.NoError(t, err)
	require.Len(t, views, 1)

	// 结果记录的存在对成功状态是权威的
	assert.Equal(t, model.TaskStatusSuccess, views[0].Status)
	assert.Equal(t, "测试笔记", views[0].Title)
	assert.NotEmpty(t, views[0].Markdown)
}

func TestListHistoryCorruptedRecordIsolated(t *testing.T) {
	svc, store := newHistoryFixture(t)
	now := time.Now()
	insertTask(t, svc, "task-1", "BV1aaa", "", now.Add(-2*time.Minute))
	insertTask(t, svc, "task-2", "BV1bbb", "", now.Add(-1*time.Minute))
	insertTask(t, svc, "task-3", "BV1ccc", "", now)

	require.NoError(t, store.SetStatus("task-1", model.TaskStatusRunning, ""))
	// task-2 的状态文件损坏
	path := filepath.Join(store.Dir(), "task-2.status.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))
	require.NoError(t, store.SetStatus("task-3", model.TaskStatusFailed, "出错"))

	views, err := svc.ListHistory(10)
	require.NoError(t, err)

	// 一个损坏的文件不拖垮整个列表
	require.Len(t, views, 3)

	byID := make(map[string]TaskView)
	for _, v := range views {
		byID[v.TaskID] = v
	}
	assert.Equal(t, model.TaskStatusRunning, byID["task-1"].Status)
	// 损坏的记录按没有记录处理
	assert.Equal(t, model.TaskStatusPending, byID["task-2"].Status)
	assert.Equal(t, model.TaskStatusFailed, byID["task-3"].Status)
}

func TestListHistoryNewestFirst(t *testing.T) {
	svc, _ := newHistoryFixture(t)
	now := time.Now()
	insertTask(t, svc, "task-old", "BV1aaa", "", now.Add(-time.Hour))
	insertTask(t, svc, "task-new", "BV1bbb", "", now)

	views, err := svc.ListHistory(10)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "task-new", views[0].TaskID)
	assert.Equal(t, "task-old", views[1].TaskID)
}

func TestListHistoryLimit(t *testing.T) {
	svc, _ := newHistoryFixture(t)
	now := time.Now()
	for i := 0; i < 5; i++ {
		insertTask(t, svc, fmt.Sprintf("task-%d", i), fmt.Sprintf("BV1x%d", i), "", now.Add(time.Duration(i)*time.Second))
	}

	views, err := svc.ListHistory(3)
	require.NoError(t, err)
	assert.Len(t, views, 3)
}

func TestListHistoryCacheInvalidation(t *testing.T) {
	svc, _ := newHistoryFixture(t)
	insertTask(t, svc, "task-1", "BV1aaa", "", time.Now())

	views, err := svc.ListHistory(10)
	require.NoError(t, err)
	require.Len(t, views, 1)

	// 新任务在缓存失效前不可见
	insertTask(t, svc, "task-2", "BV1bbb", "", time.Now())
	views, err = svc.ListHistory(10)
	require.NoError(t, err)
	assert.Len(t, views, 1)

	svc.InvalidateCache()
	views, err = svc.ListHistory(10)
	require.NoError(t, err)
	assert.Len(t, views, 2)
}
