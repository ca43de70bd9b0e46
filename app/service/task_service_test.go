package service

import (
	"testing"
	"time"

	"vidnote/app/model"
	"vidnote/app/notestore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseRequest() *DispatchRequest {
	return &DispatchRequest{
		VideoURL:   "https://www.bilibili.com/video/BV1vc411b7Wa",
		Platform:   model.PlatformBilibili,
		VideoID:    "BV1vc411b7Wa",
		ModelName:  "gpt-4o",
		ProviderID: "openai",
	}
}

func TestDispatchMissingProvider(t *testing.T) {
	svc := NewTaskService(newTestDB(t), notestore.NewMemoryStore(), &fakeGenerator{}, nil, time.Minute, newTestLogger(t))

	req := baseRequest()
	req.ProviderID = ""
	_, err := svc.Dispatch(req)
	assert.ErrorIs(t, err, ErrMissingProvider)

	req = baseRequest()
	req.ModelName = ""
	_, err = svc.Dispatch(req)
	assert.ErrorIs(t, err, ErrMissingProvider)
}

func TestDispatchWritesPendingSynchronously(t *testing.T) {
	db := newTestDB(t)
	store := notestore.NewMemoryStore()
	gen := &fakeGenerator{gate: make(chan struct{}), result: sampleResult()}
	svc := NewTaskService(db, store, gen, nil, time.Minute, newTestLogger(t))

	taskID, err := svc.Dispatch(baseRequest())
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	// 返回时 PENDING 已经可见，后台工作还没开始
	record, err := store.GetStatus(taskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, record.Status)

	// 登记表里有对应的行
	var task model.VideoTask
	require.NoError(t, db.Where("task_id = ?", taskID).First(&task).Error)
	assert.Equal(t, "BV1vc411b7Wa", task.VideoID)
	assert.Equal(t, model.PlatformBilibili, task.Platform)

	close(gen.gate)
	svc.Wait()

	record, err = store.GetStatus(taskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusSuccess, record.Status)
}

func TestDispatchDoesNotDedupe(t *testing.T) {
	db := newTestDB(t)
	svc := NewTaskService(db, notestore.NewMemoryStore(), &fakeGenerator{result: sampleResult()}, nil, time.Minute, newTestLogger(t))

	first, err := svc.Dispatch(baseRequest())
	require.NoError(t, err)
	second, err := svc.Dispatch(baseRequest())
	require.NoError(t, err)
	svc.Wait()

	// 同一个视频两次调度产生两个任务、两条登记
	assert.NotEqual(t, first, second)

	var count int64
	require.NoError(t, db.Model(&model.VideoTask{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestRetryResetsStatusBeforeScheduling(t *testing.T) {
	db := newTestDB(t)
	store := notestore.NewMemoryStore()
	gen := &fakeGenerator{err: assert.AnError}
	svc := NewTaskService(db, store, gen, nil, time.Minute, newTestLogger(t))

	taskID, err := svc.Dispatch(baseRequest())
	require.NoError(t, err)
	svc.Wait()

	record, err := store.GetStatus(taskID)
	require.NoError(t, err)
	require.Equal(t, model.TaskStatusFailed, record.Status)

	// 重试：后台工作被门闩挡住，返回后必须立刻看到 PENDING
	gen.mu.Lock()
	gen.err = nil
	gen.result = sampleResult()
	gen.gate = make(chan struct{})
	gen.mu.Unlock()

	req := baseRequest()
	req.TaskID = taskID
	retryID, err := svc.Dispatch(req)
	require.NoError(t, err)
	assert.Equal(t, taskID, retryID)

	record, err = store.GetStatus(taskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, record.Status)

	// 重试不产生新的登记行
	var count int64
	require.NoError(t, db.Model(&model.VideoTask{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	close(gen.gate)
	svc.Wait()

	record, err = store.GetStatus(taskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusSuccess, record.Status)
	assert.Equal(t, 2, gen.callCount())
}

func TestResultWrittenBeforeSuccessFlip(t *testing.T) {
	store := newRecordingStore()
	svc := NewTaskService(newTestDB(t), store, &fakeGenerator{result: sampleResult()}, nil, time.Minute, newTestLogger(t))

	taskID, err := svc.Dispatch(baseRequest())
	require.NoError(t, err)
	svc.Wait()

	// 写入顺序：PENDING → RUNNING → result → SUCCESS
	ops := store.operations()
	require.Equal(t, []string{"status:PENDING", "status:RUNNING", "result", "status:SUCCESS"}, ops)

	// 成功可见即结果可读
	record, err := store.GetStatus(taskID)
	require.NoError(t, err)
	require.Equal(t, model.TaskStatusSuccess, record.Status)
	_, err = store.GetResult(taskID)
	require.NoError(t, err)
}

func TestWorkerFailureWritesFailed(t *testing.T) {
	store := notestore.NewMemoryStore()
	svc := NewTaskService(newTestDB(t), store, &fakeGenerator{err: assert.AnError}, nil, time.Minute, newTestLogger(t))

	taskID, err := svc.Dispatch(baseRequest())
	require.NoError(t, err)
	svc.Wait()

	record, err := store.GetStatus(taskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, record.Status)
	assert.NotEmpty(t, record.Message)
}

func TestWorkerEmptyResultWritesFailed(t *testing.T) {
	store := notestore.NewMemoryStore()
	gen := &fakeGenerator{result: &notestore.NoteResult{Markdown: ""}}
	svc := NewTaskService(newTestDB(t), store, gen, nil, time.Minute, newTestLogger(t))

	taskID, err := svc.Dispatch(baseRequest())
	require.NoError(t, err)
	svc.Wait()

	record, err := store.GetStatus(taskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, record.Status)
}

func TestWorkerPanicRecovered(t *testing.T) {
	store := notestore.NewMemoryStore()
	svc := NewTaskService(newTestDB(t), store, &fakeGenerator{panics: true}, nil, time.Minute, newTestLogger(t))

	taskID, err := svc.Dispatch(baseRequest())
	require.NoError(t, err)
	svc.Wait()

	// panic 不逃出工作协程，落成 FAILED
	record, err := store.GetStatus(taskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, record.Status)
}

func TestSuccessBackfillsTitle(t *testing.T) {
	db := newTestDB(t)
	svc := NewTaskService(db, notestore.NewMemoryStore(), &fakeGenerator{result: sampleResult()}, nil, time.Minute, newTestLogger(t))

	taskID, err := svc.Dispatch(baseRequest())
	require.NoError(t, err)
	svc.Wait()

	var task model.VideoTask
	require.NoError(t, db.Where("task_id = ?", taskID).First(&task).Error)
	assert.Equal(t, "测试笔记", task.VideoTitle)
}

func TestDeleteByVideo(t *testing.T) {
	db := newTestDB(t)
	store := notestore.NewMemoryStore()
	svc := NewTaskService(db, store, &fakeGenerator{result: sampleResult()}, nil, time.Minute, newTestLogger(t))

	taskID, err := svc.Dispatch(baseRequest())
	require.NoError(t, err)
	svc.Wait()

	deleted, err := svc.DeleteByVideo("BV1vc411b7Wa", model.PlatformBilibili)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.GetStatus(taskID)
	assert.ErrorIs(t, err, notestore.ErrNotFound)
	_, err = store.GetResult(taskID)
	assert.ErrorIs(t, err, notestore.ErrNotFound)

	var count int64
	require.NoError(t, db.Model(&model.VideoTask{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestFindByVideo(t *testing.T) {
	db := newTestDB(t)
	svc := NewTaskService(db, notestore.NewMemoryStore(), &fakeGenerator{result: sampleResult()}, nil, time.Minute, newTestLogger(t))

	found, err := svc.FindByVideo("BV1vc411b7Wa", model.PlatformBilibili)
	require.NoError(t, err)
	assert.Nil(t, found)

	taskID, err := svc.Dispatch(baseRequest())
	require.NoError(t, err)
	svc.Wait()

	found, err = svc.FindByVideo("BV1vc411b7Wa", model.PlatformBilibili)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, taskID, found.TaskID)
}
