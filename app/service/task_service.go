package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vidnote/app/logger"
	"vidnote/app/model"
	"vidnote/app/notestore"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrMissingProvider 请求缺少模型或提供商选择
var ErrMissingProvider = errors.New("请选择模型和提供商")

// TaskService 任务调度器
// 负责任务标识分配、PENDING 状态的同步写入和后台生成的调度。
// 调度后所有错误都落入状态记录，不再向请求路径传播。
type TaskService struct {
	db        *gorm.DB
	store     notestore.Store
	generator Generator
	covers    *CoverService
	logger    *logger.Logger
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewTaskService 创建任务调度器
// covers 可以为 nil（不生成封面缩略图）
func NewTaskService(db *gorm.DB, store notestore.Store, generator Generator, covers *CoverService, timeout time.Duration, log *logger.Logger) *TaskService {
	return &TaskService{
		db:        db,
		store:     store,
		generator: generator,
		covers:    covers,
		logger:    log,
		timeout:   timeout,
	}
}

// DispatchRequest 任务调度请求
type DispatchRequest struct {
	VideoURL   string
	Platform   string
	VideoID    string
	Quality    string
	ModelName  string
	ProviderID string
	TaskID     string // 非空表示重试，复用已有任务
	Format     []string
	Style      string
	Extras     string
	Screenshot bool
	Link       bool
}

// Dispatch 调度一个笔记生成任务，立即返回任务 ID
// 重试路径必须先把状态重置为 PENDING 再调度后台工作，
// 保证轮询方不会同时看到旧的终态和旧的结果。
func (s *TaskService) Dispatch(req *DispatchRequest) (string, error) {
	if req.ModelName == "" || req.ProviderID == "" {
		return "", ErrMissingProvider
	}

	taskID := req.TaskID
	if taskID != "" {
		// 重试模式：复用已有 task_id，重置状态在调度之前完成
		if err := s.store.SetStatus(taskID, model.TaskStatusPending, "等待重试"); err != nil {
			return "", fmt.Errorf("重置任务状态失败: %w", err)
		}
		s.logger.Infof("重试模式，复用已有 task_id=%s", taskID)
	} else {
		taskID = uuid.New().String()
		// PENDING 写入是请求路径上唯一的同步写：响应返回之后
		// 轮询方至多看到 PENDING，不会看到"任务不存在"
		if err := s.store.SetStatus(taskID, model.TaskStatusPending, "任务排队中"); err != nil {
			return "", fmt.Errorf("初始化任务状态失败: %w", err)
		}

		task := &model.VideoTask{
			TaskID:   taskID,
			VideoID:  req.VideoID,
			Platform: req.Platform,
			VideoURL: req.VideoURL,
		}
		if err := s.db.Create(task).Error; err != nil {
			return "", fmt.Errorf("登记任务失败: %w", err)
		}
		s.logger.Infof("新任务已登记: task_id=%s, video_id=%s, platform=%s", taskID, req.VideoID, req.Platform)
	}

	s.wg.Add(1)
	go s.run(taskID, req)

	return taskID, nil
}

// run 后台执行生成，状态转移：RUNNING → SUCCESS 或 FAILED
func (s *TaskService) run(taskID string, req *DispatchRequest) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("任务执行 panic: task_id=%s, %v", taskID, r)
			_ = s.store.SetStatus(taskID, model.TaskStatusFailed, fmt.Sprintf("内部错误: %v", r))
		}
	}()

	if err := s.store.SetStatus(taskID, model.TaskStatusRunning, "正在生成笔记"); err != nil {
		s.logger.Errorf("更新任务状态失败: task_id=%s, %v", taskID, err)
	}

	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	result, err := s.generator.Generate(ctx, &GenerateRequest{
		VideoURL:   req.VideoURL,
		Platform:   req.Platform,
		VideoID:    req.VideoID,
		Quality:    req.Quality,
		ModelName:  req.ModelName,
		ProviderID: req.ProviderID,
		Format:     req.Format,
		Style:      req.Style,
		Extras:     req.Extras,
		Screenshot: req.Screenshot,
		Link:       req.Link,
	})

	if err != nil {
		s.logger.Warnf("❌ 任务执行失败: task_id=%s, 耗时: %v, 错误: %v", taskID, time.Since(startTime), err)
		_ = s.store.SetStatus(taskID, model.TaskStatusFailed, err.Error())
		return
	}
	if result == nil || result.Markdown == "" {
		s.logger.Warnf("❌ 任务未生成有效内容: task_id=%s", taskID)
		_ = s.store.SetStatus(taskID, model.TaskStatusFailed, "未生成有效笔记内容")
		return
	}

	// 先写结果再翻转状态：轮询方看到 SUCCESS 时结果一定可读
	if err := s.store.PutResult(taskID, result); err != nil {
		s.logger.Errorf("保存结果失败: task_id=%s, %v", taskID, err)
		_ = s.store.SetStatus(taskID, model.TaskStatusFailed, "保存笔记结果失败: "+err.Error())
		return
	}
	if err := s.store.SetStatus(taskID, model.TaskStatusSuccess, "笔记生成完成"); err != nil {
		s.logger.Errorf("更新任务状态失败: task_id=%s, %v", taskID, err)
	}

	// 回写标题到任务登记表，历史列表展示用
	if result.Title != "" {
		if err := s.db.Model(&model.VideoTask{}).Where("task_id = ?", taskID).
			Update("video_title", result.Title).Error; err != nil {
			s.logger.Warnf("回写视频标题失败: task_id=%s, %v", taskID, err)
		}
	}

	// 封面缩略图尽力而为，失败不影响任务结果
	if s.covers != nil && result.AudioMeta.CoverURL != "" {
		if err := s.covers.SaveThumbnail(taskID, result.AudioMeta.CoverURL); err != nil {
			s.logger.Warnf("生成封面缩略图失败: task_id=%s, %v", taskID, err)
		}
	}

	s.logger.Infof("✅ 任务完成: task_id=%s, 耗时: %v", taskID, time.Since(startTime))
}

// FindByVideo 按视频 ID 和平台查找已登记的任务（调用方用于去重）
func (s *TaskService) FindByVideo(videoID, platform string) (*model.VideoTask, error) {
	var task model.VideoTask
	err := s.db.Where("video_id = ? AND platform = ?", videoID, platform).First(&task).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// DeleteByVideo 删除指定视频的全部任务及其记录（管理操作）
func (s *TaskService) DeleteByVideo(videoID, platform string) (int, error) {
	var tasks []model.VideoTask
	if err := s.db.Where("video_id = ? AND platform = ?", videoID, platform).Find(&tasks).Error; err != nil {
		return 0, fmt.Errorf("查询任务失败: %w", err)
	}

	deleted := 0
	for _, task := range tasks {
		if err := s.store.Delete(task.TaskID); err != nil {
			s.logger.Warnf("删除任务记录失败: task_id=%s, %v", task.TaskID, err)
			continue
		}
		if s.covers != nil {
			s.covers.Remove(task.TaskID)
		}
		if err := s.db.Delete(&model.VideoTask{}, task.ID).Error; err != nil {
			return deleted, fmt.Errorf("删除任务登记失败: %w", err)
		}
		deleted++
	}

	s.logger.Infof("已删除 %d 个任务: video_id=%s, platform=%s", deleted, videoID, platform)
	return deleted, nil
}

// Wait 等待所有后台任务结束（关闭服务时调用）
func (s *TaskService) Wait() {
	s.wg.Wait()
}
