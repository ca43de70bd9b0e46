package service

import (
	"errors"
	"fmt"
	"time"

	"vidnote/app/logger"
	"vidnote/app/model"
	"vidnote/app/notestore"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

const (
	historyCacheKey = "history"
	untitledTask    = "未命名任务"
)

// TaskView 历史列表中的一条任务视图
type TaskView struct {
	TaskID    string              `json:"task_id"`
	CreatedAt time.Time           `json:"created_at"`
	Status    model.TaskStatus    `json:"status"`
	Message   string              `json:"message,omitempty"`
	Title     string              `json:"title"`
	Markdown  string              `json:"markdown,omitempty"`
	AudioMeta notestore.AudioMeta `json:"audio_meta"`
}

// HistoryService 历史聚合器
// 把任务登记表和状态/结果记录合并成统一的列表视图。
// 合并优先级：结果记录 > 状态记录 > 仅登记（视为 PENDING）。
type HistoryService struct {
	db     *gorm.DB
	store  notestore.Store
	cache  *cache.Cache
	logger *logger.Logger
}

// NewHistoryService 创建历史聚合器
func NewHistoryService(db *gorm.DB, store notestore.Store, log *logger.Logger) *HistoryService {
	return &HistoryService{
		db:     db,
		store:  store,
		cache:  cache.New(30*time.Second, 1*time.Minute),
		logger: log,
	}
}

// ListHistory 返回最近的任务视图，新任务在前
func (s *HistoryService) ListHistory(limit int) ([]TaskView, error) {
	cacheKey := fmt.Sprintf("%s:%d", historyCacheKey, limit)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.([]TaskView), nil
	}

	var tasks []model.VideoTask
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("查询任务登记表失败: %w", err)
	}

	views := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, s.buildView(&task))
	}

	s.cache.Set(cacheKey, views, cache.DefaultExpiration)
	return views, nil
}

// InvalidateCache 清除列表缓存（输出目录变化时由文件监控触发）
func (s *HistoryService) InvalidateCache() {
	s.cache.Flush()
}

// buildView 按优先级合并单个任务的记录
func (s *HistoryService) buildView(task *model.VideoTask) TaskView {
	view := TaskView{
		TaskID:    task.TaskID,
		CreatedAt: task.CreatedAt,
		Title:     task.VideoTitle,
		AudioMeta: notestore.AudioMeta{
			Title:    task.VideoTitle,
			VideoURL: task.VideoURL,
			Platform: task.Platform,
			VideoID:  task.VideoID,
		},
	}
	if view.Title == "" {
		view.Title = untitledTask
		view.AudioMeta.Title = untitledTask
	}

	// 1. 结果记录存在即为成功，即使状态记录是旧的失败状态
	result, err := s.store.GetResult(task.TaskID)
	if err == nil {
		view.Status = model.TaskStatusSuccess
		view.Markdown = result.Markdown
		if result.Title != "" {
			view.Title = result.Title
		}
		meta := result.AudioMeta
		meta.VideoID = task.VideoID
		if meta.VideoURL == "" {
			meta.VideoURL = task.VideoURL
		}
		if meta.Title == "" {
			meta.Title = view.Title
		}
		view.AudioMeta = meta
		return view
	}
	if !errors.Is(err, notestore.ErrNotFound) {
		// 损坏的结果记录只影响这一个任务的展示，不中断整个列表
		s.logger.Warnf("结果记录无法读取，跳过: task_id=%s, %v", task.TaskID, err)
	}

	// 2. 没有结果但有状态记录，直接透出状态和消息
	status, err := s.store.GetStatus(task.TaskID)
	if err == nil {
		view.Status = status.Status
		view.Message = status.Message
		return view
	}
	if !errors.Is(err, notestore.ErrNotFound) {
		s.logger.Warnf("状态记录无法读取，跳过: task_id=%s, %v", task.TaskID, err)
	}

	// 3. 只有登记记录，任务刚创建还没开始
	view.Status = model.TaskStatusPending
	return view
}
