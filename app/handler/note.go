package handler

import (
	"errors"
	"net/http"
	"strconv"

	"vidnote/app/config"
	"vidnote/app/logger"
	"vidnote/app/model"
	"vidnote/app/notestore"
	"vidnote/app/service"
	"vidnote/app/utils/urlparser"

	"github.com/gin-gonic/gin"
)

// 下载质量选项
const (
	QualityFast   = "fast"
	QualityMedium = "medium"
	QualitySlow   = "slow"
)

// GenerateNoteRequest 笔记生成请求
type GenerateNoteRequest struct {
	VideoURL   string   `json:"video_url" binding:"required"`
	Platform   string   `json:"platform" binding:"required"`
	Quality    string   `json:"quality"`
	Screenshot bool     `json:"screenshot"`
	Link       bool     `json:"link"`
	ModelName  string   `json:"model_name"`
	ProviderID string   `json:"provider_id"`
	TaskID     string   `json:"task_id"`
	Format     []string `json:"format"`
	Style      string   `json:"style"`
	Extras     string   `json:"extras"`
}

// DeleteTaskRequest 任务删除请求
type DeleteTaskRequest struct {
	VideoID  string `json:"video_id" binding:"required"`
	Platform string `json:"platform" binding:"required"`
}

// NoteHandler 笔记任务相关接口
type NoteHandler struct {
	config  *config.Config
	logger  *logger.Logger
	tasks   *service.TaskService
	history *service.HistoryService
	store   notestore.Store
	parser  *urlparser.Parser
}

// NewNoteHandler 构造函数
func NewNoteHandler(cfg *config.Config, log *logger.Logger, tasks *service.TaskService,
	history *service.HistoryService, store notestore.Store, parser *urlparser.Parser) *NoteHandler {
	return &NoteHandler{
		config:  cfg,
		logger:  log,
		tasks:   tasks,
		history: history,
		store:   store,
		parser:  parser,
	}
}

// success 统一成功响应
func (h *NoteHandler) success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, ApiResponse{Code: 0, Message: message, Data: data})
}

// error 统一错误响应
func (h *NoteHandler) error(c *gin.Context, statusCode int, errorCode int, message string) {
	c.JSON(statusCode, ApiResponse{Code: errorCode, Message: message, Data: nil})
}

// GenerateNote 创建或重试笔记生成任务
func (h *NoteHandler) GenerateNote(c *gin.Context) {
	var req GenerateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.error(c, http.StatusBadRequest, 400, "请求参数无效: "+err.Error())
		return
	}

	if !model.SupportedPlatform(req.Platform) {
		h.error(c, http.StatusBadRequest, 400, "不支持的视频平台: "+req.Platform)
		return
	}
	if !validQuality(req.Quality) {
		h.error(c, http.StatusBadRequest, 400, "不支持的下载质量: "+req.Quality)
		return
	}

	// 视频 ID 是尽力而为的元数据，提取失败不阻塞任务创建
	videoID, err := h.parser.Extract(req.VideoURL, req.Platform)
	if err != nil {
		h.error(c, http.StatusBadRequest, 400, err.Error())
		return
	}
	if videoID == "" {
		h.logger.Warnf("未能提取视频 ID: url=%s, platform=%s", req.VideoURL, req.Platform)
	}

	taskID, err := h.tasks.Dispatch(&service.DispatchRequest{
		VideoURL:   req.VideoURL,
		Platform:   req.Platform,
		VideoID:    videoID,
		Quality:    req.Quality,
		ModelName:  req.ModelName,
		ProviderID: req.ProviderID,
		TaskID:     req.TaskID,
		Format:     req.Format,
		Style:      req.Style,
		Extras:     req.Extras,
		Screenshot: req.Screenshot,
		Link:       req.Link,
	})
	if err != nil {
		if errors.Is(err, service.ErrMissingProvider) {
			h.error(c, http.StatusBadRequest, 400, err.Error())
			return
		}
		h.logger.Errorf("调度任务失败: %v", err)
		h.error(c, http.StatusInternalServerError, 500, "调度任务失败")
		return
	}

	h.success(c, gin.H{"task_id": taskID}, "任务已创建")
}

// GetTaskStatus 查询任务状态，成功时附带笔记结果
func (h *NoteHandler) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("task_id")

	status, err := h.store.GetStatus(taskID)
	if err != nil {
		if errors.Is(err, notestore.ErrCorrupted) {
			// 损坏的状态记录按不存在处理
			h.logger.Warnf("状态记录已损坏: task_id=%s, %v", taskID, err)
		} else if !errors.Is(err, notestore.ErrNotFound) {
			h.logger.Errorf("读取状态记录失败: task_id=%s, %v", taskID, err)
			h.error(c, http.StatusInternalServerError, 500, "读取任务状态失败")
			return
		}

		// 没有状态文件但有结果，视为成功
		if result, rerr := h.store.GetResult(taskID); rerr == nil {
			h.success(c, gin.H{
				"status":  model.TaskStatusSuccess,
				"result":  result,
				"task_id": taskID,
			}, "")
			return
		}

		// 什么都没有，默认 PENDING
		h.success(c, gin.H{
			"status":  model.TaskStatusPending,
			"message": "任务排队中",
			"task_id": taskID,
		}, "")
		return
	}

	switch status.Status {
	case model.TaskStatusSuccess:
		result, rerr := h.store.GetResult(taskID)
		if rerr != nil {
			// 理论上不会出现，降级为 PENDING 而不是报错
			h.logger.Warnf("状态为 SUCCESS 但结果不可读: task_id=%s, %v", taskID, rerr)
			h.success(c, gin.H{
				"status":  model.TaskStatusPending,
				"message": "任务完成，但结果文件未找到",
				"task_id": taskID,
			}, "")
			return
		}
		h.success(c, gin.H{
			"status":  status.Status,
			"result":  result,
			"message": status.Message,
			"task_id": taskID,
		}, "")
	case model.TaskStatusFailed:
		h.error(c, http.StatusInternalServerError, 500, statusMessage(status.Message, "任务失败"))
	default:
		h.success(c, gin.H{
			"status":  status.Status,
			"message": status.Message,
			"task_id": taskID,
		}, "")
	}
}

// GetHistory 获取历史任务列表
func (h *NoteHandler) GetHistory(c *gin.Context) {
	limit := h.config.Note.HistoryLimit
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			h.error(c, http.StatusBadRequest, 400, "limit 参数无效")
			return
		}
		limit = parsed
	}

	views, err := h.history.ListHistory(limit)
	if err != nil {
		h.logger.Errorf("获取历史列表失败: %v", err)
		h.error(c, http.StatusInternalServerError, 500, "获取历史列表失败")
		return
	}

	h.success(c, views, "")
}

// DeleteTask 删除指定视频的任务及其记录
func (h *NoteHandler) DeleteTask(c *gin.Context) {
	var req DeleteTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.error(c, http.StatusBadRequest, 400, "请求参数无效: "+err.Error())
		return
	}

	deleted, err := h.tasks.DeleteByVideo(req.VideoID, req.Platform)
	if err != nil {
		h.logger.Errorf("删除任务失败: %v", err)
		h.error(c, http.StatusInternalServerError, 500, "删除任务失败")
		return
	}

	h.history.InvalidateCache()
	h.success(c, gin.H{"deleted": deleted}, "删除成功")
}

// validQuality 校验下载质量选项，空值使用默认
func validQuality(quality string) bool {
	switch quality {
	case "", QualityFast, QualityMedium, QualitySlow:
		return true
	}
	return false
}

// statusMessage 消息为空时使用默认文案
func statusMessage(message, fallback string) string {
	if message != "" {
		return message
	}
	return fallback
}
