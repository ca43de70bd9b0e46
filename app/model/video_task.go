package model

import (
	"time"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "PENDING"
	TaskStatusRunning TaskStatus = "RUNNING"
	TaskStatusSuccess TaskStatus = "SUCCESS"
	TaskStatusFailed  TaskStatus = "FAILED"
)

// Valid 判断是否为已知状态
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusSuccess, TaskStatusFailed:
		return true
	}
	return false
}

// Terminal 判断是否为终态
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFailed
}

// 支持的视频平台
const (
	PlatformBilibili = "bilibili"
	PlatformYoutube  = "youtube"
	PlatformDouyin   = "douyin"
)

// SupportedPlatform 判断平台标识是否受支持
func SupportedPlatform(platform string) bool {
	switch platform {
	case PlatformBilibili, PlatformYoutube, PlatformDouyin:
		return true
	}
	return false
}

// VideoTask 视频笔记任务登记模型
// 每个逻辑任务只登记一次，重试复用同一条记录
type VideoTask struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	TaskID     string    `gorm:"size:64;not null;uniqueIndex;comment:任务唯一标识" json:"task_id"`
	VideoID    string    `gorm:"size:128;index:idx_video_platform;comment:平台视频ID(可为空)" json:"video_id"`
	Platform   string    `gorm:"size:20;not null;index:idx_video_platform;comment:视频平台" json:"platform"`
	VideoURL   string    `gorm:"type:text;not null;comment:原始视频链接" json:"video_url"`
	VideoTitle string    `gorm:"size:255;comment:视频标题" json:"video_title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName 指定表名
func (VideoTask) TableName() string {
	return "video_tasks"
}
