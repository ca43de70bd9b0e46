package notestore

import (
	"errors"

	"vidnote/app/model"
)

var (
	// ErrNotFound 任务没有对应的记录
	ErrNotFound = errors.New("记录不存在")
	// ErrCorrupted 记录存在但无法解析
	ErrCorrupted = errors.New("记录已损坏")
)

// StatusRecord 任务进度记录，由工作协程写入、轮询方读取
type StatusRecord struct {
	Status  model.TaskStatus `json:"status"`
	Message string           `json:"message"`
}

// AudioMeta 笔记来源视频的元信息
type AudioMeta struct {
	Title    string `json:"title"`
	CoverURL string `json:"cover_url"`
	VideoURL string `json:"video_url"`
	Platform string `json:"platform"`
	VideoID  string `json:"video_id"`
}

// NoteResult 生成成功后的最终笔记
type NoteResult struct {
	Title     string    `json:"title"`
	Markdown  string    `json:"markdown"`
	AudioMeta AudioMeta `json:"audio_meta"`
}

// Store 状态/结果存储
// 单键原子替换是唯一的并发约束：并发读取方不能看到写了一半的记录。
// 具体后端（文件系统、对象存储）隐藏在接口之后。
type Store interface {
	// SetStatus 原子覆盖状态记录
	SetStatus(taskID string, status model.TaskStatus, message string) error
	// GetStatus 读取状态记录，不存在返回 ErrNotFound，无法解析返回 ErrCorrupted
	GetStatus(taskID string) (*StatusRecord, error)
	// PutResult 原子写入结果，必须在状态翻转为 SUCCESS 之前调用，
	// 保证轮询方看到 SUCCESS 时结果一定可读
	PutResult(taskID string, result *NoteResult) error
	// GetResult 读取结果记录
	GetResult(taskID string) (*NoteResult, error)
	// Delete 删除任务的状态和结果记录（管理操作）
	Delete(taskID string) error
}
