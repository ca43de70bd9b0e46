package service

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidnote/app/logger"
	"vidnote/app/model"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// CleanupService 定期清理孤儿记录文件和过期上传文件
// 任务登记删除后遗留的状态/结果文件在这里回收
type CleanupService struct {
	db        *gorm.DB
	cron      *cron.Cron
	outputDir string
	uploadDir string
	logger    *logger.Logger
}

// NewCleanupService 创建清理服务
func NewCleanupService(db *gorm.DB, outputDir, uploadDir string, log *logger.Logger) *CleanupService {
	return &CleanupService{
		db:        db,
		cron:      cron.New(),
		outputDir: outputDir,
		uploadDir: uploadDir,
		logger:    log,
	}
}

// Start 启动定时清理，每天凌晨 3 点执行
func (s *CleanupService) Start() error {
	if _, err := s.cron.AddFunc("0 3 * * *", s.Cleanup); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("清理服务已启动")
	return nil
}

// Stop 停止定时清理
func (s *CleanupService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("清理服务已停止")
}

// Cleanup 执行一次清理（也可手动触发）
func (s *CleanupService) Cleanup() {
	s.cleanupOrphanArtifacts()
	s.cleanupOldUploads()
}

// cleanupOrphanArtifacts 删除登记表中已不存在的任务的记录文件
func (s *CleanupService) cleanupOrphanArtifacts() {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		s.logger.Errorf("读取输出目录失败: %v", err)
		return
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		taskID := taskIDFromArtifact(entry.Name())
		if taskID == "" {
			continue
		}

		var count int64
		if err := s.db.Model(&model.VideoTask{}).Where("task_id = ?", taskID).Count(&count).Error; err != nil {
			s.logger.Errorf("查询任务登记失败: %v", err)
			return
		}
		if count > 0 {
			continue
		}

		if err := os.Remove(filepath.Join(s.outputDir, entry.Name())); err != nil {
			s.logger.Warnf("删除孤儿记录文件失败: %s, %v", entry.Name(), err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Infof("清理了 %d 个孤儿记录文件", removed)
	}
}

// cleanupOldUploads 删除 7 天前的上传文件
func (s *CleanupService) cleanupOldUploads() {
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		s.logger.Errorf("读取上传目录失败: %v", err)
		return
	}

	cutoff := time.Now().AddDate(0, 0, -7)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.uploadDir, entry.Name())); err != nil {
			s.logger.Warnf("删除过期上传文件失败: %s, %v", entry.Name(), err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Infof("清理了 %d 个过期上传文件（超过7天）", removed)
	}
}

// taskIDFromArtifact 从记录文件名还原任务 ID，不认识的文件返回空
func taskIDFromArtifact(name string) string {
	switch {
	case strings.HasSuffix(name, ".status.json"):
		return strings.TrimSuffix(name, ".status.json")
	case strings.HasSuffix(name, ".cover.jpg"):
		return strings.TrimSuffix(name, ".cover.jpg")
	case strings.HasSuffix(name, ".json"):
		return strings.TrimSuffix(name, ".json")
	}
	return ""
}
