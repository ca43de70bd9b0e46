package service

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vidnote/app/logger"

	"github.com/disintegration/imaging"
	"resty.dev/v3"
)

// CoverService 下载视频封面并生成缩略图
type CoverService struct {
	client *resty.Client
	dir    string
	logger *logger.Logger
}

// NewCoverService 创建封面服务，缩略图保存在输出目录
func NewCoverService(outputDir string, log *logger.Logger) *CoverService {
	client := resty.New()
	client.SetTimeout(30 * time.Second)

	return &CoverService{
		client: client,
		dir:    outputDir,
		logger: log,
	}
}

// SaveThumbnail 下载封面并保存等比缩略图
func (s *CoverService) SaveThumbnail(taskID, coverURL string) error {
	resp, err := s.client.R().
		// B 站图床校验 Referer
		SetHeader("Referer", "https://www.bilibili.com/").
		Get(coverURL)
	if err != nil {
		return fmt.Errorf("下载封面失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("下载封面失败，状态码: %d", resp.StatusCode())
	}

	img, err := imaging.Decode(bytes.NewReader(resp.Bytes()))
	if err != nil {
		return fmt.Errorf("解码封面图片失败: %w", err)
	}

	// 等比缩放到 480 宽度以内
	thumb := imaging.Fit(img, 480, 270, imaging.Lanczos)

	path := s.thumbnailPath(taskID)
	if err := imaging.Save(thumb, path, imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("保存缩略图失败: %w", err)
	}

	s.logger.Debugf("封面缩略图已保存: %s", path)
	return nil
}

// Remove 删除任务的封面缩略图
func (s *CoverService) Remove(taskID string) {
	if err := os.Remove(s.thumbnailPath(taskID)); err != nil && !os.IsNotExist(err) {
		s.logger.Warnf("删除封面缩略图失败: task_id=%s, %v", taskID, err)
	}
}

func (s *CoverService) thumbnailPath(taskID string) string {
	return filepath.Join(s.dir, taskID+".cover.jpg")
}
