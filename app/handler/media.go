package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"vidnote/app/config"
	"vidnote/app/logger"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"resty.dev/v3"
)

// cachedImage 图片代理缓存条目
type cachedImage struct {
	ContentType string
	Body        []byte
}

// MediaHandler 上传和图片代理接口
type MediaHandler struct {
	config  *config.Config
	logger  *logger.Logger
	client  *resty.Client
	goCache *cache.Cache
}

// NewMediaHandler 构造函数
func NewMediaHandler(cfg *config.Config, log *logger.Logger) *MediaHandler {
	client := resty.New()
	client.SetTimeout(10 * time.Second)

	return &MediaHandler{
		config: cfg,
		logger: log,
		client: client,
		// 封面图一天内不会变化
		goCache: cache.New(24*time.Hour, 1*time.Hour),
	}
}

// success 统一成功响应
func (h *MediaHandler) success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, ApiResponse{Code: 0, Message: message, Data: data})
}

// error 统一错误响应
func (h *MediaHandler) error(c *gin.Context, statusCode int, errorCode int, message string) {
	c.JSON(statusCode, ApiResponse{Code: errorCode, Message: message, Data: nil})
}

// Upload 接收上传的媒体文件，返回可访问的本地路径
func (h *MediaHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.error(c, http.StatusBadRequest, 400, "请上传名为 file 的文件")
		return
	}

	if err := os.MkdirAll(h.config.Note.UploadDir, 0755); err != nil {
		h.logger.Errorf("创建上传目录失败: %v", err)
		h.error(c, http.StatusInternalServerError, 500, "保存文件失败")
		return
	}

	// 只保留文件名，去掉客户端传来的路径部分
	filename := filepath.Base(fileHeader.Filename)
	dst := filepath.Join(h.config.Note.UploadDir, filename)
	if err := c.SaveUploadedFile(fileHeader, dst); err != nil {
		h.logger.Errorf("保存上传文件失败: %v", err)
		h.error(c, http.StatusInternalServerError, 500, "保存文件失败")
		return
	}

	h.success(c, gin.H{"url": "/uploads/" + filename}, "上传成功")
}

// ImageProxy 代理获取视频封面，绕过图床的防盗链
func (h *MediaHandler) ImageProxy(c *gin.Context) {
	imageURL := c.Query("url")
	if imageURL == "" {
		h.error(c, http.StatusBadRequest, 400, "缺少 url 参数")
		return
	}

	if cached, ok := h.goCache.Get(imageURL); ok {
		img := cached.(cachedImage)
		c.Header("Cache-Control", "public, max-age=86400")
		c.Data(http.StatusOK, img.ContentType, img.Body)
		return
	}

	resp, err := h.client.R().
		SetHeader("Referer", "https://www.bilibili.com/").
		SetHeader("User-Agent", c.GetHeader("User-Agent")).
		Get(imageURL)
	if err != nil {
		h.logger.Warnf("获取图片失败: url=%s, %v", imageURL, err)
		h.error(c, http.StatusInternalServerError, 500, "图片获取失败")
		return
	}
	if resp.StatusCode() != http.StatusOK {
		h.error(c, resp.StatusCode(), resp.StatusCode(), "图片获取失败")
		return
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	body := resp.Bytes()

	h.goCache.Set(imageURL, cachedImage{ContentType: contentType, Body: body}, cache.DefaultExpiration)

	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, contentType, body)
}
