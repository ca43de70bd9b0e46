package handler

import (
	"net/http"

	"vidnote/app/database"
	"vidnote/app/logger"
	"vidnote/app/model"
	"vidnote/app/service"

	"github.com/gin-gonic/gin"
)

// ProviderRequest 提供商创建/更新请求
type ProviderRequest struct {
	ProviderID string `json:"provider_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
	BaseURL    string `json:"base_url" binding:"required"`
	APIKey     string `json:"api_key"`
	Enabled    *bool  `json:"enabled"`
}

// ProviderHandler 模型提供商管理接口
type ProviderHandler struct {
	logger    *logger.Logger
	generator *service.LLMGenerator
}

// NewProviderHandler 构造函数
func NewProviderHandler(log *logger.Logger, generator *service.LLMGenerator) *ProviderHandler {
	return &ProviderHandler{logger: log, generator: generator}
}

// success 统一成功响应
func (h *ProviderHandler) success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, ApiResponse{Code: 0, Message: message, Data: data})
}

// error 统一错误响应
func (h *ProviderHandler) error(c *gin.Context, statusCode int, errorCode int, message string) {
	c.JSON(statusCode, ApiResponse{Code: errorCode, Message: message, Data: nil})
}

// GetProviders 获取提供商列表
func (h *ProviderHandler) GetProviders(c *gin.Context) {
	var providers []model.Provider
	if err := database.GetDB().Order("created_at ASC").Find(&providers).Error; err != nil {
		h.error(c, http.StatusInternalServerError, 500, "获取提供商列表失败: "+err.Error())
		return
	}
	h.success(c, providers, "")
}

// CreateProvider 新增或更新提供商
func (h *ProviderHandler) CreateProvider(c *gin.Context) {
	var req ProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.error(c, http.StatusBadRequest, 400, "请求参数无效: "+err.Error())
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	db := database.GetDB()
	var provider model.Provider
	err := db.Where("provider_id = ?", req.ProviderID).First(&provider).Error
	if err == nil {
		// 已存在则更新
		provider.Name = req.Name
		provider.BaseURL = req.BaseURL
		provider.Enabled = enabled
		if req.APIKey != "" {
			provider.APIKey = req.APIKey
		}
		if err := db.Save(&provider).Error; err != nil {
			h.error(c, http.StatusInternalServerError, 500, "更新提供商失败: "+err.Error())
			return
		}
		h.success(c, provider, "更新成功")
		return
	}

	provider = model.Provider{
		ProviderID: req.ProviderID,
		Name:       req.Name,
		BaseURL:    req.BaseURL,
		APIKey:     req.APIKey,
		Enabled:    enabled,
	}
	if err := db.Create(&provider).Error; err != nil {
		h.error(c, http.StatusInternalServerError, 500, "创建提供商失败: "+err.Error())
		return
	}
	h.success(c, provider, "创建成功")
}

// TestProvider 测试提供商连通性
func (h *ProviderHandler) TestProvider(c *gin.Context) {
	providerID := c.Param("provider_id")

	var provider model.Provider
	if err := database.GetDB().Where("provider_id = ?", providerID).First(&provider).Error; err != nil {
		h.error(c, http.StatusNotFound, 404, "提供商不存在")
		return
	}

	if err := h.generator.TestConnection(c.Request.Context(), &provider); err != nil {
		h.logger.Infof("连通性测试失败: provider_id=%s, %v", providerID, err)
		h.error(c, http.StatusBadGateway, 502, err.Error())
		return
	}
	h.success(c, nil, "连通性测试成功")
}
