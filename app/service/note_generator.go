package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vidnote/app/logger"
	"vidnote/app/model"
	"vidnote/app/notestore"

	"gorm.io/gorm"
	"resty.dev/v3"
)

// GenerateRequest 笔记生成请求
type GenerateRequest struct {
	VideoURL   string
	Platform   string
	VideoID    string
	Quality    string
	ModelName  string
	ProviderID string
	Format     []string
	Style      string
	Extras     string
	Screenshot bool
	Link       bool
}

// Generator 笔记生成流水线
// 调度器异步调用，只负责把结果翻译成状态/结果记录
type Generator interface {
	Generate(ctx context.Context, req *GenerateRequest) (*notestore.NoteResult, error)
}

// chatRequest OpenAI 兼容的对话请求
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse OpenAI 兼容的对话响应
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// LLMGenerator 调用 OpenAI 兼容接入点生成笔记
type LLMGenerator struct {
	db     *gorm.DB
	client *resty.Client
	logger *logger.Logger
}

// NewLLMGenerator 创建生成器，timeout 限制单次模型调用
func NewLLMGenerator(db *gorm.DB, timeout time.Duration, log *logger.Logger) *LLMGenerator {
	client := resty.New()
	client.SetTimeout(timeout)

	return &LLMGenerator{
		db:     db,
		client: client,
		logger: log,
	}
}

// Generate 生成笔记
func (g *LLMGenerator) Generate(ctx context.Context, req *GenerateRequest) (*notestore.NoteResult, error) {
	var provider model.Provider
	err := g.db.Where("provider_id = ? AND enabled = ?", req.ProviderID, true).First(&provider).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("提供商不存在或未启用: %s", req.ProviderID)
		}
		return nil, fmt.Errorf("查询提供商失败: %w", err)
	}

	body := chatRequest{
		Model: req.ModelName,
		Messages: []chatMessage{
			{Role: "system", Content: buildSystemPrompt(req)},
			{Role: "user", Content: buildUserPrompt(req)},
		},
	}

	var result chatResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+provider.APIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&result).
		Post(strings.TrimRight(provider.BaseURL, "/") + "/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("请求模型接口失败: %w", err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("模型接口返回错误，状态码: %d, 响应: %s", resp.StatusCode(), resp.String())
	}
	if result.Error != nil {
		return nil, fmt.Errorf("模型接口返回错误: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("模型接口返回为空")
	}

	markdown := strings.TrimSpace(result.Choices[0].Message.Content)
	if markdown == "" {
		return nil, fmt.Errorf("模型未生成有效内容")
	}

	title := extractTitle(markdown)
	meta := notestore.AudioMeta{
		Title:    title,
		VideoURL: req.VideoURL,
		Platform: req.Platform,
		VideoID:  req.VideoID,
	}

	// 视频标题和封面尽力而为，拿不到不影响笔记生成
	if info := g.fetchVideoInfo(ctx, req); info != nil {
		if info.Title != "" {
			meta.Title = info.Title
			title = info.Title
		}
		meta.CoverURL = info.CoverURL
	}

	return &notestore.NoteResult{
		Title:     title,
		Markdown:  markdown,
		AudioMeta: meta,
	}, nil
}

// videoInfo 平台侧的视频元信息
type videoInfo struct {
	Title    string
	CoverURL string
}

// fetchVideoInfo 查询平台视频接口获取标题和封面，失败返回 nil
func (g *LLMGenerator) fetchVideoInfo(ctx context.Context, req *GenerateRequest) *videoInfo {
	if req.Platform != model.PlatformBilibili || req.VideoID == "" {
		return nil
	}

	// 分 P 后缀不属于 BV 号本身
	bvid := req.VideoID
	if idx := strings.Index(bvid, "?"); idx > 0 {
		bvid = bvid[:idx]
	}

	var viewResp struct {
		Code int `json:"code"`
		Data struct {
			Title string `json:"title"`
			Pic   string `json:"pic"`
		} `json:"data"`
	}
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParam("bvid", bvid).
		SetResult(&viewResp).
		Get("https://api.bilibili.com/x/web-interface/view")
	if err != nil || resp.StatusCode() != 200 || viewResp.Code != 0 {
		g.logger.Debugf("查询视频信息失败: bvid=%s", bvid)
		return nil
	}

	return &videoInfo{Title: viewResp.Data.Title, CoverURL: viewResp.Data.Pic}
}

// TestConnection 测试提供商连通性
func (g *LLMGenerator) TestConnection(ctx context.Context, provider *model.Provider) error {
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+provider.APIKey).
		Get(strings.TrimRight(provider.BaseURL, "/") + "/models")
	if err != nil {
		return fmt.Errorf("连通性测试失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("连通性测试失败，状态码: %d", resp.StatusCode())
	}
	return nil
}

// buildSystemPrompt 构造系统提示词
func buildSystemPrompt(req *GenerateRequest) string {
	var sb strings.Builder
	sb.WriteString("你是一个视频笔记助手，请根据视频内容生成结构化的 Markdown 笔记。")
	if req.Style != "" {
		sb.WriteString("笔记风格：" + req.Style + "。")
	}
	if len(req.Format) > 0 {
		sb.WriteString("笔记需要包含以下部分：" + strings.Join(req.Format, "、") + "。")
	}
	if req.Link {
		sb.WriteString("笔记中的要点需要附带原视频的时间戳链接。")
	}
	return sb.String()
}

// buildUserPrompt 构造用户提示词
func buildUserPrompt(req *GenerateRequest) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("视频链接：%s（平台：%s）", req.VideoURL, req.Platform))
	if req.VideoID != "" {
		sb.WriteString(fmt.Sprintf("，视频 ID：%s", req.VideoID))
	}
	if req.Extras != "" {
		sb.WriteString("\n补充要求：" + req.Extras)
	}
	return sb.String()
}

// extractTitle 从 Markdown 第一个标题提取笔记标题
func extractTitle(markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
	}
	return "未命名任务"
}
