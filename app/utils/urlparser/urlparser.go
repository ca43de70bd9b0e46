package urlparser

import (
	"errors"
	"net/url"
	"regexp"
	"time"

	"vidnote/app/logger"
	"vidnote/app/model"

	"github.com/patrickmn/go-cache"
	"resty.dev/v3"
)

// ErrUnsupportedPlatform 平台标识不受支持
var ErrUnsupportedPlatform = errors.New("不支持的视频平台")

var (
	bracketRe   = regexp.MustCompile(`【.*?】`)
	shortLinkRe = regexp.MustCompile(`https?://b23\.tv/[0-9A-Za-z]+`)
	bvRe        = regexp.MustCompile(`BV[0-9A-Za-z]+`)
	partRe      = regexp.MustCompile(`p=(\d+)`)
	youtubeRe   = regexp.MustCompile(`(?:v=|youtu\.be/)([0-9A-Za-z_-]{11})`)
	douyinRe    = regexp.MustCompile(`/video/(\d+)`)
)

// Parser 从视频链接中提取平台视频 ID
type Parser struct {
	client *resty.Client
	cache  *cache.Cache
	logger *logger.Logger
}

// New 创建解析器，timeout 限制短链接展开的网络请求
func New(timeout time.Duration, log *logger.Logger) *Parser {
	client := resty.New()
	client.SetTimeout(timeout)

	return &Parser{
		client: client,
		// 短链接的跳转目标不会变化，缓存避免重复请求
		cache:  cache.New(24*time.Hour, 1*time.Hour),
		logger: log,
	}
}

// Extract 提取平台视频 ID
// 提取失败返回空字符串而不是错误：视频 ID 只是尽力而为的元数据，
// 不阻塞任务创建。只有平台不受支持时返回错误。
func (p *Parser) Extract(rawURL, platform string) (string, error) {
	switch platform {
	case model.PlatformBilibili:
		return p.extractBilibili(rawURL), nil
	case model.PlatformYoutube:
		if m := youtubeRe.FindStringSubmatch(rawURL); m != nil {
			return m[1], nil
		}
		return "", nil
	case model.PlatformDouyin:
		if m := douyinRe.FindStringSubmatch(rawURL); m != nil {
			return m[1], nil
		}
		return "", nil
	default:
		return "", ErrUnsupportedPlatform
	}
}

// extractBilibili 提取 B 站 BV 号，带分 P 后缀
func (p *Parser) extractBilibili(rawURL string) string {
	// 清除中文括号及其内容（分享文案常见）
	cleaned := bracketRe.ReplaceAllString(rawURL, "")

	// 短链接先展开为真实链接
	if shortURL := shortLinkRe.FindString(cleaned); shortURL != "" {
		if resolved := p.resolveShortURL(shortURL); resolved != "" {
			cleaned = resolved
		}
	}

	bvID := bvRe.FindString(cleaned)
	if bvID == "" {
		return ""
	}

	// 分 P 视频的不同分 P 是不同任务
	if m := partRe.FindStringSubmatch(cleaned); m != nil {
		return bvID + "?p=" + m[1]
	}
	return bvID
}

// resolveShortURL 通过 HEAD 请求跟随跳转获取真实链接
// 网络失败时返回空字符串，调用方回退到原始链接
func (p *Parser) resolveShortURL(shortURL string) string {
	if cached, ok := p.cache.Get(shortURL); ok {
		return cached.(string)
	}

	resp, err := p.client.R().Head(shortURL)
	if err != nil {
		p.logger.Warnf("短链接展开失败: %s, 错误: %v", shortURL, err)
		return ""
	}

	final := resp.RawResponse.Request.URL
	resolved := cleanTrackingParams(final)

	p.cache.Set(shortURL, resolved, cache.DefaultExpiration)
	return resolved
}

// cleanTrackingParams 清理跳转结果中的追踪参数，只保留分 P 参数
func cleanTrackingParams(u *url.URL) string {
	query := u.Query()
	newQuery := url.Values{}
	if part := query.Get("p"); part != "" {
		newQuery.Set("p", part)
	}
	u.RawQuery = newQuery.Encode()
	return u.String()
}
