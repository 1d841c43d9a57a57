package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"genai-studio/common"
	"genai-studio/internal/domain"
	"genai-studio/internal/utils"

	"google.golang.org/genai"
)

// Client Gemini 客户端实现
type Client struct {
	models  ContentGenerator
	model   string
	timeout time.Duration // 0 表示不在本地设置超时
}

// Config Gemini 客户端配置
type Config struct {
	APIKey    string        // API Key
	BaseURL   string        // 自定义 Base URL，如果为空则使用默认值
	ModelName string        // 模型名称，例如：gemini-2.5-flash-image
	Timeout   time.Duration // 请求超时时间，0 表示沿用传输层默认值
}

// NewClient 创建新的 Gemini 客户端
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}

	// 如果提供了自定义 Base URL，设置 HTTPOptions
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return NewClientWithGenerator(client.Models, cfg.ModelName, cfg.Timeout)
}

// NewClientWithGenerator 使用给定的 ContentGenerator 创建客户端
func NewClientWithGenerator(models ContentGenerator, model string, timeout time.Duration) (*Client, error) {
	if models == nil {
		return nil, fmt.Errorf("content generator is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if timeout < 0 {
		timeout = 0
	}
	return &Client{
		models:  models,
		model:   model,
		timeout: timeout,
	}, nil
}

// Model 返回使用的模型名称
func (c *Client) Model() string {
	return c.model
}

// Close 关闭客户端（genai.Client 不需要显式关闭）
func (c *Client) Close() error {
	return nil
}

// Generate 发送请求并从响应中提取图片 data URL
func (c *Client) Generate(ctx context.Context, req *Request) (string, error) {
	if req == nil || len(req.Parts()) == 0 {
		return "", fmt.Errorf("empty request")
	}

	fields := map[string]interface{}{
		"model":        c.model,
		"aspect_ratio": req.AspectRatio(),
		"parts":        len(req.Parts()),
		"prompt":       utils.TruncateForLog(promptOf(req), 80),
	}
	common.WithFields(fields).Debug("Starting image generation")

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.models.GenerateContent(ctx, c.model, req.Contents, req.Config)
	if err != nil {
		common.WithError(err).WithFields(fields).Error("Failed to generate image from Gemini API")
		return "", fmt.Errorf("failed to generate image: %w", err)
	}

	dataURL, err := ExtractImage(resp)
	if err != nil {
		entry := common.WithError(err).WithFields(fields)
		if errors.Is(err, domain.ErrNoCandidate) {
			entry.Warn("Gemini response has no candidates")
		} else {
			entry.Warn("No image data found in Gemini response")
		}
		return "", err
	}

	common.WithFields(map[string]interface{}{
		"model":  c.model,
		"length": len(dataURL),
	}).Debug("Image generated successfully")

	return dataURL, nil
}

func promptOf(req *Request) string {
	for _, p := range req.Parts() {
		if p != nil && p.Text != "" {
			return p.Text
		}
	}
	return ""
}
