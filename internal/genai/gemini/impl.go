package gemini

import (
	"context"
	"fmt"

	"genai-studio/common"
)

// NewClientFromConfig 从应用配置创建 Gemini 客户端
func NewClientFromConfig(ctx context.Context, cfg *common.Config) (*Client, error) {
	client, err := NewClient(ctx, Config{
		APIKey:    cfg.GenAIAPIKey,
		BaseURL:   cfg.GenAIBaseURL,
		ModelName: cfg.GenAIModelName,
		Timeout:   cfg.GenAITimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}
