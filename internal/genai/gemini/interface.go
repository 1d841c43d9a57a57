package gemini

import (
	"context"

	"google.golang.org/genai"
)

// ContentGenerator 远程生成能力，*genai.Models 满足该接口，测试中可替换为假实现
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ImageGenerator 发送一次请求并返回图片 data URL
type ImageGenerator interface {
	Generate(ctx context.Context, req *Request) (string, error)
}
