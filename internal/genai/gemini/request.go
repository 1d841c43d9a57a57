package gemini

import (
	"encoding/base64"
	"fmt"
	"strings"

	"genai-studio/internal/domain"
	"genai-studio/internal/utils"

	"google.golang.org/genai"
)

// Request 发送给远程模型的请求内容和配置
type Request struct {
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// Parts 返回请求中唯一一条 Content 的全部 Part
func (r *Request) Parts() []*genai.Part {
	if r == nil || len(r.Contents) == 0 || r.Contents[0] == nil {
		return nil
	}
	return r.Contents[0].Parts
}

// AspectRatio 返回请求配置中的宽高比
func (r *Request) AspectRatio() string {
	if r == nil || r.Config == nil || r.Config.ImageConfig == nil {
		return ""
	}
	return r.Config.ImageConfig.AspectRatio
}

// NewGenerationRequest 校验输入并构建 GenerationRequest。
// prompt 去掉首尾空白后不能为空；图生图模式必须有上传的图片。
func NewGenerationRequest(mode domain.Mode, prompt string, upload *domain.UploadedImage, ratio domain.AspectRatio) (domain.GenerationRequest, error) {
	if strings.TrimSpace(prompt) == "" {
		return domain.GenerationRequest{}, fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrEmptyPrompt)
	}
	if ratio == "" {
		ratio = domain.DefaultAspectRatio
	}
	if _, err := domain.ParseAspectRatio(string(ratio)); err != nil {
		return domain.GenerationRequest{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	req := domain.GenerationRequest{
		Prompt:      prompt,
		AspectRatio: ratio,
	}

	switch mode {
	case domain.ModeTextToImage:
	case domain.ModeImageToImage:
		if upload == nil || upload.Base64 == "" {
			return domain.GenerationRequest{}, fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrMissingSourceImage)
		}
		src, err := sourceFromUpload(upload)
		if err != nil {
			return domain.GenerationRequest{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
		req.SourceImage = src
	default:
		return domain.GenerationRequest{}, fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrInvalidMode)
	}

	return req, nil
}

// sourceFromUpload 去掉 data URL 前缀，取出原始字节
func sourceFromUpload(upload *domain.UploadedImage) (*domain.SourceImage, error) {
	mimeType, payload, err := utils.SplitDataURL(upload.Base64)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrInvalidDataURL, err)
	}
	if upload.MIMEType != "" {
		mimeType = upload.MIMEType
	}
	return &domain.SourceImage{Data: data, MIMEType: mimeType}, nil
}

// NewRequest 将 GenerationRequest 转换为 SDK 请求。
// 图生图时内联图片在前，文本在后。
func NewRequest(gr domain.GenerationRequest) *Request {
	parts := make([]*genai.Part, 0, 2)
	if gr.SourceImage != nil {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				Data:     gr.SourceImage.Data,
				MIMEType: gr.SourceImage.MIMEType,
			},
		})
	}
	parts = append(parts, &genai.Part{Text: gr.Prompt})

	return &Request{
		Contents: []*genai.Content{{Parts: parts}},
		Config: &genai.GenerateContentConfig{
			ImageConfig: &genai.ImageConfig{
				AspectRatio: string(gr.AspectRatio),
			},
		},
	}
}

// BuildRequest 校验并组装一次生成请求，校验失败时不会产生任何网络调用
func BuildRequest(mode domain.Mode, prompt string, upload *domain.UploadedImage, ratio domain.AspectRatio) (*Request, error) {
	gr, err := NewGenerationRequest(mode, prompt, upload, ratio)
	if err != nil {
		return nil, err
	}
	return NewRequest(gr), nil
}
