package domain

import (
	"fmt"
	"strings"
	"time"
)

// Mode 生成模式
type Mode string

const (
	// ModeTextToImage 文生图
	ModeTextToImage Mode = "text-to-image"
	// ModeImageToImage 图生图（以上传的图片为输入）
	ModeImageToImage Mode = "image-to-image"
)

// ParseMode 解析模式字符串，不区分大小写
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeTextToImage:
		return ModeTextToImage, nil
	case ModeImageToImage:
		return ModeImageToImage, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// AspectRatio 请求的宽高比
type AspectRatio string

const (
	AspectRatioSquare    AspectRatio = "1:1"
	AspectRatioPortrait  AspectRatio = "9:16"
	AspectRatioLandscape AspectRatio = "16:9"

	DefaultAspectRatio = AspectRatioSquare
)

// AspectRatios 返回页面上可选的全部宽高比
func AspectRatios() []AspectRatio {
	return []AspectRatio{AspectRatioSquare, AspectRatioPortrait, AspectRatioLandscape}
}

// ParseAspectRatio 解析宽高比字符串
func ParseAspectRatio(s string) (AspectRatio, error) {
	ratio := AspectRatio(strings.TrimSpace(s))
	for _, r := range AspectRatios() {
		if r == ratio {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAspectRatio, s)
}

// SourceImage 图生图模式下随请求发送的原始图片
type SourceImage struct {
	Data     []byte
	MIMEType string
}

// GenerationRequest 单次生成请求，每次调用重新构建，构建后不再修改
type GenerationRequest struct {
	Prompt      string
	SourceImage *SourceImage
	AspectRatio AspectRatio
}

// GeneratedImage 生成成功后的结果，追加到历史记录最前面
type GeneratedImage struct {
	ID          string      `json:"id"`
	URL         string      `json:"url"` // data:image/png;base64,...
	Prompt      string      `json:"prompt"`
	AspectRatio AspectRatio `json:"aspectRatio"`
	Timestamp   time.Time   `json:"timestamp"`
}

// UploadedImage 用户选择的源图片
type UploadedImage struct {
	FileName   string
	PreviewID  string
	PreviewURL string
	Base64     string // 完整的 data URL
	MIMEType   string
}

// LoadingState 远程调用期间的加载状态
type LoadingState struct {
	IsLoading bool   `json:"isLoading"`
	Message   string `json:"message"`
}
