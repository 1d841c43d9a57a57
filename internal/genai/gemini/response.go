package gemini

import (
	"fmt"
	"strings"

	"genai-studio/internal/domain"
	"genai-studio/internal/utils"

	"google.golang.org/genai"
)

// 返回给页面的图片统一按 PNG 包装
const imageDataURLMime = "image/png"

// 表示内容被安全策略拦截的结束原因
var safetyFinishReasons = map[string]bool{
	"SAFETY":                   true,
	"PROHIBITED_CONTENT":       true,
	"BLOCKLIST":                true,
	"SPII":                     true,
	"IMAGE_SAFETY":             true,
	"IMAGE_PROHIBITED_CONTENT": true,
}

// ExtractImage 取第一个候选，按顺序找到第一个内联数据非空的 Part，
// 返回 data:image/png;base64,... 形式的字符串
func ExtractImage(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if reason := promptBlockReason(resp); reason != "" {
			return "", fmt.Errorf("%w: %w (block reason: %s)", domain.ErrNoCandidate, domain.ErrSafetyRejection, reason)
		}
		return "", domain.ErrNoCandidate
	}

	candidate := resp.Candidates[0]
	var texts []string
	if candidate != nil && candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			// 空的内联数据不算图片
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return utils.BuildDataURL(imageDataURLMime, part.InlineData.Data), nil
			}
			if part.Text != "" {
				texts = append(texts, part.Text)
			}
		}
	}

	if candidate != nil && safetyFinishReasons[string(candidate.FinishReason)] {
		return "", fmt.Errorf("%w: %w (finish reason: %s)", domain.ErrNoImage, domain.ErrSafetyRejection, candidate.FinishReason)
	}
	if len(texts) > 0 {
		// 模型有时只回复一段文字说明原因，保留下来便于排查和分类
		return "", fmt.Errorf("%w: %s", domain.ErrNoImage, utils.TruncateForLog(strings.Join(texts, " "), 200))
	}
	return "", domain.ErrNoImage
}

func promptBlockReason(resp *genai.GenerateContentResponse) string {
	if resp == nil || resp.PromptFeedback == nil {
		return ""
	}
	return string(resp.PromptFeedback.BlockReason)
}
