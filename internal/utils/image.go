package utils

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SupportedUploadTypes 页面文件选择框 accept 过滤器使用的 MIME 类型
var SupportedUploadTypes = []string{"image/png", "image/jpeg", "image/webp"}

// SniffMimeType 根据文件内容推断 MIME 类型，无法识别为图片时返回 image/png
func SniffMimeType(data []byte) string {
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return "image/png"
	}
	return mimeType
}

// InferMimeTypeFromName 从文件名推断 MIME 类型（不区分大小写）
func InferMimeTypeFromName(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	}
	return ""
}

// GetExtensionFromMimeType 根据 MIME 类型获取文件扩展名（不区分大小写）
func GetExtensionFromMimeType(mimeType string) string {
	mt := strings.ToLower(mimeType)
	switch mt {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ".png"
	}
}

// DownloadFileName 生成下载用文件名：generated-{id}-{yyyyMMdd-HHmmss}.ext
func DownloadFileName(id string, createdAt time.Time, mimeType string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("generated-%s-%s%s", short, createdAt.Format("20060102-150405"), GetExtensionFromMimeType(mimeType))
}

// TruncateForLog 截断长字符串用于日志，避免打印过长内容（如 base64）
func TruncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
