// Package i18n 负责界面语言协商和面向用户的提示文案。
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Key 文案键
type Key string

const (
	KeyEmptyPrompt        Key = "error.empty_prompt"
	KeyMissingSourceImage Key = "error.missing_source_image"
	KeyFileRead           Key = "error.file_read"
	KeySafetyRejection    Key = "error.safety_rejection"
	KeyGenerationFailed   Key = "error.generation_failed"
	KeyInvalidMode        Key = "error.invalid_mode"
	KeyInvalidAspectRatio Key = "error.invalid_aspect_ratio"
	KeyBusy               Key = "error.busy"
	KeyNotFound           Key = "error.not_found"
	KeyBadRequest         Key = "error.bad_request"
	KeyLoadingGenerate    Key = "loading.generate"
	KeyLoadingTransform   Key = "loading.transform"
)

// Supported 支持的语言，第一个为兜底语言
var Supported = []language.Tag{language.English, language.Chinese}

var matcher = language.NewMatcher(Supported)

var messages = map[language.Tag]map[Key]string{
	language.English: {
		KeyEmptyPrompt:        "Please enter a prompt.",
		KeyMissingSourceImage: "Please upload an image to transform.",
		KeyFileRead:           "Could not read the selected file. Please try another image.",
		KeySafetyRejection:    "The request was blocked by the safety policy. Please adjust your prompt or image.",
		KeyGenerationFailed:   "Image generation failed. Please try again.",
		KeyInvalidMode:        "Unknown mode.",
		KeyInvalidAspectRatio: "Unsupported aspect ratio.",
		KeyBusy:               "An image is already being generated. Please wait.",
		KeyNotFound:           "Not found.",
		KeyBadRequest:         "Invalid request.",
		KeyLoadingGenerate:    "Generating image...",
		KeyLoadingTransform:   "Transforming image...",
	},
	language.Chinese: {
		KeyEmptyPrompt:        "请输入提示词。",
		KeyMissingSourceImage: "请先上传需要转换的图片。",
		KeyFileRead:           "无法读取所选文件，请换一张图片试试。",
		KeySafetyRejection:    "请求被安全策略拦截，请调整提示词或图片。",
		KeyGenerationFailed:   "图片生成失败，请重试。",
		KeyInvalidMode:        "未知的模式。",
		KeyInvalidAspectRatio: "不支持的宽高比。",
		KeyBusy:               "正在生成图片，请稍候。",
		KeyNotFound:           "未找到。",
		KeyBadRequest:         "请求无效。",
		KeyLoadingGenerate:    "正在生成图片...",
		KeyLoadingTransform:   "正在转换图片...",
	},
}

var cat = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, entries := range messages {
		for key, msg := range entries {
			if err := b.SetString(tag, string(key), msg); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// Match 从 Accept-Language 风格的字符串中选出支持的语言，无法匹配时返回 fallback
func Match(accept string, fallback language.Tag) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return fallback
	}
	return Supported[index]
}

// Parse 解析配置中的语言名称，如 "en"、"zh-CN"
func Parse(name string) language.Tag {
	return Match(strings.TrimSpace(name), language.English)
}

// Localizer 按语言输出文案
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

// New 创建指定语言的 Localizer
func New(tag language.Tag) *Localizer {
	return &Localizer{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(cat)),
	}
}

// Tag 返回当前语言
func (l *Localizer) Tag() language.Tag {
	return l.tag
}

// T 返回文案
func (l *Localizer) T(key Key) string {
	return l.printer.Sprintf(string(key))
}
