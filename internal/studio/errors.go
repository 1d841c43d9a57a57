package studio

import (
	"errors"
	"strings"

	"genai-studio/internal/domain"
	"genai-studio/internal/i18n"
	"genai-studio/internal/utils"
)

// ErrSessionClosed 会话已经结束
var ErrSessionClosed = errors.New("session closed")

// ErrorKind 面向用户的错误分类
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindEmptyPrompt
	KindMissingSourceImage
	KindInvalidMode
	KindInvalidAspectRatio
	KindValidation
	KindFileRead
	KindSafetyRejection
	KindNoCandidate
	KindNoImage
	KindRemote
)

var kindNames = map[ErrorKind]string{
	KindNone:               "none",
	KindEmptyPrompt:        "empty_prompt",
	KindMissingSourceImage: "missing_source_image",
	KindInvalidMode:        "invalid_mode",
	KindInvalidAspectRatio: "invalid_aspect_ratio",
	KindValidation:         "validation",
	KindFileRead:           "file_read",
	KindSafetyRejection:    "safety_rejection",
	KindNoCandidate:        "no_candidate",
	KindNoImage:            "no_image",
	KindRemote:             "remote",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsValidation 校验类错误不会产生远程调用
func (k ErrorKind) IsValidation() bool {
	switch k {
	case KindEmptyPrompt, KindMissingSourceImage, KindInvalidMode, KindInvalidAspectRatio, KindValidation:
		return true
	}
	return false
}

// MessageKey 返回该类错误对应的提示文案
func (k ErrorKind) MessageKey() i18n.Key {
	switch k {
	case KindEmptyPrompt:
		return i18n.KeyEmptyPrompt
	case KindMissingSourceImage:
		return i18n.KeyMissingSourceImage
	case KindInvalidMode:
		return i18n.KeyInvalidMode
	case KindInvalidAspectRatio:
		return i18n.KeyInvalidAspectRatio
	case KindValidation:
		return i18n.KeyBadRequest
	case KindFileRead:
		return i18n.KeyFileRead
	case KindSafetyRejection:
		return i18n.KeySafetyRejection
	}
	return i18n.KeyGenerationFailed
}

// safetyMarkers 远程错误文本中表示被安全策略拦截的片段（小写）。
// 远程接口没有统一的错误码，这份列表并不完整。
var safetyMarkers = []string{"safety", "blocked", "prohibited"}

// Classify 是唯一的错误分类入口。
// 结构化的 ErrSafetyRejection 优先，其次才是对错误文本的子串匹配。
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	switch {
	case errors.Is(err, domain.ErrEmptyPrompt):
		return KindEmptyPrompt
	case errors.Is(err, domain.ErrMissingSourceImage):
		return KindMissingSourceImage
	case errors.Is(err, domain.ErrInvalidMode):
		return KindInvalidMode
	case errors.Is(err, domain.ErrInvalidAspectRatio):
		return KindInvalidAspectRatio
	case errors.Is(err, utils.ErrFileRead), errors.Is(err, utils.ErrInvalidDataURL):
		return KindFileRead
	case errors.Is(err, domain.ErrValidation):
		return KindValidation
	case IsSafetyRejection(err):
		return KindSafetyRejection
	case errors.Is(err, domain.ErrNoCandidate):
		return KindNoCandidate
	case errors.Is(err, domain.ErrNoImage):
		return KindNoImage
	}
	return KindRemote
}

// IsSafetyRejection 判断错误是否表示请求被安全策略拒绝
func IsSafetyRejection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrSafetyRejection) {
		return true
	}
	text := strings.ToLower(err.Error())
	for _, marker := range safetyMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// Error 控制器返回给调用方的错误，Message 已按会话语言本地化
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
