package domain

import "errors"

// 校验错误：在发起远程调用之前被拦截
var (
	ErrValidation         = errors.New("validation failed")
	ErrEmptyPrompt        = errors.New("prompt is empty")
	ErrMissingSourceImage = errors.New("source image is required in image-to-image mode")
	ErrInvalidMode        = errors.New("invalid mode")
	ErrInvalidAspectRatio = errors.New("invalid aspect ratio")
)

// 远程响应相关错误，对当前请求是终止性的，不重试
var (
	ErrNoCandidate     = errors.New("no candidates in response")
	ErrNoImage         = errors.New("no image data found in response")
	ErrSafetyRejection = errors.New("request rejected by safety policy")
)
