package utils

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrFileRead 读取上传文件失败
	ErrFileRead = errors.New("file read failed")

	// ErrInvalidDataURL data URL 格式不正确
	ErrInvalidDataURL = errors.New("invalid data URL")
)

const base64Marker = ";base64"

// EncodeDataURL 读取整个文件并编码为 data:<mime>;base64,<payload>。
// mimeType 为空时根据内容推断。
func EncodeDataURL(r io.Reader, mimeType string) (string, error) {
	if r == nil {
		return "", fmt.Errorf("%w: no reader", ErrFileRead)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFileRead, err)
	}
	if mimeType == "" {
		mimeType = SniffMimeType(data)
	}
	return BuildDataURL(mimeType, data), nil
}

// BuildDataURL 将二进制数据包装为 base64 data URL
func BuildDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + base64Marker + "," + base64.StdEncoding.EncodeToString(data)
}

// SplitDataURL 拆分 data URL，返回 MIME 类型和去掉前缀后的 base64 载荷
func SplitDataURL(dataURL string) (mimeType string, payload string, err error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", "", fmt.Errorf("%w: missing data: scheme", ErrInvalidDataURL)
	}
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok {
		return "", "", fmt.Errorf("%w: missing comma separator", ErrInvalidDataURL)
	}
	header = strings.TrimPrefix(header, "data:")
	if !strings.HasSuffix(header, base64Marker) {
		return "", "", fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}
	mimeType = strings.TrimSuffix(header, base64Marker)
	return mimeType, payload, nil
}

// DecodeDataURL 解码 data URL，返回 MIME 类型和原始字节
func DecodeDataURL(dataURL string) (string, []byte, error) {
	mimeType, payload, err := SplitDataURL(dataURL)
	if err != nil {
		return "", nil, err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidDataURL, err)
	}
	return mimeType, data, nil
}
