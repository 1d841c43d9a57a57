// Package studio 持有单个会话的全部临时状态（模式、提示词、宽高比、加载状态、
// 上传图片、历史记录、错误信息），并编排文件编码、请求构建和远程调用。
package studio

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"genai-studio/common"
	"genai-studio/internal/domain"
	"genai-studio/internal/genai/gemini"
	"genai-studio/internal/i18n"
	"genai-studio/internal/utils"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// Observer 接收每次生成的结果，outcome 为 "success" 或 ErrorKind 的名称
type Observer interface {
	ObserveGeneration(mode string, outcome string, elapsed time.Duration)
}

// ControllerConfig 控制器依赖
type ControllerConfig struct {
	Generator gemini.ImageGenerator // 必填
	Previews  *PreviewStore         // 为空时使用私有的存储
	Locale    language.Tag
	Observer  Observer
	Now       func() time.Time
	NewID     func() string
	// HistoryLimit 大于 0 时只保留最近的 N 条历史记录，0 表示不限制
	HistoryLimit int
}

// UploadSnapshot 上传图片的只读视图，不包含 base64 内容
type UploadSnapshot struct {
	FileName   string `json:"fileName"`
	PreviewURL string `json:"previewUrl"`
	MIMEType   string `json:"mimeType"`
}

// Snapshot 控制器状态的只读副本，供页面渲染
type Snapshot struct {
	Mode         domain.Mode             `json:"mode"`
	Prompt       string                  `json:"prompt"`
	AspectRatio  domain.AspectRatio      `json:"aspectRatio"`
	AspectRatios []domain.AspectRatio    `json:"aspectRatios"`
	Loading      domain.LoadingState     `json:"loading"`
	Error        string                  `json:"error,omitempty"`
	Upload       *UploadSnapshot         `json:"upload,omitempty"`
	History      []domain.GeneratedImage `json:"history"`
	Locale       string                  `json:"locale"`
}

// Controller 单个会话的 UI 状态控制器。
// 互斥锁只保护状态本身，远程调用期间不持有锁；
// 同一时间只有一个生成请求是由 IsLoading 约定的，并非强制。
type Controller struct {
	mu sync.Mutex

	generator gemini.ImageGenerator
	previews  *PreviewStore
	observer  Observer
	now       func() time.Time
	newID     func() string
	localizer *i18n.Localizer
	maxHist   int

	mode        domain.Mode
	prompt      string
	aspectRatio domain.AspectRatio
	loading     bool
	loadingMode domain.Mode
	errKind     ErrorKind
	upload      *domain.UploadedImage
	history     []domain.GeneratedImage
	closed      bool
}

// NewController 创建控制器，初始为文生图模式、1:1 宽高比
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("image generator is required")
	}
	if cfg.Previews == nil {
		cfg.Previews = NewPreviewStore()
	}
	if cfg.Locale == language.Und {
		cfg.Locale = language.English
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Controller{
		generator:   cfg.Generator,
		previews:    cfg.Previews,
		observer:    cfg.Observer,
		now:         cfg.Now,
		newID:       cfg.NewID,
		localizer:   i18n.New(cfg.Locale),
		maxHist:     cfg.HistoryLimit,
		mode:        domain.ModeTextToImage,
		aspectRatio: domain.DefaultAspectRatio,
	}, nil
}

// SetLocale 切换提示文案语言
func (c *Controller) SetLocale(tag language.Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.localizer.Tag() != tag {
		c.localizer = i18n.New(tag)
	}
}

// SetMode 切换模式并清除错误，提示词、宽高比和上传图片保持不变
func (c *Controller) SetMode(mode domain.Mode) error {
	parsed, err := domain.ParseMode(string(mode))
	if err != nil {
		return c.reject(fmt.Errorf("%w: %w", domain.ErrValidation, err))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = parsed
	c.errKind = KindNone
	return nil
}

// SetPrompt 修改提示词，不清除错误
func (c *Controller) SetPrompt(prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompt = prompt
}

// SetAspectRatio 修改宽高比
func (c *Controller) SetAspectRatio(ratio domain.AspectRatio) error {
	parsed, err := domain.ParseAspectRatio(string(ratio))
	if err != nil {
		return c.reject(fmt.Errorf("%w: %w", domain.ErrValidation, err))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspectRatio = parsed
	return nil
}

// Upload 读取并编码用户选择的文件，替换当前上传图片。
// 旧的预览引用先释放再登记新的；读取失败时保留原来的上传图片。
func (c *Controller) Upload(fileName, mimeType string, r io.Reader) (*UploadSnapshot, error) {
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = utils.InferMimeTypeFromName(fileName)
	}
	dataURL, err := utils.EncodeDataURL(r, mimeType)
	if err != nil {
		return nil, c.fail(err)
	}
	mimeType, data, err := utils.DecodeDataURL(dataURL)
	if err != nil {
		return nil, c.fail(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrSessionClosed
	}

	if c.upload != nil {
		c.previews.Revoke(c.upload.PreviewID)
	}
	previewID, previewURL := c.previews.Create(mimeType, data)
	c.upload = &domain.UploadedImage{
		FileName:   fileName,
		PreviewID:  previewID,
		PreviewURL: previewURL,
		Base64:     dataURL,
		MIMEType:   mimeType,
	}
	c.errKind = KindNone

	common.WithFields(map[string]interface{}{
		"file":      fileName,
		"mime_type": mimeType,
		"size":      len(data),
	}).Debug("Source image uploaded")

	return uploadSnapshot(c.upload), nil
}

// RemoveUpload 释放预览引用并清空上传图片，页面随之重置文件选择框
func (c *Controller) RemoveUpload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseUpload()
}

func (c *Controller) releaseUpload() {
	if c.upload == nil {
		return
	}
	c.previews.Revoke(c.upload.PreviewID)
	c.upload = nil
}

// Preview 返回当前上传图片的预览内容，其他会话的预览 ID 一律视为不存在
func (c *Controller) Preview(id string) (string, []byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == "" || c.upload == nil || c.upload.PreviewID != id {
		return "", nil, false
	}
	return c.previews.Get(id)
}

// Busy 是否有生成请求正在进行
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Generate 校验当前输入并发起一次生成。
// 校验失败时不会调用远程模型；成功的结果插入历史记录最前面。
func (c *Controller) Generate(ctx context.Context) (*domain.GeneratedImage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrSessionClosed
	}
	mode, prompt, ratio := c.mode, c.prompt, c.aspectRatio
	var upload *domain.UploadedImage
	if c.upload != nil {
		u := *c.upload
		upload = &u
	}
	req, err := gemini.BuildRequest(mode, prompt, upload, ratio)
	if err != nil {
		c.errKind = Classify(err)
		c.mu.Unlock()
		return nil, c.report(mode, err, 0)
	}
	c.errKind = KindNone
	c.loading = true
	c.loadingMode = mode
	c.mu.Unlock()

	fields := map[string]interface{}{
		"mode":         mode,
		"aspect_ratio": ratio,
		"prompt":       utils.TruncateForLog(prompt, 80),
	}
	common.WithFields(fields).Info("Generating image")

	start := c.now()
	dataURL, err := c.generator.Generate(ctx, req)
	elapsed := c.now().Sub(start)

	c.mu.Lock()
	c.loading = false
	if err != nil {
		c.errKind = Classify(err)
		c.mu.Unlock()
		return nil, c.report(mode, err, elapsed)
	}

	img := domain.GeneratedImage{
		ID:          c.newID(),
		URL:         dataURL,
		Prompt:      prompt,
		AspectRatio: ratio,
		Timestamp:   c.now(),
	}
	if !c.closed {
		c.pushHistory(img)
	}
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.ObserveGeneration(string(mode), "success", elapsed)
	}
	common.WithFields(fields).WithField("id", img.ID).Info("Image generated")
	return &img, nil
}

// pushHistory 把新图片放到最前面，超出上限的旧记录直接丢弃
func (c *Controller) pushHistory(img domain.GeneratedImage) {
	kept := len(c.history)
	if c.maxHist > 0 && kept > c.maxHist-1 {
		kept = c.maxHist - 1
	}
	history := make([]domain.GeneratedImage, 0, kept+1)
	history = append(history, img)
	c.history = append(history, c.history[:kept]...)
}

// report 记录失败并返回本地化后的错误；校验失败不计入生成指标
func (c *Controller) report(mode domain.Mode, err error, elapsed time.Duration) *Error {
	kind := Classify(err)
	entry := common.WithError(err).WithFields(map[string]interface{}{
		"mode": mode,
		"kind": kind.String(),
	})
	if kind.IsValidation() {
		entry.Debug("Generation rejected before dispatch")
	} else {
		entry.Error("Image generation failed")
		if c.observer != nil {
			c.observer.ObserveGeneration(string(mode), kind.String(), elapsed)
		}
	}
	return &Error{Kind: kind, Message: c.Message(kind), Err: err}
}

// fail 把错误写入错误提示并返回
func (c *Controller) fail(err error) *Error {
	kind := Classify(err)
	c.mu.Lock()
	c.errKind = kind
	msg := c.localizer.T(kind.MessageKey())
	c.mu.Unlock()
	common.WithError(err).WithField("kind", kind.String()).Warn("Studio operation failed")
	return &Error{Kind: kind, Message: msg, Err: err}
}

// reject 返回本地化错误但不改变错误提示
func (c *Controller) reject(err error) *Error {
	kind := Classify(err)
	return &Error{Kind: kind, Message: c.Message(kind), Err: err}
}

// Message 返回该类错误在当前会话语言下的提示文案
func (c *Controller) Message(kind ErrorKind) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localizer.T(kind.MessageKey())
}

// Snapshot 返回当前状态的副本
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Mode:         c.mode,
		Prompt:       c.prompt,
		AspectRatio:  c.aspectRatio,
		AspectRatios: domain.AspectRatios(),
		Loading:      domain.LoadingState{IsLoading: c.loading},
		Upload:       uploadSnapshot(c.upload),
		History:      append([]domain.GeneratedImage(nil), c.history...),
		Locale:       c.localizer.Tag().String(),
	}
	if s.History == nil {
		s.History = []domain.GeneratedImage{}
	}
	if c.loading {
		key := i18n.KeyLoadingGenerate
		if c.loadingMode == domain.ModeImageToImage {
			key = i18n.KeyLoadingTransform
		}
		s.Loading.Message = c.localizer.T(key)
	}
	if c.errKind != KindNone {
		s.Error = c.localizer.T(c.errKind.MessageKey())
	}
	return s
}

// History 返回历史记录，最新的在最前面
func (c *Controller) History() []domain.GeneratedImage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.GeneratedImage(nil), c.history...)
}

// Image 按 ID 查找历史记录中的图片
func (c *Controller) Image(id string) (domain.GeneratedImage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, img := range c.history {
		if img.ID == id {
			return img, true
		}
	}
	return domain.GeneratedImage{}, false
}

// Close 结束会话：释放预览引用并丢弃历史记录，可重复调用
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.releaseUpload()
	c.history = nil
	c.closed = true
}

func uploadSnapshot(u *domain.UploadedImage) *UploadSnapshot {
	if u == nil {
		return nil
	}
	return &UploadSnapshot{FileName: u.FileName, PreviewURL: u.PreviewURL, MIMEType: u.MIMEType}
}
