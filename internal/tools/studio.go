package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"genai-studio/common"
	"genai-studio/internal/domain"
	"genai-studio/internal/genai/gemini"
	"genai-studio/internal/studio"
	"genai-studio/internal/utils"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/text/language"
)

const (
	GenerateImageToolName  = "generate_image"
	TransformImageToolName = "transform_image"
)

// 结果已经随 tool 响应返回，控制器只保留最近一张
const toolHistoryLimit = 1

// NewStudioController 创建供 MCP tools 使用的长期控制器
func NewStudioController(generator gemini.ImageGenerator, locale language.Tag) (*studio.Controller, error) {
	return studio.NewController(studio.ControllerConfig{
		Generator:    generator,
		Locale:       locale,
		HistoryLimit: toolHistoryLimit,
	})
}

// studioTools 所有 tool 调用共用一个控制器，调用按顺序执行，保证同一时间只有一个生成请求
type studioTools struct {
	mu   sync.Mutex
	ctrl *studio.Controller
}

// RegisterStudioTools 注册文生图和图生图的 MCP tools
func RegisterStudioTools(s *server.MCPServer, ctrl *studio.Controller) error {
	if s == nil {
		return fmt.Errorf("mcp server is required")
	}
	if ctrl == nil {
		return fmt.Errorf("studio controller is required")
	}
	t := &studioTools{ctrl: ctrl}

	ratios := make([]string, 0, len(domain.AspectRatios()))
	for _, r := range domain.AspectRatios() {
		ratios = append(ratios, string(r))
	}

	// 文生图
	generateImageTool := mcp.NewTool(
		GenerateImageToolName,
		mcp.WithDescription("Generate an image from a text prompt. Returns the image and its data URI."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Text prompt describing the image to generate"),
		),
		mcp.WithString("aspect_ratio",
			mcp.Description("Aspect ratio of the generated image, defaults to 1:1"),
			mcp.Enum(ratios...),
		),
	)
	s.AddTool(generateImageTool, t.handleGenerate)

	// 图生图
	transformImageTool := mcp.NewTool(
		TransformImageToolName,
		mcp.WithDescription("Transform a source image according to a text prompt. Takes the image as a base64 data URI and returns the transformed image."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Text prompt describing how to transform the image"),
		),
		mcp.WithString("image",
			mcp.Required(),
			mcp.Description("Source image as a data URI, e.g. data:image/png;base64,..."),
		),
		mcp.WithString("aspect_ratio",
			mcp.Description("Aspect ratio of the generated image, defaults to 1:1"),
			mcp.Enum(ratios...),
		),
	)
	s.AddTool(transformImageTool, t.handleTransform)

	return nil
}

func (t *studioTools) handleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("prompt parameter is required: %v", err)), nil
	}
	ratio := req.GetString("aspect_ratio", string(domain.DefaultAspectRatio))

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.prepare(domain.ModeTextToImage, prompt, ratio); err != nil {
		return toolError(err), nil
	}
	return t.generate(ctx)
}

func (t *studioTools) handleTransform(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("prompt parameter is required: %v", err)), nil
	}
	image, err := req.RequireString("image")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("image parameter is required: %v", err)), nil
	}
	ratio := req.GetString("aspect_ratio", string(domain.DefaultAspectRatio))

	mimeType, data, err := utils.DecodeDataURL(image)
	if err != nil {
		common.WithError(err).Warn("MCP: invalid source image")
		return mcp.NewToolResultError(t.ctrl.Message(studio.KindFileRead)), nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.prepare(domain.ModeImageToImage, prompt, ratio); err != nil {
		return toolError(err), nil
	}
	if _, err := t.ctrl.Upload("source"+utils.GetExtensionFromMimeType(mimeType), mimeType, bytes.NewReader(data)); err != nil {
		return toolError(err), nil
	}
	// 源图片只用于本次调用
	defer t.ctrl.RemoveUpload()

	return t.generate(ctx)
}

func (t *studioTools) prepare(mode domain.Mode, prompt, ratio string) error {
	if err := t.ctrl.SetMode(mode); err != nil {
		return err
	}
	if err := t.ctrl.SetAspectRatio(domain.AspectRatio(ratio)); err != nil {
		return err
	}
	t.ctrl.SetPrompt(prompt)
	return nil
}

func (t *studioTools) generate(ctx context.Context) (*mcp.CallToolResult, error) {
	img, err := t.ctrl.Generate(ctx)
	if err != nil {
		return toolError(err), nil
	}

	mimeType, payload, err := utils.SplitDataURL(img.URL)
	if err != nil {
		common.WithError(err).WithField("id", img.ID).Error("MCP: generated image is not a valid data URL")
		return mcp.NewToolResultError(fmt.Sprintf("failed to generate image: %v", err)), nil
	}

	common.WithFields(map[string]interface{}{
		"id":           img.ID,
		"aspect_ratio": img.AspectRatio,
	}).Info("MCP: image generated")

	return mcp.NewToolResultImage(fmt.Sprintf("Generated image %s: %s", img.ID, img.URL), payload, mimeType), nil
}

// toolError 使用控制器已本地化的文案作为 tool 错误
func toolError(err error) *mcp.CallToolResult {
	var se *studio.Error
	if errors.As(err, &se) {
		return mcp.NewToolResultError(se.Message)
	}
	return mcp.NewToolResultError(fmt.Sprintf("failed to generate image: %v", err))
}
