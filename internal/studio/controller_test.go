package studio

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"genai-studio/internal/domain"
	"genai-studio/internal/genai/gemini"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake")

func newTestController(t *testing.T, gen *fakeGenerator) (*Controller, *PreviewStore, *fakeObserver) {
	t.Helper()
	previews := NewPreviewStore()
	obs := &fakeObserver{}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c, err := NewController(ControllerConfig{
		Generator: gen,
		Previews:  previews,
		Locale:    language.English,
		Observer:  obs,
		Now:       func() time.Time { return now },
		NewID:     sequentialIDs(),
	})
	require.NoError(t, err)
	return c, previews, obs
}

func TestNewController(t *testing.T) {
	_, err := NewController(ControllerConfig{})
	assert.Error(t, err)

	c, err := NewController(ControllerConfig{Generator: &fakeGenerator{}})
	require.NoError(t, err)
	s := c.Snapshot()
	assert.Equal(t, domain.ModeTextToImage, s.Mode)
	assert.Equal(t, domain.AspectRatioSquare, s.AspectRatio)
	assert.Equal(t, "en", s.Locale)
	assert.Empty(t, s.History)
	assert.NotNil(t, s.History)
}

func TestController_GenerateTextToImage(t *testing.T) {
	gen := &fakeGenerator{url: "data:image/png;base64,AAAA"}
	c, _, obs := newTestController(t, gen)

	c.SetPrompt("a red cube")
	img, err := c.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "img-1", img.ID)
	assert.Equal(t, "data:image/png;base64,AAAA", img.URL)
	assert.Equal(t, "a red cube", img.Prompt)
	assert.Equal(t, domain.AspectRatioSquare, img.AspectRatio)

	require.Len(t, gen.requests, 1)
	parts := gen.requests[0].Parts()
	require.Len(t, parts, 1)
	assert.Equal(t, "a red cube", parts[0].Text)
	assert.Nil(t, parts[0].InlineData)

	s := c.Snapshot()
	assert.False(t, s.Loading.IsLoading)
	assert.Empty(t, s.Error)
	require.Len(t, s.History, 1)
	assert.Equal(t, []observation{{mode: "text-to-image", outcome: "success"}}, obs.got)
}

func TestController_HistoryIsMostRecentFirst(t *testing.T) {
	gen := &fakeGenerator{url: "data:image/png;base64,AAAA"}
	c, _, _ := newTestController(t, gen)

	for _, p := range []string{"first", "second", "third"} {
		c.SetPrompt(p)
		_, err := c.Generate(context.Background())
		require.NoError(t, err)
	}

	history := c.History()
	require.Len(t, history, 3)
	assert.Equal(t, "third", history[0].Prompt)
	assert.Equal(t, "second", history[1].Prompt)
	assert.Equal(t, "first", history[2].Prompt)

	img, ok := c.Image("img-2")
	require.True(t, ok)
	assert.Equal(t, "second", img.Prompt)
	_, ok = c.Image("missing")
	assert.False(t, ok)
}

func TestController_HistoryLimit(t *testing.T) {
	gen := &fakeGenerator{url: "data:image/png;base64,AAAA"}
	c, err := NewController(ControllerConfig{
		Generator:    gen,
		NewID:        sequentialIDs(),
		HistoryLimit: 2,
	})
	require.NoError(t, err)

	for _, p := range []string{"first", "second", "third", "fourth"} {
		c.SetPrompt(p)
		_, err := c.Generate(context.Background())
		require.NoError(t, err)
	}

	history := c.History()
	require.Len(t, history, 2)
	assert.Equal(t, "fourth", history[0].Prompt)
	assert.Equal(t, "third", history[1].Prompt)
	_, ok := c.Image("img-1")
	assert.False(t, ok)
}

func TestController_ValidationNeverCallsRemote(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(c *Controller)
		kind   ErrorKind
		banner string
	}{
		{
			name:   "empty prompt",
			setup:  func(c *Controller) {},
			kind:   KindEmptyPrompt,
			banner: "Please enter a prompt.",
		},
		{
			name:   "whitespace prompt",
			setup:  func(c *Controller) { c.SetPrompt(" \t\n ") },
			kind:   KindEmptyPrompt,
			banner: "Please enter a prompt.",
		},
		{
			name: "transform without upload",
			setup: func(c *Controller) {
				require.NoError(t, c.SetMode(domain.ModeImageToImage))
				c.SetPrompt("make it blue")
			},
			kind:   KindMissingSourceImage,
			banner: "Please upload an image to transform.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{url: "data:image/png;base64,AAAA"}
			c, _, obs := newTestController(t, gen)
			tt.setup(c)

			img, err := c.Generate(context.Background())
			assert.Nil(t, img)
			var se *Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.kind, se.Kind)
			assert.Equal(t, tt.banner, se.Message)
			assert.ErrorIs(t, err, domain.ErrValidation)

			assert.Equal(t, 0, gen.callCount())
			assert.Empty(t, obs.got)
			s := c.Snapshot()
			assert.Equal(t, tt.banner, s.Error)
			assert.False(t, s.Loading.IsLoading)
		})
	}
}

func TestController_GenerateFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    ErrorKind
		message string
	}{
		{"safety text", errors.New("candidate blocked: SAFETY"), KindSafetyRejection, "The request was blocked by the safety policy. Please adjust your prompt or image."},
		{"structured safety", domain.ErrSafetyRejection, KindSafetyRejection, "The request was blocked by the safety policy. Please adjust your prompt or image."},
		{"no candidate", domain.ErrNoCandidate, KindNoCandidate, "Image generation failed. Please try again."},
		{"generic", errors.New("quota exceeded"), KindRemote, "Image generation failed. Please try again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{err: tt.err}
			c, _, obs := newTestController(t, gen)
			c.SetPrompt("cube")

			_, err := c.Generate(context.Background())
			var se *Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.kind, se.Kind)
			assert.ErrorIs(t, err, tt.err)

			s := c.Snapshot()
			assert.Equal(t, tt.message, s.Error)
			assert.False(t, s.Loading.IsLoading, "always returns to idle")
			assert.Empty(t, s.History)
			require.Len(t, obs.got, 1)
			assert.Equal(t, tt.kind.String(), obs.got[0].outcome)
		})
	}
}

func TestController_GenerateClearsPreviousError(t *testing.T) {
	gen := &fakeGenerator{url: "data:image/png;base64,AAAA"}
	c, _, _ := newTestController(t, gen)

	_, err := c.Generate(context.Background())
	require.Error(t, err)
	require.NotEmpty(t, c.Snapshot().Error)

	c.SetPrompt("cube")
	assert.NotEmpty(t, c.Snapshot().Error, "editing the prompt keeps the error")

	_, err = c.Generate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, c.Snapshot().Error)
}

func TestController_LoadingDuringRemoteCall(t *testing.T) {
	gen := &fakeGenerator{
		url:     "data:image/png;base64,AAAA",
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	c, _, _ := newTestController(t, gen)
	require.NoError(t, c.SetMode(domain.ModeImageToImage))
	_, err := c.Upload("cat.png", "image/png", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	c.SetPrompt("make it blue")

	done := make(chan error, 1)
	go func() {
		_, err := c.Generate(context.Background())
		done <- err
	}()

	<-gen.started
	s := c.Snapshot()
	assert.True(t, s.Loading.IsLoading)
	assert.Equal(t, "Transforming image...", s.Loading.Message)
	assert.True(t, c.Busy())

	// 远程调用期间不持有锁
	c.SetPrompt("edited while loading")

	close(gen.release)
	require.NoError(t, <-done)
	assert.False(t, c.Busy())
	assert.Equal(t, "make it blue", c.History()[0].Prompt)
}

func TestController_SetMode(t *testing.T) {
	c, _, _ := newTestController(t, &fakeGenerator{})
	c.SetPrompt("keep me")
	require.NoError(t, c.SetAspectRatio(domain.AspectRatioLandscape))
	_, err := c.Upload("cat.png", "image/png", bytes.NewReader(pngBytes))
	require.NoError(t, err)

	_, err = c.Generate(context.Background())
	require.NoError(t, err)
	// 制造一个错误
	c.SetPrompt("")
	_, err = c.Generate(context.Background())
	require.Error(t, err)
	c.SetPrompt("keep me")
	require.NotEmpty(t, c.Snapshot().Error)

	require.NoError(t, c.SetMode(domain.ModeImageToImage))
	s := c.Snapshot()
	assert.Empty(t, s.Error, "mode switch clears the error")
	assert.Equal(t, domain.ModeImageToImage, s.Mode)
	assert.Equal(t, "keep me", s.Prompt)
	assert.Equal(t, domain.AspectRatioLandscape, s.AspectRatio)
	require.NotNil(t, s.Upload)

	err = c.SetMode("sketch")
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindInvalidMode, se.Kind)
	assert.Equal(t, domain.ModeImageToImage, c.Snapshot().Mode)
}

func TestController_SetAspectRatio(t *testing.T) {
	c, _, _ := newTestController(t, &fakeGenerator{})
	assert.NoError(t, c.SetAspectRatio(domain.AspectRatioPortrait))
	assert.Equal(t, domain.AspectRatioPortrait, c.Snapshot().AspectRatio)

	err := c.SetAspectRatio("4:3")
	assert.ErrorIs(t, err, domain.ErrInvalidAspectRatio)
	assert.Equal(t, domain.AspectRatioPortrait, c.Snapshot().AspectRatio)
}

func TestController_UploadAndTransform(t *testing.T) {
	gen := &fakeGenerator{url: "data:image/png;base64,AAAA"}
	c, previews, _ := newTestController(t, gen)

	up, err := c.Upload("cat.png", "", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.Equal(t, "cat.png", up.FileName)
	assert.Equal(t, "image/png", up.MIMEType)
	assert.True(t, strings.HasPrefix(up.PreviewURL, PreviewPathPrefix))

	mimeType, data, ok := previews.Get(strings.TrimPrefix(up.PreviewURL, PreviewPathPrefix))
	require.True(t, ok)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, pngBytes, data)

	require.NoError(t, c.SetMode(domain.ModeImageToImage))
	c.SetPrompt("make it blue")
	_, err = c.Generate(context.Background())
	require.NoError(t, err)

	parts := gen.requests[0].Parts()
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pngBytes), base64.StdEncoding.EncodeToString(parts[0].InlineData.Data))
	assert.Equal(t, "image/png", parts[0].InlineData.MIMEType)
	assert.Equal(t, "make it blue", parts[1].Text)
}

func TestController_UploadReplaceRevokesPrevious(t *testing.T) {
	c, previews, _ := newTestController(t, &fakeGenerator{})

	first, err := c.Upload("a.png", "image/png", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	second, err := c.Upload("b.png", "image/png", bytes.NewReader(pngBytes))
	require.NoError(t, err)

	assert.NotEqual(t, first.PreviewURL, second.PreviewURL)
	assert.Equal(t, 1, previews.Len())
	_, _, ok := previews.Get(strings.TrimPrefix(first.PreviewURL, PreviewPathPrefix))
	assert.False(t, ok)
	assert.Equal(t, "b.png", c.Snapshot().Upload.FileName)
}

func TestController_UploadReadFailure(t *testing.T) {
	c, previews, _ := newTestController(t, &fakeGenerator{})
	_, err := c.Upload("a.png", "image/png", bytes.NewReader(pngBytes))
	require.NoError(t, err)

	_, err = c.Upload("broken.png", "image/png", iotest.ErrReader(errors.New("disk error")))
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindFileRead, se.Kind)

	s := c.Snapshot()
	assert.Equal(t, "Could not read the selected file. Please try another image.", s.Error)
	require.NotNil(t, s.Upload)
	assert.Equal(t, "a.png", s.Upload.FileName, "previous upload untouched")
	assert.Equal(t, 1, previews.Len())

	// 成功上传清除错误
	_, err = c.Upload("b.png", "image/png", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.Empty(t, c.Snapshot().Error)
}

func TestController_RemoveUpload(t *testing.T) {
	gen := &fakeGenerator{url: "data:image/png;base64,AAAA"}
	c, previews, _ := newTestController(t, gen)
	_, err := c.Upload("a.png", "image/png", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	require.NoError(t, c.SetMode(domain.ModeImageToImage))
	c.SetPrompt("make it blue")

	c.RemoveUpload()
	assert.Nil(t, c.Snapshot().Upload)
	assert.Equal(t, 0, previews.Len())

	// 移除后图生图没有输入源，不会调用远程模型
	_, err = c.Generate(context.Background())
	assert.ErrorIs(t, err, domain.ErrMissingSourceImage)
	assert.Equal(t, 0, gen.callCount())

	c.RemoveUpload()
}

func TestController_PreviewOnlyForOwnUpload(t *testing.T) {
	c, previews, _ := newTestController(t, &fakeGenerator{})
	up, err := c.Upload("a.png", "image/png", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	id := strings.TrimPrefix(up.PreviewURL, PreviewPathPrefix)

	mimeType, data, ok := c.Preview(id)
	require.True(t, ok)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, pngBytes, data)

	// 同一个存储里别的会话登记的预览
	otherID, _ := previews.Create("image/png", []byte("other"))
	_, _, ok = c.Preview(otherID)
	assert.False(t, ok)
	_, _, ok = c.Preview("")
	assert.False(t, ok)

	c.RemoveUpload()
	_, _, ok = c.Preview(id)
	assert.False(t, ok)
}

func TestController_SetLocale(t *testing.T) {
	c, _, _ := newTestController(t, &fakeGenerator{})
	_, err := c.Generate(context.Background())
	require.Error(t, err)

	c.SetLocale(language.Chinese)
	s := c.Snapshot()
	assert.Equal(t, "zh", s.Locale)
	assert.Equal(t, "请输入提示词。", s.Error)
}

func TestController_Close(t *testing.T) {
	gen := &fakeGenerator{url: "data:image/png;base64,AAAA"}
	c, previews, _ := newTestController(t, gen)
	_, err := c.Upload("a.png", "image/png", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	c.SetPrompt("cube")
	_, err = c.Generate(context.Background())
	require.NoError(t, err)

	c.Close()
	c.Close()
	assert.Equal(t, 0, previews.Len())
	assert.Empty(t, c.History())

	_, err = c.Generate(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = c.Upload("b.png", "image/png", bytes.NewReader(pngBytes))
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Equal(t, 1, gen.callCount())
}

var _ gemini.ImageGenerator = (*fakeGenerator)(nil)
