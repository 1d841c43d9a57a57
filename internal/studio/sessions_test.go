package studio

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func newTestSessions(t *testing.T, idle time.Duration) (*SessionManager, *PreviewStore, *time.Time) {
	t.Helper()
	previews := NewPreviewStore()
	m, err := NewSessionManager(func(locale language.Tag) (*Controller, error) {
		return NewController(ControllerConfig{
			Generator: &fakeGenerator{url: "data:image/png;base64,AAAA"},
			Previews:  previews,
			Locale:    locale,
		})
	}, idle)
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, previews, &now
}

func TestNewSessionManager(t *testing.T) {
	_, err := NewSessionManager(nil, time.Minute)
	assert.Error(t, err)

	m, err := NewSessionManager(func(language.Tag) (*Controller, error) {
		return nil, errors.New("boom")
	}, time.Minute)
	require.NoError(t, err)
	_, _, err = m.GetOrCreate("", language.English)
	assert.Error(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestSessionManager_GetOrCreate(t *testing.T) {
	m, _, _ := newTestSessions(t, time.Hour)

	c1, id, err := m.GetOrCreate("", language.Chinese)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, "zh", c1.Snapshot().Locale)

	c2, id2, err := m.GetOrCreate(id, language.English)
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.Equal(t, id, id2)

	// 未知 id 不会被采用
	_, id3, err := m.GetOrCreate("forged", language.English)
	require.NoError(t, err)
	assert.NotEqual(t, "forged", id3)
	assert.Equal(t, 2, m.Len())

	got, ok := m.Get(id)
	assert.True(t, ok)
	assert.Same(t, c1, got)
	_, ok = m.Get("forged")
	assert.False(t, ok)
}

func TestSessionManager_End(t *testing.T) {
	m, previews, _ := newTestSessions(t, time.Hour)
	c, id, err := m.GetOrCreate("", language.English)
	require.NoError(t, err)
	_, err = c.Upload("a.png", "image/png", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	require.Equal(t, 1, previews.Len())

	assert.True(t, m.End(id))
	assert.False(t, m.End(id))
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, previews.Len(), "teardown revokes the preview")
}

func TestSessionManager_Sweep(t *testing.T) {
	m, _, now := newTestSessions(t, 30*time.Minute)
	_, oldID, err := m.GetOrCreate("", language.English)
	require.NoError(t, err)

	*now = now.Add(20 * time.Minute)
	_, freshID, err := m.GetOrCreate("", language.English)
	require.NoError(t, err)

	*now = now.Add(15 * time.Minute)
	assert.Equal(t, 1, m.Sweep())

	_, ok := m.Get(oldID)
	assert.False(t, ok)
	_, ok = m.Get(freshID)
	assert.True(t, ok)
}

func TestSessionManager_SweepDisabled(t *testing.T) {
	m, _, now := newTestSessions(t, 0)
	_, _, err := m.GetOrCreate("", language.English)
	require.NoError(t, err)
	*now = now.Add(24 * time.Hour)
	assert.Equal(t, 0, m.Sweep())

	// idle 为 0 时 Run 立即返回
	m.Run(context.Background(), time.Millisecond)
}

func TestSessionManager_RunStopsWithContext(t *testing.T) {
	m, _, _ := newTestSessions(t, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestSessionManager_CloseAll(t *testing.T) {
	m, previews, _ := newTestSessions(t, time.Hour)
	for i := 0; i < 3; i++ {
		c, _, err := m.GetOrCreate("", language.English)
		require.NoError(t, err)
		_, err = c.Upload("a.png", "image/png", bytes.NewReader(pngBytes))
		require.NoError(t, err)
	}
	require.Equal(t, 3, previews.Len())

	m.CloseAll()
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, previews.Len())
}
