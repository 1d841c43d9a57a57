package studio

import (
	"sync"

	"github.com/google/uuid"
)

// PreviewPathPrefix 预览引用的 URL 前缀
const PreviewPathPrefix = "/previews/"

type preview struct {
	mimeType string
	data     []byte
}

// PreviewStore 保存上传图片的临时预览引用。
// 每个引用在替换、移除或会话结束时必须 Revoke。
type PreviewStore struct {
	mu    sync.RWMutex
	items map[string]preview
}

// NewPreviewStore 创建预览存储
func NewPreviewStore() *PreviewStore {
	return &PreviewStore{items: make(map[string]preview)}
}

// Create 注册一份预览数据，返回引用 ID 和可访问的 URL
func (s *PreviewStore) Create(mimeType string, data []byte) (id string, url string) {
	id = uuid.NewString()
	s.mu.Lock()
	s.items[id] = preview{mimeType: mimeType, data: data}
	s.mu.Unlock()
	return id, PreviewPathPrefix + id
}

// Get 返回仍然有效的预览数据
func (s *PreviewStore) Get(id string) (mimeType string, data []byte, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[id]
	return p.mimeType, p.data, ok
}

// Revoke 释放引用，引用不存在时返回 false
func (s *PreviewStore) Revoke(id string) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	return true
}

// Len 当前有效引用数量
func (s *PreviewStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
