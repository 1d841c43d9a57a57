package studio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"genai-studio/common"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// ControllerFactory 为新会话创建控制器
type ControllerFactory func(locale language.Tag) (*Controller, error)

type session struct {
	ctrl     *Controller
	lastSeen time.Time
}

// SessionManager 每个浏览器会话对应一个控制器，空闲超时后销毁
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*session
	factory  ControllerFactory
	idle     time.Duration // 0 表示永不过期
	now      func() time.Time
}

// NewSessionManager 创建会话管理器
func NewSessionManager(factory ControllerFactory, idle time.Duration) (*SessionManager, error) {
	if factory == nil {
		return nil, fmt.Errorf("controller factory is required")
	}
	if idle < 0 {
		idle = 0
	}
	return &SessionManager{
		sessions: make(map[string]*session),
		factory:  factory,
		idle:     idle,
		now:      time.Now,
	}, nil
}

// GetOrCreate 返回 id 对应的控制器；id 为空或未知时创建新会话并返回新的 id
func (m *SessionManager) GetOrCreate(id string, locale language.Tag) (*Controller, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok && id != "" {
		s.lastSeen = m.now()
		return s.ctrl, id, nil
	}

	ctrl, err := m.factory(locale)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}
	id = uuid.NewString()
	m.sessions[id] = &session{ctrl: ctrl, lastSeen: m.now()}
	common.WithField("session", id).Debug("Session created")
	return ctrl, id, nil
}

// Get 返回已存在的会话
func (m *SessionManager) Get(id string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	s.lastSeen = m.now()
	return s.ctrl, true
}

// End 结束会话并释放其资源
func (m *SessionManager) End(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.ctrl.Close()
	common.WithField("session", id).Debug("Session ended")
	return true
}

// Sweep 销毁空闲超时的会话，正在生成的会话不会被回收。返回销毁数量
func (m *SessionManager) Sweep() int {
	if m.idle == 0 {
		return 0
	}
	deadline := m.now().Add(-m.idle)

	m.mu.Lock()
	var expired []*session
	for id, s := range m.sessions {
		if s.lastSeen.Before(deadline) && !s.ctrl.Busy() {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.ctrl.Close()
	}
	if len(expired) > 0 {
		common.Debugf("Swept %d idle sessions", len(expired))
	}
	return len(expired)
}

// Run 按固定间隔清理空闲会话，直到 ctx 结束
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) {
	if m.idle == 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Len 当前会话数量
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll 结束全部会话
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.ctrl.Close()
	}
}
