package studio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"genai-studio/internal/genai/gemini"
)

// --- Mocks ---

type fakeGenerator struct {
	mu       sync.Mutex
	calls    int
	requests []*gemini.Request

	url     string
	err     error
	started chan struct{} // 非空时在收到请求后通知
	release chan struct{} // 非空时阻塞到被关闭
}

func (f *fakeGenerator) Generate(ctx context.Context, req *gemini.Request) (string, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.url, f.err
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type observation struct {
	mode    string
	outcome string
}

type fakeObserver struct {
	mu  sync.Mutex
	got []observation
}

func (o *fakeObserver) ObserveGeneration(mode string, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.got = append(o.got, observation{mode: mode, outcome: outcome})
}

func sequentialIDs() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("img-%d", n)
	}
}
