// Package web 提供单页界面和它使用的 JSON API。
package web

import (
	"embed"
	"fmt"
	"net/http"

	"genai-studio/internal/metrics"
	"genai-studio/internal/studio"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/text/language"
)

//go:embed static/index.html
var staticFiles embed.FS

// Config Server 依赖
type Config struct {
	Sessions      *studio.SessionManager // 必填
	Metrics       *metrics.Collector     // 可选
	DefaultLocale language.Tag
}

// Server HTTP 界面
type Server struct {
	sessions      *studio.SessionManager
	metrics       *metrics.Collector
	defaultLocale language.Tag
	router        chi.Router
}

// NewServer 创建 Server 并注册路由
func NewServer(cfg Config) (*Server, error) {
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if cfg.DefaultLocale == language.Und {
		cfg.DefaultLocale = language.English
	}
	s := &Server{
		sessions:      cfg.Sessions,
		metrics:       cfg.Metrics,
		defaultLocale: cfg.DefaultLocale,
	}
	s.router = s.routes()
	return s, nil
}

// Handler 返回根 handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		requestLogger,
		s.instrument,
		s.negotiateLocale,
	)

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.With(s.withSession).Get("/", s.index)
	// 预览只对上传它的会话可见
	r.With(s.withSession).Get(studio.PreviewPathPrefix+"{id}", s.preview)

	r.Route("/api", func(r chi.Router) {
		// 结束会话不需要先创建会话
		r.Delete("/session", s.endSession)

		r.Group(func(r chi.Router) {
			r.Use(s.withSession)

			r.Get("/state", s.state)
			r.Post("/mode", s.setMode)
			r.Put("/prompt", s.setPrompt)
			r.Post("/aspect-ratio", s.setAspectRatio)
			r.Post("/upload", s.upload)
			r.Delete("/upload", s.removeUpload)
			r.Post("/generate", s.generate)
			r.Get("/images/{id}/download", s.download)
		})
	})

	return r
}
