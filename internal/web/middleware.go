package web

import (
	"context"
	"net/http"
	"time"

	"genai-studio/common"
	"genai-studio/internal/i18n"
	"genai-studio/internal/studio"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/text/language"
)

// SessionCookieName 会话 cookie 名称
const SessionCookieName = "studio_session"

type localeContextKey struct{}
type sessionContextKey struct{}

type sessionInfo struct {
	id   string
	ctrl *studio.Controller
}

// requestLogger 使用 logrus 记录每个请求
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		common.WithFields(map[string]interface{}{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
		}).Debug("HTTP request")
	})
}

// instrument 记录请求指标，path 使用路由模板避免标签基数膨胀
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.RecordHTTPRequest(r.Method, path, status, time.Since(start))
	})
}

// negotiateLocale 根据 X-Locale 或 Accept-Language 选择界面语言
func (s *Server) negotiateLocale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept := r.Header.Get("X-Locale")
		if accept == "" {
			accept = r.Header.Get("Accept-Language")
		}
		tag := i18n.Match(accept, s.defaultLocale)
		ctx := context.WithValue(r.Context(), localeContextKey{}, tag)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withSession 找到或创建当前浏览器的会话控制器
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := localeFromContext(r.Context())

		var id string
		if c, err := r.Cookie(SessionCookieName); err == nil {
			id = c.Value
		}
		ctrl, newID, err := s.sessions.GetOrCreate(id, locale)
		if err != nil {
			common.WithError(err).Error("Failed to open session")
			s.error(w, r, http.StatusInternalServerError, i18n.KeyGenerationFailed)
			return
		}
		if newID != id {
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    newID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctrl.SetLocale(locale)

		ctx := context.WithValue(r.Context(), sessionContextKey{}, sessionInfo{id: newID, ctrl: ctrl})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func localeFromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(localeContextKey{}).(language.Tag); ok {
		return tag
	}
	return language.English
}

func sessionFromContext(ctx context.Context) sessionInfo {
	info, _ := ctx.Value(sessionContextKey{}).(sessionInfo)
	return info
}
