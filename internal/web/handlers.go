package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"genai-studio/common"
	"genai-studio/internal/domain"
	"genai-studio/internal/i18n"
	"genai-studio/internal/studio"
	"genai-studio/internal/utils"

	"github.com/go-chi/chi/v5"
)

type errorResponse struct {
	Error string `json:"error"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

type aspectRatioRequest struct {
	AspectRatio string `json:"aspectRatio"`
}

// generateRequest 字段均可省略，省略时使用会话当前的值
type generateRequest struct {
	Prompt      *string `json:"prompt"`
	AspectRatio *string `json:"aspectRatio"`
}

func (s *Server) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) error(w http.ResponseWriter, r *http.Request, code int, key i18n.Key) {
	s.json(w, code, errorResponse{Error: i18n.New(localeFromContext(r.Context())).T(key)})
}

// studioError 把控制器返回的错误转换为 HTTP 响应
func (s *Server) studioError(w http.ResponseWriter, r *http.Request, err error) {
	var se *studio.Error
	if !errors.As(err, &se) {
		if errors.Is(err, studio.ErrSessionClosed) {
			s.error(w, r, http.StatusGone, i18n.KeyNotFound)
			return
		}
		common.WithError(err).Error("Unexpected studio error")
		s.error(w, r, http.StatusInternalServerError, i18n.KeyGenerationFailed)
		return
	}

	code := http.StatusBadGateway
	switch {
	case se.Kind.IsValidation():
		code = http.StatusBadRequest
	case se.Kind == studio.KindFileRead:
		code = http.StatusUnprocessableEntity
	case se.Kind == studio.KindSafetyRejection:
		code = http.StatusUnprocessableEntity
	}
	s.json(w, code, errorResponse{Error: se.Message})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.error(w, r, http.StatusBadRequest, i18n.KeyBadRequest)
		return false
	}
	return true
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.json(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(page)
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	s.json(w, http.StatusOK, sessionFromContext(r.Context()).ctrl.Snapshot())
}

func (s *Server) setMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctrl := sessionFromContext(r.Context()).ctrl
	if err := ctrl.SetMode(domain.Mode(req.Mode)); err != nil {
		s.studioError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, ctrl.Snapshot())
}

func (s *Server) setPrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctrl := sessionFromContext(r.Context()).ctrl
	ctrl.SetPrompt(req.Prompt)
	s.json(w, http.StatusOK, ctrl.Snapshot())
}

func (s *Server) setAspectRatio(w http.ResponseWriter, r *http.Request) {
	var req aspectRatioRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctrl := sessionFromContext(r.Context()).ctrl
	if err := ctrl.SetAspectRatio(domain.AspectRatio(req.AspectRatio)); err != nil {
		s.studioError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, ctrl.Snapshot())
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		s.error(w, r, http.StatusBadRequest, i18n.KeyBadRequest)
		return
	}
	defer file.Close()

	ctrl := sessionFromContext(r.Context()).ctrl
	if _, err := ctrl.Upload(header.Filename, header.Header.Get("Content-Type"), file); err != nil {
		s.studioError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, ctrl.Snapshot())
}

func (s *Server) removeUpload(w http.ResponseWriter, r *http.Request) {
	ctrl := sessionFromContext(r.Context()).ctrl
	ctrl.RemoveUpload()
	s.json(w, http.StatusOK, ctrl.Snapshot())
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	ctrl := sessionFromContext(r.Context()).ctrl

	// 与页面禁用按钮一致，只是提示性的检查
	if ctrl.Busy() {
		s.error(w, r, http.StatusConflict, i18n.KeyBusy)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.error(w, r, http.StatusBadRequest, i18n.KeyBadRequest)
		return
	}
	if req.AspectRatio != nil {
		if err := ctrl.SetAspectRatio(domain.AspectRatio(*req.AspectRatio)); err != nil {
			s.studioError(w, r, err)
			return
		}
	}
	if req.Prompt != nil {
		ctrl.SetPrompt(*req.Prompt)
	}

	// 已发出的远程调用不随客户端断开而取消
	if _, err := ctrl.Generate(context.WithoutCancel(r.Context())); err != nil {
		s.studioError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, ctrl.Snapshot())
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	ctrl := sessionFromContext(r.Context()).ctrl
	img, ok := ctrl.Image(chi.URLParam(r, "id"))
	if !ok {
		s.error(w, r, http.StatusNotFound, i18n.KeyNotFound)
		return
	}
	mimeType, data, err := utils.DecodeDataURL(img.URL)
	if err != nil {
		common.WithError(err).WithField("id", img.ID).Error("Stored image is not a valid data URL")
		s.error(w, r, http.StatusInternalServerError, i18n.KeyGenerationFailed)
		return
	}

	name := utils.DownloadFileName(img.ID, img.Timestamp, mimeType)
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(data)
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	mimeType, data, ok := sessionFromContext(r.Context()).ctrl.Preview(chi.URLParam(r, "id"))
	if !ok {
		s.error(w, r, http.StatusNotFound, i18n.KeyNotFound)
		return
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookieName); err == nil {
		s.sessions.End(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
