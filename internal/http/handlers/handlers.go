// handlers — HTTP-эндпоинты сессии: register, login, refresh, logout.
// Хендлеры отвечают за JSON и cookie; решения принимает service.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/pribylovaa/go-todo-list/internal/config"
	apierrors "github.com/pribylovaa/go-todo-list/internal/errors"
	"github.com/pribylovaa/go-todo-list/internal/metrics"
	"github.com/pribylovaa/go-todo-list/internal/models"
	"github.com/pribylovaa/go-todo-list/internal/service"
)

// maxBodyBytes — предел тела запроса.
const maxBodyBytes = 1 << 20

// Sessions — операции сессии, которые нужны хендлерам. Реализуется *service.Service.
type Sessions interface {
	Register(ctx context.Context, fullName, email, password string) (*models.AuthResult, error)
	Login(ctx context.Context, email, password string) (*models.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.AuthResult, error)
	Logout(ctx context.Context, refreshToken string)
}

// Handlers агрегирует зависимости хендлеров.
type Handlers struct {
	sessions Sessions
	cookie   config.CookieConfig
	metrics  *metrics.Metrics
}

// New создаёт хендлеры. m может быть nil.
func New(s Sessions, cookie config.CookieConfig, m *metrics.Metrics) *Handlers {
	if cookie.Name == "" {
		cookie.Name = "refreshToken"
	}
	if cookie.Path == "" {
		cookie.Path = "/"
	}

	return &Handlers{sessions: s, cookie: cookie, metrics: m}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: неизвестные поля и хвост после
// объекта запрещены. Любая ошибка разбора — service.ErrMalformed.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		return errors.Join(service.ErrMalformed, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return service.ErrMalformed
	}

	return nil
}

// setRefreshCookie кладёт refresh-токен в HTTP-only cookie, перезаписывая прежний.
func (h *Handlers) setRefreshCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSiteMode(),
	})
}

// clearRefreshCookie снимает cookie у клиента.
func (h *Handlers) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSiteMode(),
	})
}

// refreshCookie возвращает значение refresh-cookie или "".
func (h *Handlers) refreshCookie(r *http.Request) string {
	c, err := r.Cookie(h.cookie.Name)
	if err != nil {
		return ""
	}

	return c.Value
}

// observe пишет метрику операции с кодом ошибки в качестве результата.
func (h *Handlers) observe(operation string, start time.Time, err error) {
	result := metrics.ResultOK
	if err != nil {
		_, resp := apierrors.ToHTTP(err)
		result = resp.Error.Code
	}

	h.metrics.Observe(operation, result, time.Since(start))
}
