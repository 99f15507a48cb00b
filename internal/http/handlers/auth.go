package handlers

import (
	"net/http"
	"time"

	apierrors "github.com/pribylovaa/go-todo-list/internal/errors"
	"github.com/pribylovaa/go-todo-list/internal/http/middleware"
	"github.com/pribylovaa/go-todo-list/internal/models"
	logctx "github.com/pribylovaa/go-todo-list/internal/pkg/log"
	"github.com/pribylovaa/go-todo-list/internal/service"
)

type registerRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse — ответ register/login/refresh.
// Refresh-токен в тело не попадает: только в cookie.
type AuthResponse struct {
	User        models.PublicUser `json:"user"`
	AccessToken string            `json:"accessToken"`
}

// LogoutResponse — ответ logout.
type LogoutResponse struct {
	Success bool `json:"success"`
}

// MeResponse — ответ защищённого /auth/me.
type MeResponse struct {
	UserID string `json:"userId"`
}

// Register — POST /auth/register.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var in registerRequest
	if err := decodeStrict(w, r, &in); err != nil {
		h.fail(w, r, "register", start, err)
		return
	}

	res, err := h.sessions.Register(r.Context(), in.FullName, in.Email, in.Password)
	if err != nil {
		h.fail(w, r, "register", start, err)
		return
	}

	h.succeed(w, "register", start, res)
}

// Login — POST /auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var in loginRequest
	if err := decodeStrict(w, r, &in); err != nil {
		h.fail(w, r, "login", start, err)
		return
	}

	res, err := h.sessions.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		h.fail(w, r, "login", start, err)
		return
	}

	h.succeed(w, "login", start, res)
}

// Refresh — GET /auth/refresh: refresh-токен читается из cookie,
// в ответ приходит пользователь, новый access-токен и новая cookie.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	res, err := h.sessions.Refresh(r.Context(), h.refreshCookie(r))
	if err != nil {
		h.fail(w, r, "refresh", start, err)
		return
	}

	h.succeed(w, "refresh", start, res)
}

// Logout — GET /auth/logout. Всегда 200 и снятая cookie.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	h.sessions.Logout(r.Context(), h.refreshCookie(r))
	h.clearRefreshCookie(w)
	h.observe("logout", start, nil)

	writeJSON(w, http.StatusOK, LogoutResponse{Success: true})
}

// Me — GET /auth/me за AccessGuard: ID пользователя из access-токена.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{UserID: uid.String()})
}

func (h *Handlers) succeed(w http.ResponseWriter, operation string, start time.Time, res *models.AuthResult) {
	h.setRefreshCookie(w, res.Tokens.RefreshToken, res.Tokens.RefreshExpiresAt)
	h.observe(operation, start, nil)

	writeJSON(w, http.StatusOK, AuthResponse{
		User:        res.User.Public(),
		AccessToken: res.Tokens.AccessToken,
	})
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, operation string, start time.Time, err error) {
	h.observe(operation, start, err)

	if status, _ := apierrors.ToHTTP(err); status >= http.StatusInternalServerError {
		logctx.From(r.Context()).Error(operation+"_failed", "err", err.Error())
	}

	apierrors.WriteError(w, r, err)
}
