package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	apierrors "github.com/pribylovaa/go-todo-list/internal/errors"
	logctx "github.com/pribylovaa/go-todo-list/internal/pkg/log"
	"github.com/pribylovaa/go-todo-list/internal/service"
)

// AccessVerifier проверяет access-токен. Реализуется *service.Service.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, accessToken string) (uuid.UUID, error)
}

type userIDKey struct{}

// AccessGuard пускает дальше только запросы с действующим
// "Authorization: Bearer <access>". ID пользователя кладётся в контекст.
// Отказ — 401 unauthorized; хранилище пользователей не читается.
func AccessGuard(v AccessVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.AccessGuard"

			tok, ok := BearerToken(r)
			if !ok {
				apierrors.WriteError(w, r, fmt.Errorf("%s: %w", op, service.ErrUnauthorized))
				return
			}

			uid, err := v.VerifyAccess(r.Context(), tok)
			if err != nil {
				logctx.From(r.Context()).Debug("access_denied", "path", r.URL.Path, "err", err.Error())
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey{}, uid)
			ctx = logctx.With(ctx, "user_id", uid.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext возвращает ID пользователя, которого пропустил AccessGuard.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	uid, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	return uid, ok
}

// BearerToken вынимает токен из заголовка Authorization.
func BearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "

	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}

	tok := strings.TrimSpace(auth[len(prefix):])
	return tok, tok != ""
}
