// errors стандартизирует ответы об ошибках HTTP-слоя.
// На вход принимает ошибку сервисного слоя, на выход даёт:
//   - HTTP-статус;
//   - короткий стабильный code и безопасное message без деталей.
//
// Сопоставление идёт через errors.Is по сентинелам пакета service,
// поэтому обёртки с op-префиксами не мешают.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/go-todo-list/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// APIError — единый формат ошибки для фронта.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

type mapping struct {
	target  error
	status  int
	code    string
	message string
}

// Порядок важен: ошибки сессии проверяются раньше причин, обёрнутых вместе с ними.
var table = []mapping{
	{service.ErrDuplicateEmail, http.StatusConflict, "duplicate_email", "email already registered"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "invalid email or password"},
	{service.ErrNoSession, http.StatusUnauthorized, "no_session", "no session"},
	{service.ErrInvalidSession, http.StatusUnauthorized, "invalid_session", "invalid session"},
	{service.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "unauthorized"},
	{service.ErrMalformed, http.StatusBadRequest, "malformed", "malformed request"},
	{service.ErrInvalidEmail, http.StatusBadRequest, "invalid_argument", "invalid email"},
	{service.ErrEmptyPassword, http.StatusBadRequest, "invalid_argument", "password is required"},
	{service.ErrPasswordTooLong, http.StatusBadRequest, "invalid_argument", "password is too long"},
	{service.ErrEmptyFullName, http.StatusBadRequest, "invalid_argument", "full name is required"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"},
	{context.Canceled, StatusClientClosedRequest, "canceled", "canceled"},
}

// ToHTTP конвертирует ошибку в HTTP-статус и унифицированный ответ.
// nil и неизвестные ошибки дают 500/internal: это программная ошибка
// или сбой инфраструктуры, детали которого наружу не отдаются.
func ToHTTP(err error) (int, ErrorResponse) {
	if err != nil {
		for _, m := range table {
			if errors.Is(err, m.target) {
				return m.status, ErrorResponse{Error: APIError{Code: m.code, Message: m.message}}
			}
		}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Error: APIError{
			Code:    "internal",
			Message: "internal error",
		},
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет статус и тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
