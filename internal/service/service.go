// service содержит бизнес-логику сессий: регистрацию, вход, обновление
// пары токенов, выход и проверку access-токена.
//
// Service не хранит состояние сессий: сессия — это действующий refresh-токен
// в cookie клиента. Экземпляр безопасен для конкурентного использования,
// если потокобезопасно переданное хранилище.
//
// Ошибки возвращаются обёрнутыми, транспорт сопоставляет их через errors.Is
// (см. internal/errors).
package service

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/go-todo-list/internal/storage"
	"github.com/pribylovaa/go-todo-list/internal/token"
)

var (
	// ErrDuplicateEmail — e-mail уже занят. HTTP 409.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials — неизвестный e-mail или неверный пароль.
	// Оба случая неразличимы снаружи. HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNoSession — refresh-cookie отсутствует. HTTP 401.
	ErrNoSession = errors.New("no session")

	// ErrInvalidSession — refresh-токен не прошёл проверку, отозван
	// или пользователь больше не существует. HTTP 401.
	ErrInvalidSession = errors.New("invalid session")

	// ErrUnauthorized — access-токен отсутствует или недействителен. HTTP 401.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformed — тело запроса не разбирается. HTTP 400.
	ErrMalformed = errors.New("malformed request")

	// Ошибки валидации входных данных. HTTP 400.
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrEmptyPassword   = errors.New("password is empty")
	ErrPasswordTooLong = errors.New("password is too long")
	ErrEmptyFullName   = errors.New("full name is empty")
)

// maxPasswordBytes — предел bcrypt: более длинный пароль он не принимает.
const maxPasswordBytes = 72

// Service описывает бизнес-логику сессий.
type Service struct {
	storage     storage.Storage
	tokens      *token.Issuer
	revocations storage.RevocationStore // nil, если список отзыва не сконфигурирован
	now         func() time.Time
	hashCost    int
	dummyHash   []byte
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник времени для полей CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithHashCost задаёт стоимость bcrypt (в тестах — bcrypt.MinCost).
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, tokens *token.Issuer, opts ...Option) *Service {
	s := &Service{
		storage:  storage,
		tokens:   tokens,
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Хэш-заглушка той же стоимости: вход с неизвестным e-mail
	// тратит на сравнение столько же времени, сколько с известным.
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("todo-auth-dummy-password"), s.hashCost)

	return s
}

// SetRevocationStore включает список отзыва refresh-токенов (опционально).
func (s *Service) SetRevocationStore(r storage.RevocationStore) {
	s.revocations = r
}
