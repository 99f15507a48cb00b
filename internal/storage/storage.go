package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-todo-list/internal/models"
)

var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email).
	ErrAlreadyExists = errors.New("already exists")
)

//go:generate mockgen -source=storage.go -destination=../../mocks/storage.go -package=mocks

// Storage — хранилище учётных записей (Credential Store).
// Уникальность email обеспечивает само хранилище.
type Storage interface {
	// SaveUser создаёт нового пользователя. При занятом email — ErrAlreadyExists.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по нормализованному email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// Close освобождает ресурсы хранилища.
	Close(ctx context.Context) error
}

// RevocationStore — список отозванных refresh-токенов (по jti).
// Записи живут до естественного истечения токена.
type RevocationStore interface {
	// Revoke помечает jti отозванным до момента until.
	Revoke(ctx context.Context, jti string, until time.Time) error
	// IsRevoked сообщает, отозван ли jti.
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
