package models

import (
	"time"

	"github.com/google/uuid"
)

// User — учётная запись пользователя в хранилище.
// PasswordHash — bcrypt-хэш; открытый пароль нигде не хранится.
type User struct {
	ID           uuid.UUID
	FullName     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser — представление пользователя, которое уходит клиенту.
type PublicUser struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// Public возвращает безопасную для выдачи наружу проекцию пользователя.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID.String(),
		FullName: u.FullName,
		Email:    u.Email,
	}
}
