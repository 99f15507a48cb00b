package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/go-todo-list/internal/models"
	"github.com/pribylovaa/go-todo-list/internal/pkg/log"
	"github.com/pribylovaa/go-todo-list/internal/pkg/redact"
	"github.com/pribylovaa/go-todo-list/internal/storage"
	"github.com/pribylovaa/go-todo-list/internal/token"
)

// Register создаёт пользователя и открывает для него сессию.
func (s *Service) Register(ctx context.Context, fullName, email, password string) (*models.AuthResult, error) {
	const op = "service.auth.Register"

	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyFullName)
	}

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := validatePassword(password); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.storage.UserByEmail(ctx, normEmail)
	if err == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		FullName:     fullName,
		Email:        normEmail,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Между проверкой и записью e-mail мог занять параллельный запрос:
	// окончательное решение за уникальным индексом хранилища.
	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("user_registered",
		"user_id", user.ID.String(),
		"email", redact.Email(normEmail),
	)

	return s.openSession(user)
}

// Login проверяет пару e-mail/пароль и открывает новую сессию.
// Неизвестный e-mail и неверный пароль дают одну и ту же ошибку.
func (s *Service) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	const op = "service.auth.Login"

	normEmail, err := validateEmail(email)
	if err != nil || password == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			log.From(ctx).Info("login_failed", "email", redact.Email(normEmail))

			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		log.From(ctx).Info("login_failed", "email", redact.Email(normEmail))

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return s.openSession(user)
}

// Refresh по refresh-токену из cookie возвращает пользователя и новую пару
// токенов. Предъявленный токен при сконфигурированном списке отзыва отзывается.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.AuthResult, error) {
	const op = "service.auth.Refresh"

	if refreshToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoSession)
	}

	claims, err := s.tokens.Verify(token.KindRefresh, refreshToken)
	if err != nil {
		log.From(ctx).Info("refresh_rejected", "reason", err.Error())

		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidSession, err)
	}

	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if revoked {
			log.From(ctx).Warn("refresh_revoked_token", "user_id", claims.UserID)

			return nil, fmt.Errorf("%s: %w", op, ErrInvalidSession)
		}
	}

	user, err := s.storage.UserByID(ctx, claims.UserUUID())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidSession)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.revoke(ctx, claims)

	return s.openSession(user)
}

// Logout завершает сессию. Ошибок не возвращает: cookie снимает транспорт
// в любом случае, а токен отзывается только если это возможно.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" || s.revocations == nil {
		return
	}

	claims, err := s.tokens.Verify(token.KindRefresh, refreshToken)
	if err != nil {
		return
	}

	s.revoke(ctx, claims)
}

// VerifyAccess проверяет access-токен и возвращает ID пользователя.
// Хранилище не читается.
func (s *Service) VerifyAccess(ctx context.Context, accessToken string) (uuid.UUID, error) {
	const op = "service.auth.VerifyAccess"

	if accessToken == "" {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	claims, err := s.tokens.Verify(token.KindAccess, accessToken)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w: %w", op, ErrUnauthorized, err)
	}

	return claims.UserUUID(), nil
}

// openSession выпускает пару токенов для пользователя.
func (s *Service) openSession(user *models.User) (*models.AuthResult, error) {
	const op = "service.auth.openSession"

	access, err := s.tokens.Mint(token.KindAccess, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh, err := s.tokens.Mint(token.KindRefresh, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.AuthResult{
		User: *user,
		Tokens: models.TokenPair{
			AccessToken:      access.Token,
			AccessExpiresAt:  access.ExpiresAt,
			RefreshToken:     refresh.Token,
			RefreshExpiresAt: refresh.ExpiresAt,
		},
	}, nil
}

// revoke кладёт jti в список отзыва до истечения токена.
// Сбой списка отзыва только логируется.
func (s *Service) revoke(ctx context.Context, claims *token.Claims) {
	if s.revocations == nil || claims.ExpiresAt == nil {
		return
	}

	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		log.From(ctx).Warn("revoke_failed", "user_id", claims.UserID, "err", err.Error())
	}
}

// hashPassword хэширует пароль с помощью bcrypt.
func (s *Service) hashPassword(password string) (string, error) {
	const op = "service.auth.hashPassword"

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkPassword сравнивает пароль с хэшем.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// validateEmail обрезает пробелы, проверяет формат и приводит к нижнему регистру.
// Адрес с отображаемым именем ("Alice <a@x.com>") не принимается.
func validateEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}

	return strings.ToLower(email), nil
}

// validatePassword: пароль непустой и не длиннее предела bcrypt.
// Политики сложности нет.
func validatePassword(pw string) error {
	switch {
	case pw == "":
		return ErrEmptyPassword
	case len(pw) > maxPasswordBytes:
		return ErrPasswordTooLong
	}

	return nil
}
