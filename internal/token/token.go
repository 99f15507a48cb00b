// token выпускает и проверяет подписанные JWT двух видов: короткоживущий
// access и долгоживущий refresh.
//
// Ключи подписи для каждого вида выводятся из общего секрета через HKDF,
// поэтому refresh-токен никогда не пройдёт проверку как access (и наоборот):
// подпись просто не сойдётся. Подпись проверяется до срока действия.
// Смена секрета инвалидирует все выданные токены.
package token

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/pribylovaa/go-todo-list/internal/config"
)

// Kind — вид токена.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	// ErrInvalidSignature — подпись не сходится (другой ключ, другой вид,
	// подмена полезной нагрузки или недопустимый алгоритм).
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired — подпись корректна, но срок действия истёк.
	ErrExpired = errors.New("token expired")
	// ErrMalformed — токен не разбирается или его claims не проходят проверку.
	ErrMalformed = errors.New("malformed token")
)

// Claims — полезная нагрузка токенов обоих видов.
type Claims struct {
	UserID string `json:"uid"`
	Kind   Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// Issued — только что выпущенный токен.
type Issued struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// Issuer выпускает и проверяет токены. Безопасен для конкурентного использования.
type Issuer struct {
	keys     map[Kind][]byte
	ttls     map[Kind]time.Duration
	issuer   string
	audience []string
	now      func() time.Time
}

// Option настраивает Issuer.
type Option func(*Issuer)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// New создаёт Issuer из конфигурации. Секрет читается один раз.
func New(cfg config.AuthConfig, opts ...Option) (*Issuer, error) {
	const op = "token.New"

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("%s: empty secret", op)
	}

	if cfg.AccessTokenTTL <= 0 || cfg.AccessTokenTTL >= cfg.RefreshTokenTTL {
		return nil, fmt.Errorf("%s: access ttl must be positive and less than refresh ttl", op)
	}

	i := &Issuer{
		keys:     make(map[Kind][]byte, 2),
		ttls:     map[Kind]time.Duration{KindAccess: cfg.AccessTokenTTL, KindRefresh: cfg.RefreshTokenTTL},
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		now:      time.Now,
	}

	for _, kind := range []Kind{KindAccess, KindRefresh} {
		key, err := deriveKey(cfg.JWTSecret, kind)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		i.keys[kind] = key
	}

	for _, opt := range opts {
		opt(i)
	}

	return i, nil
}

// TTL возвращает время жизни токена данного вида.
func (i *Issuer) TTL(kind Kind) time.Duration {
	return i.ttls[kind]
}

// Mint выпускает токен вида kind для userID со сроком now+TTL(kind).
func (i *Issuer) Mint(kind Kind, userID uuid.UUID) (Issued, error) {
	const op = "token.Mint"

	key, ok := i.keys[kind]
	if !ok {
		return Issued{}, fmt.Errorf("%s: unknown kind %q", op, kind)
	}

	now := i.now().UTC()
	exp := now.Add(i.ttls[kind])
	id := uuid.NewString()

	claims := Claims{
		UserID: userID.String(),
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   userID.String(),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings(i.audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return Issued{}, fmt.Errorf("%s: %w", op, err)
	}

	// NumericDate хранит секунды — возвращаем то же значение, что лежит в токене.
	return Issued{Token: signed, ID: id, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify проверяет токен вида kind и возвращает его claims.
// Ошибки: ErrInvalidSignature, ErrExpired, ErrMalformed.
func (i *Issuer) Verify(kind Kind, tokenStr string) (*Claims, error) {
	const op = "token.Verify"

	key, ok := i.keys[kind]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	if tokenStr == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(i.issuer))
	}
	if len(i.audience) > 0 {
		parserOpts = append(parserOpts, jwt.WithAudience(i.audience...))
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}

	if !tok.Valid || claims.Kind != kind {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	return claims, nil
}

// UserUUID возвращает идентификатор пользователя из проверенных claims.
func (c *Claims) UserUUID() uuid.UUID {
	id, _ := uuid.Parse(c.UserID)
	return id
}

// classify сводит ошибки jwt к трём видам отказа.
// Порядок важен: парсер jwt проверяет подпись раньше claims, поэтому
// ErrTokenExpired возможна только при корректной подписи.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrMalformed
	}
}

func deriveKey(secret string, kind Kind) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("todo-auth/"+string(kind)))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}

	return key, nil
}
