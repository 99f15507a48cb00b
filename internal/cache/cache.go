// cache содержит список отзыва refresh-токенов в Redis.
//
// Refresh-токены не хранятся на сервере, поэтому без этого списка logout
// лишь удаляет cookie у клиента. Если Redis сконфигурирован, logout и ротация
// кладут jti предъявленного токена сюда до его естественного истечения.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pribylovaa/go-todo-list/internal/storage"
)

const defaultPrefix = "todo:auth:revoked:"

// Revocations — список отзыва поверх Redis: ключ prefix+jti со значением
// "1" и TTL до истечения токена.
type Revocations struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisRevocations создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "todo:auth:revoked:".
func NewRedisRevocations(ctx context.Context, redisURL, prefix string) (*Revocations, error) {
	const op = "cache.NewRedisRevocations"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewRevocations(rdb, prefix), nil
}

// NewRevocations оборачивает готовый клиент.
func NewRevocations(rdb redis.UniversalClient, prefix string) *Revocations {
	if prefix == "" {
		prefix = defaultPrefix
	}

	return &Revocations{rdb: rdb, prefix: prefix, now: time.Now}
}

func (r *Revocations) key(jti string) string { return r.prefix + jti }

// Revoke помечает jti отозванным до until. Уже истёкшие токены не записываются.
func (r *Revocations) Revoke(ctx context.Context, jti string, until time.Time) error {
	const op = "cache.Revoke"

	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}

	if err := r.rdb.Set(ctx, r.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// IsRevoked сообщает, есть ли jti в списке отзыва.
func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	const op = "cache.IsRevoked"

	err := r.rdb.Get(ctx, r.key(jti)).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("%s: %w", op, err)
	}
}

// Close закрывает клиент Redis.
func (r *Revocations) Close() error { return r.rdb.Close() }

var _ storage.RevocationStore = (*Revocations)(nil)
