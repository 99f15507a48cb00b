// interceptors — unary-интерсепторы внутреннего gRPC-сервера:
// recover, логирование, таймаут и проверка access-токена для
// сервисов to-do, которые принимают вызовы от имени пользователя.
package interceptors

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/go-todo-list/internal/pkg/log"
)

// AccessVerifier проверяет access-токен. Реализуется *service.Service.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, accessToken string) (uuid.UUID, error)
}

type userIDKey struct{}

// AccessGuard требует metadata "authorization: Bearer <access>" у каждого
// unary-вызова, кроме методов из public (полные имена, например
// "/grpc.health.v1.Health/Check"). Отказ — codes.Unauthenticated.
func AccessGuard(v AccessVerifier, public ...string) grpc.UnaryServerInterceptor {
	skip := make(map[string]struct{}, len(public))
	for _, m := range public {
		skip[m] = struct{}{}
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := skip[info.FullMethod]; ok {
			return handler(ctx, req)
		}

		tok := bearerFromMetadata(ctx)
		if tok == "" {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}

		uid, err := v.VerifyAccess(ctx, tok)
		if err != nil {
			log.From(ctx).Debug("access_denied", "err", err.Error())
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}

		ctx = context.WithValue(ctx, userIDKey{}, uid)
		return handler(log.With(ctx, "user_id", uid.String()), req)
	}
}

// UserIDFromContext возвращает ID пользователя, которого пропустил AccessGuard.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	uid, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	return uid, ok
}

func bearerFromMetadata(ctx context.Context) string {
	const prefix = "bearer "

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}

	for _, v := range md.Get("authorization") {
		if len(v) > len(prefix) && strings.EqualFold(v[:len(prefix)], prefix) {
			if tok := strings.TrimSpace(v[len(prefix):]); tok != "" {
				return tok
			}
		}
	}

	return ""
}
