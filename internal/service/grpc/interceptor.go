package grpcsvc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefront/v1"
	"github.com/vladislavdragonenkov/storefront/internal/auth"
)

const authorizationHeader = "authorization"

// publicMethods доступны без токена.
var publicMethods = map[string]bool{
	storefrontv1.MethodListProducts: true,
	storefrontv1.MethodGetProduct:   true,
}

// UnaryAuthInterceptor определяет клиента по bearer-токену из metadata.
// Методы других сервисов (health, reflection) проходят без проверки.
func UnaryAuthInterceptor(resolver auth.IdentityResolver) grpc.UnaryServerInterceptor {
	prefix := "/" + storefrontv1.ServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) {
			return handler(ctx, req)
		}

		token := firstMetadata(ctx, authorizationHeader)
		if token == "" {
			if publicMethods[info.FullMethod] {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "authorization metadata is required")
		}

		identity, err := resolver.Resolve(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid credential")
		}
		return handler(auth.NewContext(ctx, identity), req)
	}
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get(key) {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
