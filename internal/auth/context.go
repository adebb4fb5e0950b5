package auth

import (
	"context"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// IdentityResolver превращает токен в Identity.
type IdentityResolver interface {
	Resolve(token string) (domain.Identity, error)
}

type identityKey struct{}

// NewContext кладёт identity в контекст запроса.
func NewContext(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// FromContext достаёт identity; ok=false для анонимного запроса.
func FromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(domain.Identity)
	return identity, ok
}

// Require возвращает identity или ErrUnauthenticated.
func Require(ctx context.Context) (domain.Identity, error) {
	identity, ok := FromContext(ctx)
	if !ok || identity.ClientID == "" {
		return domain.Identity{}, domain.ErrUnauthenticated
	}
	return identity, nil
}

// RequireAdmin пропускает только администратора.
func RequireAdmin(ctx context.Context) (domain.Identity, error) {
	identity, err := Require(ctx)
	if err != nil {
		return domain.Identity{}, err
	}
	if !identity.IsAdmin {
		return domain.Identity{}, domain.ErrPermissionDenied
	}
	return identity, nil
}

// RequireClient пропускает владельца данных клиента и администратора.
// Пустой clientID заменяется на собственный ClientID вызывающего.
func RequireClient(ctx context.Context, clientID string) (string, error) {
	identity, err := Require(ctx)
	if err != nil {
		return "", err
	}
	if clientID == "" {
		clientID = identity.ClientID
	}
	if !identity.CanAccessClient(clientID) {
		return "", domain.ErrPermissionDenied
	}
	return clientID, nil
}

var _ IdentityResolver = (*Resolver)(nil)
