// Package auth определяет клиента по bearer-токену.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultLeeway = 30 * time.Second
	adminClaim    = "adm"
)

// ErrInvalidCredential токен отсутствует, подделан, просрочен или выдан не нам.
var ErrInvalidCredential = fmt.Errorf("%w: invalid credential", domain.ErrUnauthenticated)

// Settings параметры подписи и проверки токенов.
type Settings struct {
	Secret   string
	Issuer   string
	Audience string
	Leeway   time.Duration
}

type claims struct {
	Admin bool `json:"adm,omitempty"`
	jwt.RegisteredClaims
}

// Resolver проверяет HS256-токены и возвращает Identity.
type Resolver struct {
	secret []byte
	parser *jwt.Parser
}

// NewResolver создаёт Resolver. Пустой секрет недопустим.
func NewResolver(s Settings) (*Resolver, error) {
	if strings.TrimSpace(s.Secret) == "" {
		return nil, errors.New("auth: secret is required")
	}
	leeway := s.Leeway
	if leeway <= 0 {
		leeway = defaultLeeway
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(leeway),
		jwt.WithExpirationRequired(),
	}
	if s.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.Issuer))
	}
	if s.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.Audience))
	}

	return &Resolver{secret: []byte(s.Secret), parser: jwt.NewParser(opts...)}, nil
}

// Resolve разбирает токен. Префикс "Bearer " допускается.
func (r *Resolver) Resolve(token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if rest, ok := cutBearer(token); ok {
		token = rest
	}
	if token == "" {
		return domain.Identity{}, ErrInvalidCredential
	}

	var c claims
	parsed, err := r.parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return r.secret, nil
	})
	if err != nil || !parsed.Valid {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	clientID := strings.TrimSpace(c.Subject)
	if clientID == "" {
		return domain.Identity{}, fmt.Errorf("%w: empty subject", ErrInvalidCredential)
	}
	return domain.Identity{ClientID: clientID, IsAdmin: c.Admin}, nil
}

func cutBearer(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// Issuer выпускает токены для служебных утилит и тестов.
type Issuer struct {
	settings Settings
	now      func() time.Time
}

// NewIssuer создаёт Issuer с теми же настройками, что и Resolver.
func NewIssuer(s Settings) (*Issuer, error) {
	if strings.TrimSpace(s.Secret) == "" {
		return nil, errors.New("auth: secret is required")
	}
	return &Issuer{settings: s, now: time.Now}, nil
}

// Issue подписывает токен для identity со сроком жизни ttl.
func (i *Issuer) Issue(identity domain.Identity, ttl time.Duration) (string, error) {
	if strings.TrimSpace(identity.ClientID) == "" {
		return "", fmt.Errorf("%w: client id is required", domain.ErrInvalidArgument)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	now := i.now()
	c := claims{
		Admin: identity.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ClientID,
			Issuer:    i.settings.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if i.settings.Audience != "" {
		c.Audience = jwt.ClaimStrings{i.settings.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(i.settings.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
