package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

var testSettings = Settings{Secret: "test-secret", Issuer: "storefront", Audience: "storefront-api"}

func TestIssueAndResolve(t *testing.T) {
	issuer, err := NewIssuer(testSettings)
	require.NoError(t, err)
	resolver, err := NewResolver(testSettings)
	require.NoError(t, err)

	token, err := issuer.Issue(domain.Identity{ClientID: "client-7", IsAdmin: true}, time.Minute)
	require.NoError(t, err)

	identity, err := resolver.Resolve("Bearer " + token)
	require.NoError(t, err)
	require.Equal(t, domain.Identity{ClientID: "client-7", IsAdmin: true}, identity)

	identity, err = resolver.Resolve(token)
	require.NoError(t, err)
	require.True(t, identity.IsAdmin)
}

func TestResolveRejectsInvalidTokens(t *testing.T) {
	resolver, err := NewResolver(testSettings)
	require.NoError(t, err)

	issuer, err := NewIssuer(testSettings)
	require.NoError(t, err)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := issuer.Issue(domain.Identity{ClientID: "c"}, time.Minute)
	require.NoError(t, err)

	foreign, err := NewIssuer(Settings{Secret: "other", Issuer: testSettings.Issuer, Audience: testSettings.Audience})
	require.NoError(t, err)
	wrongSecret, err := foreign.Issue(domain.Identity{ClientID: "c"}, time.Minute)
	require.NoError(t, err)

	otherAud, err := NewIssuer(Settings{Secret: testSettings.Secret, Issuer: testSettings.Issuer, Audience: "billing"})
	require.NoError(t, err)
	wrongAudience, err := otherAud.Issue(domain.Identity{ClientID: "c"}, time.Minute)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    testSettings.Issuer,
		Audience:  jwt.ClaimStrings{testSettings.Audience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte(testSettings.Secret))
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "c",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not-a-jwt",
		"expired":        expired,
		"wrong secret":   wrongSecret,
		"wrong audience": wrongAudience,
		"no subject":     noSubject,
		"alg none":       none,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := resolver.Resolve(token)
			require.ErrorIs(t, err, ErrInvalidCredential)
			require.ErrorIs(t, err, domain.ErrUnauthenticated)
		})
	}
}

func TestSecretRequired(t *testing.T) {
	_, err := NewResolver(Settings{})
	require.Error(t, err)
	_, err = NewIssuer(Settings{Secret: "  "})
	require.Error(t, err)
}
