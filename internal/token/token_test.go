package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-auth-service/internal/config"
)

func testCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "unit-secret",
		AccessTokenTTL:  30 * time.Second,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "auth-service",
		Audience:        []string{"api-gateway"},
	}
}

func TestIssueAndDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	m := NewManager(testCfg())
	uid := uuid.New()
	now := time.Now().UTC()

	for _, kind := range []Kind{KindAccess, KindRefresh} {
		signed, err := m.Issue(uid, kind, now)
		require.NoError(t, err)
		require.NotEmpty(t, signed)

		claims, err := m.Decode(signed)
		require.NoError(t, err)
		require.Equal(t, uid, claims.UserID)
		require.Equal(t, kind, claims.Kind)
		require.WithinDuration(t, now, claims.IssuedAt, time.Second)
		require.WithinDuration(t, now.Add(m.TTL(kind)), claims.ExpiresAt, time.Second)
	}
}

func TestTTL_ByKind(t *testing.T) {
	t.Parallel()

	m := NewManager(testCfg())
	require.Equal(t, 30*time.Second, m.TTL(KindAccess))
	require.Equal(t, 24*time.Hour, m.TTL(KindRefresh))
}

func TestDecode_Garbage(t *testing.T) {
	t.Parallel()

	m := NewManager(testCfg())

	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := m.Decode(tok)
		require.Error(t, err)
		require.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestDecode_WrongSecret(t *testing.T) {
	t.Parallel()

	m := NewManager(testCfg())
	signed, err := m.Issue(uuid.New(), KindAccess, time.Now().UTC())
	require.NoError(t, err)

	other := testCfg()
	other.JWTSecret = "different-secret"

	_, err = NewManager(other).Decode(signed)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecode_Expired(t *testing.T) {
	t.Parallel()

	cfg := testCfg()
	// Истёк за пределами leeway.
	cfg.AccessTokenTTL = -time.Minute
	m := NewManager(cfg)

	signed, err := m.Issue(uuid.New(), KindAccess, time.Now().UTC())
	require.NoError(t, err)

	_, err = m.Decode(signed)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecode_WrongIssuerOrAudience(t *testing.T) {
	t.Parallel()

	m := NewManager(testCfg())
	signed, err := m.Issue(uuid.New(), KindAccess, time.Now().UTC())
	require.NoError(t, err)

	badIssuer := testCfg()
	badIssuer.Issuer = "someone-else"
	_, err = NewManager(badIssuer).Decode(signed)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidToken)

	badAudience := testCfg()
	badAudience.Audience = []string{"another-consumer"}
	_, err = NewManager(badAudience).Decode(signed)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecode_KindSurvives(t *testing.T) {
	t.Parallel()

	m := NewManager(testCfg())
	uid := uuid.New()

	refresh, err := m.Issue(uid, KindRefresh, time.Now().UTC())
	require.NoError(t, err)

	claims, err := m.Decode(refresh)
	require.NoError(t, err)
	// Тип не теряется: сервисный слой различает access/refresh по нему.
	require.Equal(t, KindRefresh, claims.Kind)
	require.NotEqual(t, KindAccess, claims.Kind)
}
