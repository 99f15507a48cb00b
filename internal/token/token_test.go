package token

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-todo-list/internal/config"
)

func testAuthCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "unit-test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Issuer:          "todo-auth",
		Audience:        []string{"todo-web"},
	}
}

// fakeClock — управляемые часы для проверки истечения срока.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newIssuer(t *testing.T) (*Issuer, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Now().UTC()}
	iss, err := New(testAuthCfg(), WithClock(clk.Now))
	require.NoError(t, err)
	return iss, clk
}

func TestNew_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	cfg := testAuthCfg()
	cfg.JWTSecret = ""
	_, err := New(cfg)
	require.Error(t, err)

	cfg = testAuthCfg()
	cfg.AccessTokenTTL = cfg.RefreshTokenTTL
	_, err = New(cfg)
	require.Error(t, err)
}

func TestMintVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	iss, clk := newIssuer(t)
	uid := uuid.New()

	for _, kind := range []Kind{KindAccess, KindRefresh} {
		out, err := iss.Mint(kind, uid)
		require.NoError(t, err)
		require.NotEmpty(t, out.Token)
		require.NotEmpty(t, out.ID)
		require.WithinDuration(t, clk.Now().Add(iss.TTL(kind)), out.ExpiresAt, time.Second)

		claims, err := iss.Verify(kind, out.Token)
		require.NoError(t, err)
		require.Equal(t, uid, claims.UserUUID())
		require.Equal(t, kind, claims.Kind)
		require.Equal(t, out.ID, claims.ID)
	}
}

func TestMint_UniquePerCall(t *testing.T) {
	t.Parallel()

	iss, _ := newIssuer(t)
	uid := uuid.New()

	a, err := iss.Mint(KindRefresh, uid)
	require.NoError(t, err)
	b, err := iss.Mint(KindRefresh, uid)
	require.NoError(t, err)

	require.NotEqual(t, a.Token, b.Token)
	require.NotEqual(t, a.ID, b.ID)
}

func TestVerify_ExpiredAfterClockAdvance(t *testing.T) {
	t.Parallel()

	iss, clk := newIssuer(t)
	uid := uuid.New()

	out, err := iss.Mint(KindAccess, uid)
	require.NoError(t, err)

	_, err = iss.Verify(KindAccess, out.Token)
	require.NoError(t, err)

	clk.Advance(iss.TTL(KindAccess) + time.Minute)

	_, err = iss.Verify(KindAccess, out.Token)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerify_CrossKindRejected(t *testing.T) {
	t.Parallel()

	iss, _ := newIssuer(t)
	uid := uuid.New()

	refresh, err := iss.Mint(KindRefresh, uid)
	require.NoError(t, err)
	_, err = iss.Verify(KindAccess, refresh.Token)
	require.ErrorIs(t, err, ErrInvalidSignature)

	access, err := iss.Mint(KindAccess, uid)
	require.NoError(t, err)
	_, err = iss.Verify(KindRefresh, access.Token)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_DifferentSecretRejected(t *testing.T) {
	t.Parallel()

	iss, _ := newIssuer(t)

	cfg := testAuthCfg()
	cfg.JWTSecret = "another-secret"
	other, err := New(cfg)
	require.NoError(t, err)

	out, err := other.Mint(KindAccess, uuid.New())
	require.NoError(t, err)

	_, err = iss.Verify(KindAccess, out.Token)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_TamperedPayloadRejectedBeforeExpiry(t *testing.T) {
	t.Parallel()

	iss, clk := newIssuer(t)

	out, err := iss.Mint(KindAccess, uuid.New())
	require.NoError(t, err)

	// Подменяем payload на claims другого пользователя, подпись оставляем старую.
	forged, err := iss.Mint(KindAccess, uuid.New())
	require.NoError(t, err)
	origParts := strings.Split(out.Token, ".")
	forgedParts := strings.Split(forged.Token, ".")
	tampered := origParts[0] + "." + forgedParts[1] + "." + origParts[2]

	// Даже после истечения срока ошибка — подпись, а не срок.
	clk.Advance(iss.TTL(KindAccess) + time.Hour)

	_, err = iss.Verify(KindAccess, tampered)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	iss, _ := newIssuer(t)

	for _, in := range []string{"", "not-a-jwt", "a.b.c", "....."} {
		_, err := iss.Verify(KindAccess, in)
		require.Error(t, err, in)
		require.ErrorIs(t, err, ErrMalformed, in)
	}
}

func TestVerify_WrongAlgRejected(t *testing.T) {
	t.Parallel()

	iss, clk := newIssuer(t)
	uid := uuid.New()
	now := clk.Now()

	claims := jwt.MapClaims{
		"uid": uid.String(),
		"typ": string(KindAccess),
		"iss": "todo-auth",
		"aud": []string{"todo-web"},
		"exp": now.Add(time.Minute).Unix(),
		"iat": now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(iss.keys[KindAccess])
	require.NoError(t, err)

	_, err = iss.Verify(KindAccess, signed)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_WrongIssuerOrAudienceOrUID(t *testing.T) {
	t.Parallel()

	iss, clk := newIssuer(t)
	uid := uuid.New()
	now := clk.Now()

	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"uid": uid.String(),
			"typ": string(KindAccess),
			"iss": "todo-auth",
			"aud": []string{"todo-web"},
			"exp": now.Add(time.Minute).Unix(),
			"iat": now.Unix(),
		}
	}

	cases := map[string]func(jwt.MapClaims){
		"wrong issuer":   func(c jwt.MapClaims) { c["iss"] = "someone-else" },
		"wrong audience": func(c jwt.MapClaims) { c["aud"] = []string{"other"} },
		"bad uid":        func(c jwt.MapClaims) { c["uid"] = "not-a-uuid" },
		"wrong typ":      func(c jwt.MapClaims) { c["typ"] = string(KindRefresh) },
		"no exp":         func(c jwt.MapClaims) { delete(c, "exp") },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(c)
			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(iss.keys[KindAccess])
			require.NoError(t, err)

			_, err = iss.Verify(KindAccess, signed)
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}
