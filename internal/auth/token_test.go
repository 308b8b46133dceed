package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/moviehub/catalog/internal/cache"
)

func newKeyPair(t *testing.T) (*rsa.PrivateKey, KeyProvider) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key, StaticKey{PublicKey: &key.PublicKey}
}

func signToken(t *testing.T, key *rsa.PrivateKey, userID uuid.UUID, roles []string, expiresIn time.Duration) string {
	t.Helper()
	claims := accessClaims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

type scriptedDoer struct {
	status   int
	body     string
	err      error
	requests []*http.Request
	bodies   []string
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	d.requests = append(d.requests, req)
	payload := ""
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		payload = string(raw)
	}
	d.bodies = append(d.bodies, payload)
	if d.err != nil {
		return nil, d.err
	}
	recorder := httptest.NewRecorder()
	recorder.Code = d.status
	_, _ = recorder.WriteString(d.body)
	return recorder.Result(), nil
}

// ttlSpyStore records the lifetime passed to Set so tests can pin how long
// the stored pair lives.
type ttlSpyStore struct {
	cache.Store
	lastTTL time.Duration
}

func (s *ttlSpyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.lastTTL = ttl
	return s.Store.Set(ctx, key, value, ttl)
}

func newTokenService(store cache.Store, doer httpDoer, keys KeyProvider) *TokenService {
	return NewTokenService(store, doer, keys, TokenServiceConfig{
		BaseURL:  "http://identity",
		Login:    "svc@movies.local",
		Password: "secret",
		TokenTTL: time.Hour,
	}, nil, nil)
}

func TestServiceTokenCachedAccessSkipsNetwork(t *testing.T) {
	key, keys := newKeyPair(t)
	store := cache.NewMemory()
	ctx := context.Background()

	access := signToken(t, key, uuid.New(), []string{"service"}, time.Hour)
	refresh := signToken(t, key, uuid.New(), []string{"service"}, time.Hour)
	require.NoError(t, store.Set(ctx, serviceTokensKey, access+" "+refresh, time.Hour))

	doer := &scriptedDoer{err: errors.New("network must not be touched")}
	service := newTokenService(store, doer, keys)

	got, err := service.ServiceToken(ctx)
	require.NoError(t, err)
	require.Equal(t, access, got)
	require.Empty(t, doer.requests)
}

func TestServiceTokenRefreshPath(t *testing.T) {
	key, keys := newKeyPair(t)
	store := cache.NewMemory()
	ctx := context.Background()

	expired := signToken(t, key, uuid.New(), []string{"service"}, -time.Minute)
	refresh := signToken(t, key, uuid.New(), []string{"service"}, time.Hour)
	require.NoError(t, store.Set(ctx, serviceTokensKey, expired+" "+refresh, time.Hour))

	minted := tokenPair{AccessToken: "new-access", RefreshToken: "new-refresh"}
	payload, err := json.Marshal(minted)
	require.NoError(t, err)

	doer := &scriptedDoer{status: http.StatusOK, body: string(payload)}
	service := newTokenService(store, doer, keys)

	got, err := service.ServiceToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "new-access", got)

	require.Len(t, doer.requests, 1)
	require.Equal(t, "http://identity"+refreshPath, doer.requests[0].URL.String())
	require.Equal(t, "Bearer "+refresh, doer.requests[0].Header.Get("Authorization"))

	stored, ok, err := store.Get(ctx, serviceTokensKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "new-access new-refresh", stored, "the pair must be replaced wholesale")
}

func TestServiceTokenLoginPath(t *testing.T) {
	_, keys := newKeyPair(t)
	store := cache.NewMemory()
	ctx := context.Background()

	minted := tokenPair{AccessToken: "fresh-access", RefreshToken: "fresh-refresh"}
	payload, err := json.Marshal(minted)
	require.NoError(t, err)

	doer := &scriptedDoer{status: http.StatusOK, body: string(payload)}
	service := newTokenService(store, doer, keys)

	got, err := service.ServiceToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "fresh-access", got)

	require.Len(t, doer.requests, 1)
	require.Equal(t, "http://identity"+loginPath, doer.requests[0].URL.String())
	require.JSONEq(t, `{"email":"svc@movies.local","password":"secret"}`, doer.bodies[0])

	stored, ok, err := store.Get(ctx, serviceTokensKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "fresh-access fresh-refresh", stored)
}

func TestServiceTokenStoresPairForRefreshWindow(t *testing.T) {
	key, keys := newKeyPair(t)
	spy := &ttlSpyStore{Store: cache.NewMemory()}
	ctx := context.Background()

	minted := tokenPair{AccessToken: "a", RefreshToken: "r"}
	payload, err := json.Marshal(minted)
	require.NoError(t, err)

	// Login path: the pair's lifetime must equal the configured refresh
	// validity window.
	doer := &scriptedDoer{status: http.StatusOK, body: string(payload)}
	service := newTokenService(spy, doer, keys)

	_, err = service.ServiceToken(ctx)
	require.NoError(t, err)
	require.Equal(t, time.Hour, spy.lastTTL)

	// Refresh path stores with the same window.
	spy.lastTTL = 0
	expired := signToken(t, key, uuid.New(), []string{"service"}, -time.Minute)
	refresh := signToken(t, key, uuid.New(), []string{"service"}, time.Hour)
	require.NoError(t, spy.Store.Set(ctx, serviceTokensKey, expired+" "+refresh, time.Hour))

	_, err = service.ServiceToken(ctx)
	require.NoError(t, err)
	require.Equal(t, time.Hour, spy.lastTTL)
}

func TestServiceTokenMalformedStoredPairFallsToLogin(t *testing.T) {
	_, keys := newKeyPair(t)
	store := cache.NewMemory()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, serviceTokensKey, "one two three", time.Hour))

	minted := tokenPair{AccessToken: "a", RefreshToken: "r"}
	payload, err := json.Marshal(minted)
	require.NoError(t, err)

	doer := &scriptedDoer{status: http.StatusOK, body: string(payload)}
	service := newTokenService(store, doer, keys)

	got, err := service.ServiceToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", got)
	require.Len(t, doer.requests, 1)
	require.Equal(t, "http://identity"+loginPath, doer.requests[0].URL.String())
}

func TestServiceTokenLoginFailure(t *testing.T) {
	_, keys := newKeyPair(t)
	doer := &scriptedDoer{err: errors.New("identity down")}
	service := newTokenService(cache.NewMemory(), doer, keys)

	_, err := service.ServiceToken(context.Background())
	require.ErrorIs(t, err, ErrTokenService)
}

func TestServiceTokenRejectedLoginFails(t *testing.T) {
	_, keys := newKeyPair(t)
	doer := &scriptedDoer{status: http.StatusUnauthorized, body: `{"detail":"bad credentials"}`}
	service := newTokenService(cache.NewMemory(), doer, keys)

	_, err := service.ServiceToken(context.Background())
	require.ErrorIs(t, err, ErrTokenService)
}

func TestServiceTokenIncompletePairRejected(t *testing.T) {
	_, keys := newKeyPair(t)
	doer := &scriptedDoer{status: http.StatusOK, body: `{"access_token":"only-access"}`}
	service := newTokenService(cache.NewMemory(), doer, keys)

	_, err := service.ServiceToken(context.Background())
	require.ErrorIs(t, err, ErrTokenService)
}

func TestUserFromTokenDecodesClaims(t *testing.T) {
	key, keys := newKeyPair(t)
	service := newTokenService(cache.NewMemory(), &scriptedDoer{}, keys)

	userID := uuid.New()
	token := signToken(t, key, userID, []string{"subscriber"}, time.Hour)

	user := service.UserFromToken(token)
	require.NotNil(t, user)
	require.Equal(t, userID, user.ID)
	require.Equal(t, []string{"subscriber"}, user.Roles)
}

func TestUserFromTokenRejectsExpired(t *testing.T) {
	key, keys := newKeyPair(t)
	service := newTokenService(cache.NewMemory(), &scriptedDoer{}, keys)

	token := signToken(t, key, uuid.New(), []string{"subscriber"}, -time.Minute)
	require.Nil(t, service.UserFromToken(token))
}

func TestUserFromTokenRejectsForeignSignature(t *testing.T) {
	foreign, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	_, keys := newKeyPair(t)
	service := newTokenService(cache.NewMemory(), &scriptedDoer{}, keys)

	token := signToken(t, foreign, uuid.New(), []string{"admin"}, time.Hour)
	require.Nil(t, service.UserFromToken(token))
}

func TestUserFromTokenRequiresIdentityClaims(t *testing.T) {
	key, keys := newKeyPair(t)
	service := newTokenService(cache.NewMemory(), &scriptedDoer{}, keys)

	token := signToken(t, key, uuid.Nil, []string{"subscriber"}, time.Hour)
	require.Nil(t, service.UserFromToken(token))

	token = signToken(t, key, uuid.New(), nil, time.Hour)
	require.Nil(t, service.UserFromToken(token))
}

func TestUserFromTokenWithoutKey(t *testing.T) {
	service := newTokenService(cache.NewMemory(), &scriptedDoer{}, StaticKey{})
	require.Nil(t, service.UserFromToken("anything"))
}
