// Package auth owns the service's own credential lifecycle against the
// external identity service and the local validation of bearer tokens.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/moviehub/catalog/internal/cache"
	"github.com/moviehub/catalog/internal/metrics"
)

const (
	// serviceTokensKey is the fixed cache key holding the service's own
	// access+refresh pair, stored space-separated as a single atomic value.
	serviceTokensKey = "service_tokens"

	loginPath   = "/api/v1/auth/login"
	refreshPath = "/api/v1/auth/refresh"
)

// ErrTokenService reports that no service credential could be obtained, even
// by a fresh login. Callers must degrade (treat elevated roles as
// unconfirmed) rather than fail their own request.
var ErrTokenService = errors.New("auth: token service unavailable")

// httpDoer lets tests substitute the HTTP client.
type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// User is the locally-decoded identity of a caller.
type User struct {
	ID    uuid.UUID
	Roles []string
}

// accessClaims is the payload carried by identity-service tokens.
type accessClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Roles  []string  `json:"roles"`
	jwt.RegisteredClaims
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenServiceConfig wires the identity-service endpoint and the service's
// static credentials.
type TokenServiceConfig struct {
	BaseURL  string
	Login    string
	Password string
	TokenTTL time.Duration
}

// TokenService obtains, caches, validates, and refreshes the service's own
// access+refresh pair, and decodes caller tokens locally.
type TokenService struct {
	cache    cache.Store
	client   httpDoer
	keys     KeyProvider
	baseURL  string
	login    string
	password string
	tokenTTL time.Duration
	logger   *slog.Logger
	metrics  *metrics.Recorder
}

// NewTokenService wires the token lifecycle with its long-lived HTTP handle.
func NewTokenService(store cache.Store, client httpDoer, keys KeyProvider, cfg TokenServiceConfig, logger *slog.Logger, recorder *metrics.Recorder) *TokenService {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &TokenService{
		cache:    store,
		client:   client,
		keys:     keys,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		login:    cfg.Login,
		password: cfg.Password,
		tokenTTL: ttl,
		logger:   logger.With(slog.String("agent", "token")),
		metrics:  recorder,
	}
}

// UserFromToken decodes a caller's bearer token locally, without a network
// call. Any signature or schema failure yields nil, never a partially
// trusted result.
func (s *TokenService) UserFromToken(accessToken string) *User {
	claims, err := s.decodeAccessToken(accessToken)
	if err != nil {
		s.logger.Info("access token invalid", slog.Any("error", err))
		return nil
	}
	return &User{ID: claims.UserID, Roles: claims.Roles}
}

// ServiceToken returns a valid service access token, walking the credential
// ladder: cached access token, then refresh, then a fresh login. The stored
// pair is always replaced wholesale, never half-written.
func (s *TokenService) ServiceToken(ctx context.Context) (string, error) {
	s.logger.Info("getting service token")
	access, refresh := s.storedTokens(ctx)

	if access != "" && s.accessTokenValid(access) {
		s.metrics.ObserveToken(metrics.TokenPathCached, nil)
		return access, nil
	}

	if refresh != "" && s.refreshTokenValid(refresh) {
		pair, err := s.refreshTokens(ctx, refresh)
		s.metrics.ObserveToken(metrics.TokenPathRefresh, err)
		if err != nil {
			return "", fmt.Errorf("%w: refresh: %w", ErrTokenService, err)
		}
		s.storeTokens(ctx, pair)
		return pair.AccessToken, nil
	}

	pair, err := s.requestTokens(ctx)
	s.metrics.ObserveToken(metrics.TokenPathLogin, err)
	if err != nil {
		return "", fmt.Errorf("%w: login: %w", ErrTokenService, err)
	}
	s.storeTokens(ctx, pair)
	return pair.AccessToken, nil
}

func (s *TokenService) requestTokens(ctx context.Context) (tokenPair, error) {
	s.logger.Info("requesting service tokens")
	body, err := json.Marshal(map[string]string{
		"email":    s.login,
		"password": s.password,
	})
	if err != nil {
		return tokenPair{}, fmt.Errorf("auth: encode login: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return tokenPair{}, fmt.Errorf("auth: build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return s.exchange(req)
}

func (s *TokenService) refreshTokens(ctx context.Context, refreshToken string) (tokenPair, error) {
	s.logger.Info("refreshing service tokens")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+refreshPath, http.NoBody)
	if err != nil {
		return tokenPair{}, fmt.Errorf("auth: build refresh request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+refreshToken)
	return s.exchange(req)
}

func (s *TokenService) exchange(req *http.Request) (tokenPair, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return tokenPair{}, fmt.Errorf("auth: identity request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return tokenPair{}, fmt.Errorf("auth: read identity response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return tokenPair{}, fmt.Errorf("auth: identity status %d", resp.StatusCode)
	}

	var pair tokenPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		return tokenPair{}, fmt.Errorf("auth: decode identity response: %w", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return tokenPair{}, errors.New("auth: identity response missing tokens")
	}
	return pair, nil
}

// storedTokens reads the cached pair. Cache failures and malformed entries
// degrade to "no credential".
func (s *TokenService) storedTokens(ctx context.Context) (access, refresh string) {
	payload, ok, err := s.cache.Get(ctx, serviceTokensKey)
	if err != nil {
		s.logger.Error("stored tokens unavailable", slog.Any("error", err))
		return "", ""
	}
	if !ok {
		return "", ""
	}
	parts := strings.Fields(payload)
	if len(parts) != 2 {
		s.logger.Error("stored token pair malformed")
		return "", ""
	}
	return parts[0], parts[1]
}

// storeTokens writes the pair as one value so the cache never holds half a
// credential. Failures are logged; the freshly minted pair is still usable.
func (s *TokenService) storeTokens(ctx context.Context, pair tokenPair) {
	s.logger.Info("storing service tokens")
	value := pair.AccessToken + " " + pair.RefreshToken
	if err := s.cache.Set(ctx, serviceTokensKey, value, s.tokenTTL); err != nil {
		s.logger.Error("storing service tokens failed", slog.Any("error", err))
	}
}

func (s *TokenService) accessTokenValid(token string) bool {
	if _, err := s.decodeAccessToken(token); err != nil {
		s.logger.Info("access token invalid", slog.Any("error", err))
		return false
	}
	return true
}

func (s *TokenService) refreshTokenValid(token string) bool {
	if _, err := s.decodeToken(token); err != nil {
		s.logger.Info("refresh token invalid", slog.Any("error", err))
		return false
	}
	return true
}

// decodeAccessToken verifies the signature and the claim schema; any failure
// means invalid, with no further distinction.
func (s *TokenService) decodeAccessToken(token string) (*accessClaims, error) {
	claims, err := s.decodeToken(token)
	if err != nil {
		return nil, err
	}
	if claims.UserID == uuid.Nil {
		return nil, errors.New("auth: token missing user id")
	}
	if claims.Roles == nil {
		return nil, errors.New("auth: token missing roles")
	}
	return claims, nil
}

func (s *TokenService) decodeToken(token string) (*accessClaims, error) {
	key := s.keys.Key()
	if key == nil {
		return nil, errors.New("auth: validation key unavailable")
	}
	var claims accessClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return &claims, nil
}
