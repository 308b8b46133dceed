package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// subscriberRoles is the role set granting subscriber-equivalent access.
var subscriberRoles = map[string]struct{}{
	"subscriber": {},
	"admin":      {},
	"superuser":  {},
}

// ServiceTokenSource is the slice of the token service the role resolver
// needs.
type ServiceTokenSource interface {
	ServiceToken(ctx context.Context) (string, error)
}

// UserService resolves a caller's live role set from the identity service,
// falling back to the role claims embedded in the caller's own token whenever
// the identity service cannot be consulted.
type UserService struct {
	client  httpDoer
	tokens  ServiceTokenSource
	baseURL string
	logger  *slog.Logger
}

// NewUserService wires the role resolver with its long-lived HTTP handle.
func NewUserService(client httpDoer, tokens ServiceTokenSource, baseURL string, logger *slog.Logger) *UserService {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		client:  client,
		tokens:  tokens,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With(slog.String("agent", "users")),
	}
}

// IsSubscriber reports whether the user's resolved role set intersects the
// subscriber-equivalent roles. Identity-service trouble never fails the
// check; it only narrows the roles to the locally known claims.
func (s *UserService) IsSubscriber(ctx context.Context, user User) bool {
	s.logger.Info("checking subscription", slog.String("user", user.ID.String()))
	roles := s.actualRoles(ctx, user.ID)
	if len(roles) == 0 {
		roles = user.Roles
	}
	for _, role := range roles {
		if _, ok := subscriberRoles[role]; ok {
			return true
		}
	}
	return false
}

// actualRoles fetches the authoritative role set with a single retry-free
// call. Any failure — no service token, network error, bad status or body —
// yields nil so the caller falls back to local claims.
func (s *UserService) actualRoles(ctx context.Context, userID uuid.UUID) []string {
	serviceToken, err := s.tokens.ServiceToken(ctx)
	if err != nil {
		s.logger.Error("service token unavailable, using local claims", slog.Any("error", err))
		return nil
	}

	endpoint := fmt.Sprintf("%s/api/v1/users/%s/roles", s.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		s.logger.Error("role request build failed", slog.Any("error", err))
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+serviceToken)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("role lookup failed, using local claims", slog.Any("error", err))
		return nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		s.logger.Error("role response unreadable, using local claims", slog.Any("error", err))
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		s.logger.Error("role lookup rejected, using local claims", slog.Int("status", resp.StatusCode))
		return nil
	}

	var remote []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &remote); err != nil {
		s.logger.Error("role response undecodable, using local claims", slog.Any("error", err))
		return nil
	}
	roles := make([]string, 0, len(remote))
	for _, role := range remote {
		roles = append(roles, role.Name)
	}
	return roles
}
