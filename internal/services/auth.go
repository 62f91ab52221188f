package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nva-backoffice/internal/repository"
	"nva-backoffice/internal/utils"

	"github.com/sirupsen/logrus"
)

// SessionStore keeps refresh token sessions.
type SessionStore interface {
	SaveSession(ctx context.Context, tokenID string, agentID uint, ttl time.Duration) error
	LookupSession(ctx context.Context, tokenID string) (uint, bool, error)
	RevokeSession(ctx context.Context, tokenID string) error
}

// LoginLimiter throttles failed logins per username.
type LoginLimiter interface {
	Locked(ctx context.Context, username string) (bool, error)
	Fail(ctx context.Context, username string) (bool, error)
	Reset(ctx context.Context, username string) error
}

type LoginResult struct {
	*utils.TokenPair
	Agent Profile `json:"agent"`
}

type AuthService struct {
	store    *repository.Store
	tokens   *utils.TokenManager
	sessions SessionStore
	limiter  LoginLimiter
	clock    Clock
	log      logrus.FieldLogger
}

func NewAuthService(store *repository.Store, tokens *utils.TokenManager, sessions SessionStore, limiter LoginLimiter, clock Clock, log logrus.FieldLogger) *AuthService {
	return &AuthService{store: store, tokens: tokens, sessions: sessions, limiter: limiter, clock: clock, log: log}
}

func (s *AuthService) issue(ctx context.Context, agentID uint, username string, isAdmin bool) (*utils.TokenPair, error) {
	pair, err := s.tokens.GeneratePair(agentID, username, isAdmin)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.SaveSession(ctx, pair.RefreshTokenID, agentID, s.tokens.RefreshExpiry()); err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	fields := map[string]string{}
	if username == "" {
		fields["username"] = "is required"
	}
	if password == "" {
		fields["password"] = "is required"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	locked, err := s.limiter.Locked(ctx, username)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, ErrLocked
	}

	agent, err := s.store.Agents.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("look up agent: %w", err)
	}
	if agent == nil || !agent.IsActive || !utils.CheckPassword(agent.PasswordHash, password) {
		nowLocked, ferr := s.limiter.Fail(ctx, username)
		if ferr != nil {
			s.log.WithError(ferr).Warn("failed to record login failure")
		}
		if nowLocked {
			s.log.WithField("username", username).Warn("login locked after repeated failures")
			return nil, ErrLocked
		}
		return nil, ErrUnauthorized
	}

	if err := s.limiter.Reset(ctx, username); err != nil {
		s.log.WithError(err).Warn("failed to reset login failures")
	}

	now := s.clock.now()
	agent.LastLogin = &now
	if err := s.store.Agents.Update(ctx, agent); err != nil {
		return nil, fmt.Errorf("record last login: %w", err)
	}

	pair, err := s.issue(ctx, agent.ID, agent.Username, agent.IsAdmin)
	if err != nil {
		return nil, err
	}
	return &LoginResult{TokenPair: pair, Agent: NewProfile(agent)}, nil
}

// Refresh rotates a refresh token: the old session is revoked and a new pair
// is issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*utils.TokenPair, error) {
	claims, err := s.tokens.Parse(refreshToken, utils.TokenTypeRefresh)
	if err != nil {
		return nil, ErrUnauthorized
	}
	agentID, ok, err := s.sessions.LookupSession(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if !ok || agentID != claims.AgentID {
		return nil, ErrUnauthorized
	}

	agent, err := s.store.Agents.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !agent.IsActive {
		return nil, ErrUnauthorized
	}

	if err := s.sessions.RevokeSession(ctx, claims.ID); err != nil {
		return nil, err
	}
	return s.issue(ctx, agent.ID, agent.Username, agent.IsAdmin)
}

// Logout revokes the refresh session. Unknown or expired tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.Parse(refreshToken, utils.TokenTypeRefresh)
	if err != nil {
		return nil
	}
	return s.sessions.RevokeSession(ctx, claims.ID)
}
