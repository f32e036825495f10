package services

import (
	"context"

	"github.com/gatehouse-hq/apiserver/internal/token"
	"github.com/gatehouse-hq/apiserver/types"
)

// SessionService issues token pairs and keeps the per-device session rows
// in step with them.
type SessionService struct {
	sessions SessionRepository
	tokens   *token.Manager
}

func NewSessionService(sessions SessionRepository, tokens *token.Manager) *SessionService {
	return &SessionService{sessions: sessions, tokens: tokens}
}

// Issue signs a fresh access+refresh pair for the account and upserts the
// session row for (account, user agent). Signing in twice from the same
// device rotates the one existing row instead of creating a second.
func (s *SessionService) Issue(ctx context.Context, account types.Account, ip, userAgent string) (access, refresh string, err error) {
	payload := token.Payload{
		AccountID: account.ID,
		Email:     account.Email,
		Roles:     account.Roles,
	}
	access, refresh, err = s.tokens.SignPair(payload)
	if err != nil {
		return "", "", err
	}

	if _, err := s.sessions.Upsert(ctx, types.Session{
		AccountID:    account.ID,
		AccessToken:  access,
		RefreshToken: refresh,
		IP:           ip,
		UserAgent:    userAgent,
	}); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// ListByAccount returns the account's active sessions.
func (s *SessionService) ListByAccount(ctx context.Context, accountID string) ([]types.Session, error) {
	return s.sessions.ListByAccount(ctx, accountID)
}

// Revoke deletes the session row for one device so its refresh token
// cannot be replayed after logout.
func (s *SessionService) Revoke(ctx context.Context, accountID, userAgent string) error {
	return s.sessions.DeleteByAccountAndUserAgent(ctx, accountID, userAgent)
}
