package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gatehouse-hq/apiserver/types"
	"github.com/google/uuid"
)

// SessionRepository handles persistence for refresh sessions. At most one
// session row exists per (account, user agent) pair; the upsert rotates
// tokens in place for the same device.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Upsert rotates the token pair for an existing (account, user agent)
// session or creates a new one.
func (r *SessionRepository) Upsert(ctx context.Context, session types.Session) (types.Session, error) {
	session.LastAccessed = time.Now()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO sessions (id, account_id, access_token, refresh_token, ip, user_agent, last_accessed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id, user_agent) DO UPDATE
		SET access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			ip = EXCLUDED.ip,
			last_accessed = EXCLUDED.last_accessed
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		session.ID,
		session.AccountID,
		session.AccessToken,
		session.RefreshToken,
		session.IP,
		session.UserAgent,
		session.LastAccessed,
	).Scan(&session.ID); err != nil {
		return types.Session{}, err
	}
	return session, nil
}

func (r *SessionRepository) GetByAccountAndUserAgent(ctx context.Context, accountID, userAgent string) (types.Session, error) {
	const query = `
		SELECT id, account_id, access_token, refresh_token, ip, user_agent, last_accessed
		FROM sessions
		WHERE account_id = $1 AND user_agent = $2`
	var session types.Session
	err := r.db.QueryRowContext(ctx, query, accountID, userAgent).Scan(
		&session.ID,
		&session.AccountID,
		&session.AccessToken,
		&session.RefreshToken,
		&session.IP,
		&session.UserAgent,
		&session.LastAccessed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Session{}, ErrNotFound
		}
		return types.Session{}, err
	}
	return session, nil
}

func (r *SessionRepository) ListByAccount(ctx context.Context, accountID string) ([]types.Session, error) {
	const query = `
		SELECT id, account_id, access_token, refresh_token, ip, user_agent, last_accessed
		FROM sessions
		WHERE account_id = $1
		ORDER BY last_accessed DESC`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []types.Session
	for rows.Next() {
		var session types.Session
		if err := rows.Scan(
			&session.ID,
			&session.AccountID,
			&session.AccessToken,
			&session.RefreshToken,
			&session.IP,
			&session.UserAgent,
			&session.LastAccessed,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// DeleteByAccountAndUserAgent revokes the session for one device. Used by
// logout so the superseded refresh token cannot be replayed later.
func (r *SessionRepository) DeleteByAccountAndUserAgent(ctx context.Context, accountID, userAgent string) error {
	const query = `DELETE FROM sessions WHERE account_id = $1 AND user_agent = $2`
	_, err := r.db.ExecContext(ctx, query, accountID, userAgent)
	return err
}

// DeleteByAccount removes every session for an account, used on cascading
// account deletion.
func (r *SessionRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	const query = `DELETE FROM sessions WHERE account_id = $1`
	_, err := r.db.ExecContext(ctx, query, accountID)
	return err
}
