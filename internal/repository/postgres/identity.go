package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/leadintel/internal/auth"
)

// SessionRepo implements auth.Store against the identity store's sessions table.
type SessionRepo struct{ db *sql.DB }

// NewSessionRepo creates a Postgres-backed session store.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

func (r *SessionRepo) LookupSession(ctx context.Context, tokenHash string) (*auth.Session, error) {
	var s auth.Session
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, organization_id, expires_at
		FROM sessions
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()
	`, tokenHash).Scan(&s.UserID, &s.OrganizationID, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	return &s, nil
}
