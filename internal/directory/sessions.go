package directory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// SessionVerifier resolves a bearer token to an authenticated caller.
// Session issuance lives in the auth component; this only reads.
type SessionVerifier interface {
	VerifyToken(ctx context.Context, token string) (models.Session, error)
}

// SessionRepo validates tokens against the shared sessions table.
type SessionRepo struct {
	db *sqlx.DB
}

// NewSessionRepo constructs SessionRepo.
func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// VerifyToken returns the session for an unexpired token bound to an
// active user.
func (r *SessionRepo) VerifyToken(ctx context.Context, token string) (models.Session, error) {
	var session models.Session
	err := r.db.GetContext(ctx, &session,
		`SELECT s.user_id, u.role
         FROM sessions s
         JOIN users u ON u.id = s.user_id
         WHERE s.token = $1 AND s.expires_at > NOW() AND u.is_active = TRUE`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrInvalidToken
	}
	return session, err
}

var _ SessionVerifier = (*SessionRepo)(nil)
