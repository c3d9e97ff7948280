package session

import (
	"context"
	"errors"
	"time"

	"github.com/joern42/hostpanel/internal/identity"
)

// Domain errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// Session is a server-side login session. The principal fields mirror the
// identity that survived the authentication pipeline; the password hash is
// never part of a session row.
type Session struct {
	ID         string
	UserID     int64
	Username   string
	UserType   identity.Type
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
	LastSeenAt time.Time
	ExpiresAt  time.Time
}

// IsExpired checks if the session has passed its absolute lifetime.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsIdle checks if the session has been unused for too long.
func (s *Session) IsIdle(idleTimeout time.Duration) bool {
	return time.Since(s.LastSeenAt) > idleTimeout
}

// Identity rebuilds the stored principal from the session row.
func (s *Session) Identity() identity.Identity {
	return identity.Identity{
		UserID:   s.UserID,
		Username: s.Username,
		Type:     s.UserType,
	}
}

// Repository defines the interface for session persistence
type Repository interface {
	// Create creates a new session
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by ID
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Touch updates the session's last seen time
	Touch(ctx context.Context, sessionID string, lastSeen time.Time) error

	// Delete deletes a session
	Delete(ctx context.Context, sessionID string) error

	// DeleteByUserID deletes all sessions for a user
	DeleteByUserID(ctx context.Context, userID int64) error

	// DeleteExpired deletes all expired sessions
	DeleteExpired(ctx context.Context) error
}
