// Copyright 2026 The Hostpanel Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/joern42/hostpanel/internal/id"
	"github.com/joern42/hostpanel/internal/identity"
)

// Service provides session lifecycle management.
type Service struct {
	repo        Repository
	lifetime    time.Duration
	idleTimeout time.Duration
}

// NewService creates a session service.
func NewService(repo Repository, lifetime, idleTimeout time.Duration) *Service {
	return &Service{repo: repo, lifetime: lifetime, idleTimeout: idleTimeout}
}

// Create starts a fresh session for an authenticated principal. The ID is
// always newly generated, never taken from the client, which is what makes
// a login immune to session fixation.
func (s *Service) Create(ctx context.Context, ident identity.Identity, ipAddress, userAgent string) (*Session, error) {
	now := time.Now()
	sess := &Session{
		ID:         id.NewUUIDv7(),
		UserID:     ident.UserID,
		Username:   ident.Username,
		UserType:   ident.Type,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(s.lifetime),
	}

	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// Get returns a live session, touching its last-seen time. Expired or idle
// sessions are destroyed and reported as ErrSessionExpired.
func (s *Service) Get(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if sess.IsExpired() || sess.IsIdle(s.idleTimeout) {
		_ = s.repo.Delete(ctx, sessionID)
		return nil, ErrSessionExpired
	}

	sess.LastSeenAt = time.Now()
	if err := s.repo.Touch(ctx, sessionID, sess.LastSeenAt); err != nil {
		return nil, fmt.Errorf("failed to touch session: %w", err)
	}

	return sess, nil
}

// Destroy removes one session.
func (s *Service) Destroy(ctx context.Context, sessionID string) error {
	return s.repo.Delete(ctx, sessionID)
}

// DestroyByUser removes every session of a user, e.g. after a password
// change.
func (s *Service) DestroyByUser(ctx context.Context, userID int64) error {
	return s.repo.DeleteByUserID(ctx, userID)
}

// CleanupExpired removes expired session rows.
func (s *Service) CleanupExpired(ctx context.Context) error {
	return s.repo.DeleteExpired(ctx)
}
