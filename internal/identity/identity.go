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

package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/net/idna"
)

// Domain errors
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrStatusNotFound = errors.New("account status not found")
)

// Type classifies a panel account.
type Type string

const (
	TypeAdmin    Type = "admin"
	TypeReseller Type = "reseller"
	TypeUser     Type = "user"
)

// Identity is the resolved principal of a login attempt. It is loaded by the
// credential listener and, once the attempt fully succeeds, becomes the
// session-stored principal. The session-bound copy never carries the
// password hash.
type Identity struct {
	UserID       int64
	Username     string
	PasswordHash string
	Type         Type
	CreatedBy    int64 // owning account id, 0 for administrators
	CreatedAt    time.Time
}

// WithoutSecret returns a copy safe to attach to results and sessions.
func (i Identity) WithoutSecret() Identity {
	i.PasswordHash = ""
	return i
}

// Status is the account gate row consulted after credentials check out.
// A zero ExpiresAt means the account never expires.
type Status struct {
	Enabled   bool
	ExpiresAt time.Time
}

// Expired reports whether the account expiry is set and in the past.
func (s Status) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(now)
}

// CredentialStore provides principal lookup and credential updates.
type CredentialStore interface {
	// FindByUsername returns the identity whose normalized username matches
	// exactly. Returns ErrUserNotFound when no row exists.
	FindByUsername(ctx context.Context, username string) (*Identity, error)

	// UpdatePasswordHash replaces the stored hash for a user.
	UpdatePasswordHash(ctx context.Context, userID int64, newHash string) error
}

// StatusStore provides the enable/expiry gate row for ordinary accounts.
type StatusStore interface {
	// GetStatus returns ErrStatusNotFound when the account has no gate row,
	// which is a data inconsistency rather than a normal login failure.
	GetStatus(ctx context.Context, userID int64) (Status, error)
}

// NormalizeUsername lowercases a username and applies IDN (punycode)
// encoding so lookups compare case-insensitively across unicode labels.
// Input that is not a valid IDN label set is kept as lowercased bytes.
func NormalizeUsername(username string) string {
	lowered := strings.ToLower(strings.TrimSpace(username))
	if ascii, err := idna.Lookup.ToASCII(lowered); err == nil {
		return ascii
	}
	return lowered
}
