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

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/joern42/hostpanel/internal/audit"
	"github.com/joern42/hostpanel/internal/daemon"
	"github.com/joern42/hostpanel/internal/identity"
)

const msgInvalidCredentials = "Invalid credentials."

// CredentialListener is the primary identity resolver of the during phase.
// Unknown usernames and wrong passwords produce the same result code so
// the login surface does not confirm account existence.
type CredentialListener struct {
	store       identity.CredentialStore
	hasher      *identity.Hasher
	notifier    daemon.Notifier
	auditLogger audit.Logger
}

// NewCredentialListener creates the credential check listener.
func NewCredentialListener(
	store identity.CredentialStore,
	hasher *identity.Hasher,
	notifier daemon.Notifier,
	auditLogger audit.Logger,
) *CredentialListener {
	return &CredentialListener{
		store:       store,
		hasher:      hasher,
		notifier:    notifier,
		auditLogger: auditLogger,
	}
}

// Handle resolves and verifies the submitted credentials.
func (l *CredentialListener) Handle(ctx context.Context, ev *Event) (Decision, error) {
	if ev.Username == "" || ev.Password == "" {
		// No store lookup for incomplete submissions.
		return SetResult(NewResult(CodeFailureCredentialInvalid, nil, msgInvalidCredentials)), nil
	}

	ident, err := l.store.FindByUsername(ctx, identity.NormalizeUsername(ev.Username))
	if errors.Is(err, identity.ErrUserNotFound) {
		return SetResult(NewResult(CodeFailureCredentialInvalid, nil, msgInvalidCredentials)), nil
	}
	if err != nil {
		// A broken credential store is not a login failure.
		return NoOpinion(), err
	}

	if !l.hasher.Verify(ev.Password, ident.PasswordHash) {
		return SetResult(NewResult(CodeFailureCredentialInvalid, nil, msgInvalidCredentials)), nil
	}

	if l.hasher.NeedsRehash(ident.PasswordHash) {
		// Runs only once the whole attempt has succeeded: a password is
		// never upgraded for a login that a later gate rejected.
		userID := ident.UserID
		password := ev.Password
		ev.Defer(func(ctx context.Context) error {
			return l.rehash(ctx, userID, password)
		})
	}

	safe := ident.WithoutSecret()
	return SetResult(NewResult(CodeSuccess, &safe)), nil
}

func (l *CredentialListener) rehash(ctx context.Context, userID int64, password string) error {
	newHash, err := l.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to rehash password: %w", err)
	}
	if err := l.store.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		return fmt.Errorf("failed to persist rehashed password: %w", err)
	}

	l.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePasswordRehashed,
		ActorID:  userID,
		Resource: "credentials",
	})

	if err := l.notifier.Notify(ctx); err != nil {
		return fmt.Errorf("failed to notify daemon after rehash: %w", err)
	}
	return nil
}
