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
	"fmt"
	"os"

	"github.com/joern42/hostpanel/internal/audit"
)

const (
	EnvBootstrapAdminUsername = "PANEL_BOOTSTRAP_ADMIN_USERNAME"
	EnvBootstrapAdminPassword = "PANEL_BOOTSTRAP_ADMIN_PASSWORD"
)

// AdminStore is the persistence surface bootstrap needs on top of
// CredentialStore.
type AdminStore interface {
	CountByType(ctx context.Context, t Type) (int64, error)
	CreateAdmin(ctx context.Context, username, passwordHash string) (int64, error)
}

// BootstrapService provisions the first administrator of a fresh install
// from environment variables. On a panel that already has an
// administrator it does nothing.
type BootstrapService struct {
	store       AdminStore
	hasher      *Hasher
	auditLogger audit.Logger
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(store AdminStore, hasher *Hasher, auditLogger audit.Logger) *BootstrapService {
	return &BootstrapService{store: store, hasher: hasher, auditLogger: auditLogger}
}

// Bootstrap checks for bootstrap configuration and executes it if necessary
func (s *BootstrapService) Bootstrap(ctx context.Context) error {
	username := os.Getenv(EnvBootstrapAdminUsername)
	password := os.Getenv(EnvBootstrapAdminPassword)

	if username == "" {
		return nil
	}
	if password == "" {
		return fmt.Errorf("%s is set but %s is empty", EnvBootstrapAdminUsername, EnvBootstrapAdminPassword)
	}

	admins, err := s.store.CountByType(ctx, TypeAdmin)
	if err != nil {
		return fmt.Errorf("failed to check for existing administrators: %w", err)
	}
	if admins > 0 {
		// Already bootstrapped, skip silently.
		return nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap password: %w", err)
	}

	userID, err := s.store.CreateAdmin(ctx, NormalizeUsername(username), hash)
	if err != nil {
		return fmt.Errorf("failed to create bootstrap administrator: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAdminBootstrap,
		ActorID:  userID,
		Resource: "account",
		Metadata: map[string]any{"username": NormalizeUsername(username)},
	})

	fmt.Printf("Successfully bootstrapped initial administrator: %s\n", username)
	return nil
}
