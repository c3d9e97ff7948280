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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joern42/hostpanel/internal/audit"
)

type mockAdminStore struct {
	admins      int64
	createdName string
	createdHash string
}

func (m *mockAdminStore) CountByType(ctx context.Context, t Type) (int64, error) {
	return m.admins, nil
}

func (m *mockAdminStore) CreateAdmin(ctx context.Context, username, passwordHash string) (int64, error) {
	m.admins++
	m.createdName = username
	m.createdHash = passwordHash
	return 1, nil
}

func TestBootstrap_NoEnvIsNoop(t *testing.T) {
	t.Setenv(EnvBootstrapAdminUsername, "")
	t.Setenv(EnvBootstrapAdminPassword, "")

	store := &mockAdminStore{}
	s := NewBootstrapService(store, NewHasher(4), audit.NewSlogLogger())

	require.NoError(t, s.Bootstrap(context.Background()))
	assert.Empty(t, store.createdName)
}

func TestBootstrap_CreatesFirstAdmin(t *testing.T) {
	t.Setenv(EnvBootstrapAdminUsername, "Admin")
	t.Setenv(EnvBootstrapAdminPassword, "bootstrap-pass")

	store := &mockAdminStore{}
	hasher := NewHasher(4)
	s := NewBootstrapService(store, hasher, audit.NewSlogLogger())

	require.NoError(t, s.Bootstrap(context.Background()))
	assert.Equal(t, "admin", store.createdName)
	assert.True(t, hasher.Verify("bootstrap-pass", store.createdHash))
}

func TestBootstrap_SkipsWhenAdminExists(t *testing.T) {
	t.Setenv(EnvBootstrapAdminUsername, "admin")
	t.Setenv(EnvBootstrapAdminPassword, "bootstrap-pass")

	store := &mockAdminStore{admins: 1}
	s := NewBootstrapService(store, NewHasher(4), audit.NewSlogLogger())

	require.NoError(t, s.Bootstrap(context.Background()))
	assert.Empty(t, store.createdName)
}

func TestBootstrap_MissingPasswordFails(t *testing.T) {
	t.Setenv(EnvBootstrapAdminUsername, "admin")
	t.Setenv(EnvBootstrapAdminPassword, "")

	s := NewBootstrapService(&mockAdminStore{}, NewHasher(4), audit.NewSlogLogger())
	assert.Error(t, s.Bootstrap(context.Background()))
}
