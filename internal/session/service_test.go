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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joern42/hostpanel/internal/identity"
)

// mockRepository is a simple in-memory implementation of Repository.
type mockRepository struct {
	sessions map[string]*Session
}

func newMockRepository() *mockRepository {
	return &mockRepository{sessions: make(map[string]*Session)}
}

func (m *mockRepository) Create(ctx context.Context, session *Session) error {
	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m *mockRepository) Get(ctx context.Context, sessionID string) (*Session, error) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepository) Touch(ctx context.Context, sessionID string, lastSeen time.Time) error {
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	s.LastSeenAt = lastSeen
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, sessionID string) error {
	delete(m.sessions, sessionID)
	return nil
}

func (m *mockRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *mockRepository) DeleteExpired(ctx context.Context) error {
	for id, s := range m.sessions {
		if s.IsExpired() {
			delete(m.sessions, id)
		}
	}
	return nil
}

var testIdentity = identity.Identity{
	UserID:   7,
	Username: "joe",
	Type:     identity.TypeUser,
}

func TestService_CreateAndGet(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, time.Hour, 30*time.Minute)
	ctx := context.Background()

	sess, err := svc.Create(ctx, testIdentity, "203.0.113.7", "curl/8")
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	assert.Equal(t, int64(7), sess.UserID)
	assert.Equal(t, "203.0.113.7", sess.IPAddress)

	got, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "joe", got.Username)
}

func TestService_CreateAlwaysMintsFreshID(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, time.Hour, 30*time.Minute)
	ctx := context.Background()

	a, err := svc.Create(ctx, testIdentity, "", "")
	require.NoError(t, err)
	b, err := svc.Create(ctx, testIdentity, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestService_GetExpiredSessionDestroyed(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, time.Hour, 30*time.Minute)
	ctx := context.Background()

	sess, err := svc.Create(ctx, testIdentity, "", "")
	require.NoError(t, err)
	repo.sessions[sess.ID].ExpiresAt = time.Now().Add(-time.Minute)

	_, err = svc.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionExpired)
	// The row is gone, a retry reports not found.
	_, err = svc.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_GetIdleSessionDestroyed(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, time.Hour, 30*time.Minute)
	ctx := context.Background()

	sess, err := svc.Create(ctx, testIdentity, "", "")
	require.NoError(t, err)
	repo.sessions[sess.ID].LastSeenAt = time.Now().Add(-time.Hour)

	_, err = svc.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestService_GetTouchesLastSeen(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, time.Hour, 30*time.Minute)
	ctx := context.Background()

	sess, err := svc.Create(ctx, testIdentity, "", "")
	require.NoError(t, err)
	stale := time.Now().Add(-10 * time.Minute)
	repo.sessions[sess.ID].LastSeenAt = stale

	_, err = svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, repo.sessions[sess.ID].LastSeenAt.After(stale))
}

func TestService_DestroyByUser(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, time.Hour, 30*time.Minute)
	ctx := context.Background()

	a, err := svc.Create(ctx, testIdentity, "", "")
	require.NoError(t, err)
	b, err := svc.Create(ctx, testIdentity, "", "")
	require.NoError(t, err)
	other, err := svc.Create(ctx, identity.Identity{UserID: 8, Username: "ann", Type: identity.TypeUser}, "", "")
	require.NoError(t, err)

	require.NoError(t, svc.DestroyByUser(ctx, 7))

	_, err = svc.Get(ctx, a.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Get(ctx, b.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Get(ctx, other.ID)
	assert.NoError(t, err)
}

func TestPrincipalStore_WriteMintsFreshSession(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, time.Hour, 30*time.Minute)
	store := NewPrincipalStore(svc)

	// Simulate an attacker-chosen pre-login cookie.
	binding := &Binding{ID: "attacker-chosen", IPAddress: "203.0.113.7", UserAgent: "curl/8"}
	ctx := WithBinding(context.Background(), binding)

	require.NoError(t, store.Write(ctx, testIdentity))
	assert.NotEmpty(t, binding.ID)
	assert.NotEqual(t, "attacker-chosen", binding.ID)

	ident, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), ident.UserID)
	assert.Equal(t, "joe", ident.Username)
}

func TestPrincipalStore_WriteRequiresBinding(t *testing.T) {
	store := NewPrincipalStore(NewService(newMockRepository(), time.Hour, time.Hour))

	err := store.Write(context.Background(), testIdentity)
	assert.Error(t, err)
}

func TestPrincipalStore_EmptyWithoutSession(t *testing.T) {
	store := NewPrincipalStore(NewService(newMockRepository(), time.Hour, time.Hour))
	ctx := WithBinding(context.Background(), &Binding{})

	empty, err := store.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	_, err = store.Read(ctx)
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}

func TestPrincipalStore_StaleCookieReadsAsEmpty(t *testing.T) {
	store := NewPrincipalStore(NewService(newMockRepository(), time.Hour, time.Hour))
	ctx := WithBinding(context.Background(), &Binding{ID: "gone"})

	empty, err := store.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestPrincipalStore_ClearDestroysSession(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, time.Hour, 30*time.Minute)
	store := NewPrincipalStore(svc)

	binding := &Binding{}
	ctx := WithBinding(context.Background(), binding)
	require.NoError(t, store.Write(ctx, testIdentity))
	sessionID := binding.ID

	require.NoError(t, store.Clear(ctx))
	assert.Empty(t, binding.ID)
	_, err := svc.Get(ctx, sessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Clearing again is a no-op.
	require.NoError(t, store.Clear(ctx))
}
