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
	"strconv"
	"testing"
	"time"

	"github.com/GehirnInc/crypt/apr1_crypt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joern42/hostpanel/internal/audit"
	"github.com/joern42/hostpanel/internal/identity"
	"github.com/joern42/hostpanel/internal/settings"
)

// mockCredentialStore is a simple in-memory implementation of
// identity.CredentialStore that counts its calls.
type mockCredentialStore struct {
	users       map[string]*identity.Identity
	findCalls   int
	updateCalls int
	updatedHash string
	updateErr   error
}

func newMockCredentialStore() *mockCredentialStore {
	return &mockCredentialStore{users: make(map[string]*identity.Identity)}
}

func (m *mockCredentialStore) FindByUsername(ctx context.Context, username string) (*identity.Identity, error) {
	m.findCalls++
	u, ok := m.users[username]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockCredentialStore) UpdatePasswordHash(ctx context.Context, userID int64, newHash string) error {
	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updatedHash = newHash
	for _, u := range m.users {
		if u.UserID == userID {
			u.PasswordHash = newHash
		}
	}
	return nil
}

type mockStatusStore struct {
	statuses map[int64]identity.Status
}

func (m *mockStatusStore) GetStatus(ctx context.Context, userID int64) (identity.Status, error) {
	s, ok := m.statuses[userID]
	if !ok {
		return identity.Status{}, identity.ErrStatusNotFound
	}
	return s, nil
}

// memStorage implements Storage in memory and counts clears.
type memStorage struct {
	ident      *identity.Identity
	clearCalls int
}

func (m *memStorage) Read(ctx context.Context) (*identity.Identity, error) {
	if m.ident == nil {
		return nil, identity.ErrUserNotFound
	}
	cp := *m.ident
	return &cp, nil
}

func (m *memStorage) Write(ctx context.Context, ident identity.Identity) error {
	m.ident = &ident
	return nil
}

func (m *memStorage) Clear(ctx context.Context) error {
	m.clearCalls++
	m.ident = nil
	return nil
}

func (m *memStorage) IsEmpty(ctx context.Context) (bool, error) {
	return m.ident == nil, nil
}

type countNotifier struct {
	calls int
}

func (n *countNotifier) Notify(ctx context.Context) error {
	n.calls++
	return nil
}

// mapSettings implements settings.Provider from a fixed map.
type mapSettings map[string]string

func (m mapSettings) String(ctx context.Context, name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", settings.ErrNotFound
	}
	return v, nil
}

func (m mapSettings) Bool(ctx context.Context, name string) (bool, error) {
	v, err := m.String(ctx, name)
	if err != nil {
		return false, err
	}
	return v == "1" || v == "true", nil
}

func (m mapSettings) Int(ctx context.Context, name string) (int, error) {
	v, err := m.String(ctx, name)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

const testPassword = "Correct-Horse-42"

// testFixture sets up one ordinary user with a modern hash. Cost 4 keeps
// the bcrypt work negligible.
func testFixture(t *testing.T) (*mockCredentialStore, *identity.Hasher) {
	t.Helper()
	hasher := identity.NewHasher(4)
	hash, err := hasher.Hash(testPassword)
	require.NoError(t, err)

	store := newMockCredentialStore()
	store.users["joe"] = &identity.Identity{
		UserID:       7,
		Username:     "joe",
		PasswordHash: hash,
		Type:         identity.TypeUser,
		CreatedBy:    2,
		CreatedAt:    time.Now(),
	}
	return store, hasher
}

func newTestService(store *mockCredentialStore, hasher *identity.Hasher, statuses *mockStatusStore, cfg mapSettings, notifier *countNotifier, storage Storage) (*Service, *[]string) {
	auditLogger := audit.NewSlogLogger()
	if storage == nil {
		storage = &memStorage{}
	}

	var hints []string
	hinter := HintSchedulerFunc(func(ctx context.Context, username string) {
		hints = append(hints, username)
	})

	d := NewDispatcher()
	d.Register(PhaseDuring, NewCredentialListener(store, hasher, notifier, auditLogger), 0)
	d.Register(PhaseAfter, NewAccountStatusListener(statuses, auditLogger), 10)
	d.Register(PhaseAfter, NewMaintenanceListener(cfg), 0)
	d.Register(PhaseAfter, NewRecoveryHintListener(cfg, hinter), -10)

	return NewService(d, storage, auditLogger), &hints
}

func baseSettings() mapSettings {
	return mapSettings{
		settings.KeyMaintenanceMode:     "0",
		settings.KeyMaintenanceMessage:  "Down for maintenance.",
		settings.KeyLostPasswordEnabled: "1",
	}
}

func enabledStatuses() *mockStatusStore {
	return &mockStatusStore{statuses: map[int64]identity.Status{
		7: {Enabled: true},
	}}
}

func TestService_Authenticate_Success(t *testing.T) {
	store, hasher := testFixture(t)
	notifier := &countNotifier{}
	svc, hints := newTestService(store, hasher, enabledStatuses(), baseSettings(), notifier, nil)

	res, err := svc.Authenticate(context.Background(), Attempt{Username: "joe", Password: testPassword})
	require.NoError(t, err)
	assert.True(t, res.Valid())
	require.NotNil(t, res.Identity())
	assert.Equal(t, int64(7), res.Identity().UserID)
	assert.Empty(t, res.Identity().PasswordHash)
	assert.Empty(t, *hints)
	// Modern hash, nothing to upgrade.
	assert.Zero(t, store.updateCalls)
	assert.Zero(t, notifier.calls)
}

func TestService_Authenticate_EmptyCredentialsSkipStore(t *testing.T) {
	store, hasher := testFixture(t)
	svc, _ := newTestService(store, hasher, enabledStatuses(), baseSettings(), &countNotifier{}, nil)

	res, err := svc.Authenticate(context.Background(), Attempt{Username: "joe", Password: ""})
	require.NoError(t, err)
	assert.False(t, res.Valid())
	assert.Equal(t, CodeFailureCredentialInvalid, res.Code())
	assert.Zero(t, store.findCalls)
}

func TestService_Authenticate_UnknownUserLooksLikeBadPassword(t *testing.T) {
	store, hasher := testFixture(t)
	svc, _ := newTestService(store, hasher, enabledStatuses(), baseSettings(), &countNotifier{}, nil)

	unknown, err := svc.Authenticate(context.Background(), Attempt{Username: "nobody", Password: "x"})
	require.NoError(t, err)
	wrong, err := svc.Authenticate(context.Background(), Attempt{Username: "joe", Password: "wrong"})
	require.NoError(t, err)

	// Same code and same message either way; the login surface must not
	// confirm which usernames exist.
	assert.Equal(t, CodeFailureCredentialInvalid, unknown.Code())
	assert.Equal(t, wrong.Code(), unknown.Code())
	assert.Equal(t, wrong.Messages(), unknown.Messages())
}

func TestService_Authenticate_UsernameNormalization(t *testing.T) {
	store, hasher := testFixture(t)
	svc, _ := newTestService(store, hasher, enabledStatuses(), baseSettings(), &countNotifier{}, nil)

	res, err := svc.Authenticate(context.Background(), Attempt{Username: "  JOE ", Password: testPassword})
	require.NoError(t, err)
	assert.True(t, res.Valid())
}

func TestService_Authenticate_LegacyHashRehashedOnce(t *testing.T) {
	store, hasher := testFixture(t)
	legacy, err := apr1_crypt.New().Generate([]byte(testPassword), nil)
	require.NoError(t, err)
	store.users["joe"].PasswordHash = legacy

	notifier := &countNotifier{}
	svc, _ := newTestService(store, hasher, enabledStatuses(), baseSettings(), notifier, nil)

	res, err := svc.Authenticate(context.Background(), Attempt{Username: "joe", Password: testPassword})
	require.NoError(t, err)
	require.True(t, res.Valid())

	assert.Equal(t, 1, store.updateCalls)
	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, identity.AlgorithmBcrypt, identity.AlgorithmOf(store.updatedHash))
	assert.True(t, hasher.Verify(testPassword, store.updatedHash))

	// The next login finds a modern hash and leaves it alone.
	res, err = svc.Authenticate(context.Background(), Attempt{Username: "joe", Password: testPassword})
	require.NoError(t, err)
	require.True(t, res.Valid())
	assert.Equal(t, 1, store.updateCalls)
	assert.Equal(t, 1, notifier.calls)
}

func TestService_Authenticate_RehashFailureKeepsLoginValid(t *testing.T) {
	store, hasher := testFixture(t)
	legacy, err := apr1_crypt.New().Generate([]byte(testPassword), nil)
	require.NoError(t, err)
	store.users["joe"].PasswordHash = legacy
	store.updateErr = errors.New("write timeout")

	notifier := &countNotifier{}
	svc, _ := newTestService(store, hasher, enabledStatuses(), baseSettings(), notifier, nil)

	res, err := svc.Authenticate(context.Background(), Attempt{Username: "joe", Password: testPassword})
	require.NoError(t, err)
	assert.True(t, res.Valid())
	assert.Zero(t, notifier.calls)
}

func TestService_Authenticate_MaintenanceBlocksUserAndRehash(t *testing.T) {
	store, hasher := testFixture(t)
	legacy, err := apr1_crypt.New().Generate([]byte(testPassword), nil)
	require.NoError(t, err)
	store.users["joe"].PasswordHash = legacy

	cfg := baseSettings()
	cfg[settings.KeyMaintenanceMode] = "1"

	notifier := &countNotifier{}
	svc, _ := newTestService(store, hasher, enabledStatuses(), cfg, notifier, nil)

	res, err := svc.Authenticate(context.Background(), Attempt{Username: "joe", Password: testPassword})
	require.NoError(t, err)
	assert.False(t, res.Valid())
	assert.Equal(t, CodeFailureUncategorized, res.Code())
	assert.Equal(t, []string{"Down for maintenance."}, res.Messages())
	// Identity stays attached for audit, login is still denied.
	require.NotNil(t, res.Identity())

	// The rehash was collected during the credential check but must not
	// run for a rejected attempt.
	assert.Zero(t, store.updateCalls)
	assert.Zero(t, notifier.calls)
}

func TestService_Authenticate_MaintenanceAdminBypass(t *testing.T) {
	store, hasher := testFixture(t)
	store.users["joe"].Type = identity.TypeAdmin

	cfg := baseSettings()
	cfg[settings.KeyMaintenanceMode] = "1"

	svc, _ := newTestService(store, hasher, enabledStatuses(), cfg, &countNotifier{}, nil)

	res, err := svc.Authenticate(context.Background(), Attempt{Username: "joe", Password: testPassword})
	require.NoError(t, err)
	assert.True(t, res.Valid())
}

func TestService_Authenticate_DisabledAccount(t *testing.T) {
	store, hasher := testFixture(t)
	statuses := &mockStatusStore{statuses: map[int64]identity.Status{
		7: {Enabled: false},
	}}
	svc, _ := newTestService(store, hasher, statuses, baseSettings(), &countNotifier{}, nil)

	res, err := svc.Authenticate(context.Background(), Attempt{Username: "joe", Password: testPassword})
	require.NoError(t, err)
	assert.False(t, res.Valid())
	assert.Equal(t, CodeFailureUncategorized, res.Code())
	assert.Contains(t, res.Messages()[0], "disabled")
}

func TestService_Authenticate_ExpiredAccount(t *testing.T) {
	store, hasher := testFixture(t)
	statuses := &mockStatusStore{statuses: map[int64]identity.Status{
		7: {Enabled: true, ExpiresAt: time.Now().Add(-time.Hour)},
	}}
	svc, _ := newTestService(store, hasher, statuses, baseSettings(), &countNotifier{}, nil)

	res, err := svc.Authenticate(context.Background(), Attempt{Username: "joe", Password: testPassword})
	require.NoError(t, err)
	assert.False(t, res.Valid())
	assert.Equal(t, CodeFailureUncategorized, res.Code())
	assert.Contains(t, res.Messages()[0], "expired")
	require.NotNil(t, res.Identity())
}

func TestService_Authenticate_MissingStatusRow(t *testing.T) {
	store, hasher := testFixture(t)
	statuses := &mockStatusStore{statuses: map[int64]identity.Status{}}
	svc, _ := newTestService(store, hasher, statuses, baseSettings(), &countNotifier{}, nil)

	res, err := svc.Authenticate(context.Background(), Attempt{Username: "joe", Password: testPassword})
	require.NoError(t, err)
	assert.False(t, res.Valid())
	assert.Equal(t, CodeFailure, res.Code())
	assert.Equal(t, []string{msgContactReseller}, res.Messages())
}

func TestService_Authenticate_ResellerSkipsStatusGate(t *testing.T) {
	store, hasher := testFixture(t)
	store.users["joe"].Type = identity.TypeReseller
	// No status row registered at all; only ordinary users have one.
	statuses := &mockStatusStore{statuses: map[int64]identity.Status{}}
	svc, _ := newTestService(store, hasher, statuses, baseSettings(), &countNotifier{}, nil)

	res, err := svc.Authenticate(context.Background(), Attempt{Username: "joe", Password: testPassword})
	require.NoError(t, err)
	assert.True(t, res.Valid())
}

func TestService_Authenticate_RecoveryHint(t *testing.T) {
	store, hasher := testFixture(t)
	svc, hints := newTestService(store, hasher, enabledStatuses(), baseSettings(), &countNotifier{}, nil)

	_, err := svc.Authenticate(context.Background(), Attempt{Username: "joe", Password: "wrong"})
	require.NoError(t, err)
	assert.Equal(t, []string{"joe"}, *hints)
}

func TestService_Authenticate_RecoveryHintDisabled(t *testing.T) {
	store, hasher := testFixture(t)
	cfg := baseSettings()
	cfg[settings.KeyLostPasswordEnabled] = "0"
	svc, hints := newTestService(store, hasher, enabledStatuses(), cfg, &countNotifier{}, nil)

	_, err := svc.Authenticate(context.Background(), Attempt{Username: "joe", Password: "wrong"})
	require.NoError(t, err)
	assert.Empty(t, *hints)
}

func TestService_Authenticate_NoHintOnPolicyRejection(t *testing.T) {
	store, hasher := testFixture(t)
	statuses := &mockStatusStore{statuses: map[int64]identity.Status{
		7: {Enabled: false},
	}}
	svc, hints := newTestService(store, hasher, statuses, baseSettings(), &countNotifier{}, nil)

	_, err := svc.Authenticate(context.Background(), Attempt{Username: "joe", Password: testPassword})
	require.NoError(t, err)
	assert.Empty(t, *hints)
}

func TestService_Authenticate_BeforeStopSkipsCredentialCheck(t *testing.T) {
	store, hasher := testFixture(t)
	svc, _ := newTestService(store, hasher, enabledStatuses(), baseSettings(), &countNotifier{}, nil)
	svc.Dispatcher().Register(PhaseBefore, ListenerFunc(func(ctx context.Context, ev *Event) (Decision, error) {
		return StopPropagation("Too many authentication attempts."), nil
	}), 0)

	res, err := svc.Authenticate(context.Background(), Attempt{Username: "joe", Password: testPassword})
	require.NoError(t, err)
	assert.False(t, res.Valid())
	assert.Equal(t, CodeFailureUncategorized, res.Code())
	assert.Equal(t, []string{"Too many authentication attempts."}, res.Messages())
	assert.Zero(t, store.findCalls)
}

func TestService_Authenticate_NoResultSynthesized(t *testing.T) {
	auditLogger := audit.NewSlogLogger()
	svc := NewService(NewDispatcher(), &memStorage{}, auditLogger)

	res, err := svc.Authenticate(context.Background(), Attempt{Username: "joe", Password: "x"})
	require.NoError(t, err)
	assert.False(t, res.Valid())
	assert.Equal(t, CodeFailureUncategorized, res.Code())
	assert.Equal(t, []string{"Unknown reason."}, res.Messages())
}

func TestService_Authenticate_StoreFaultPropagates(t *testing.T) {
	store, hasher := testFixture(t)
	svc, _ := newTestService(store, hasher, enabledStatuses(), baseSettings(), &countNotifier{}, nil)

	boom := errors.New("connection refused")
	svc.Dispatcher().Register(PhaseDuring, ListenerFunc(func(ctx context.Context, ev *Event) (Decision, error) {
		return NoOpinion(), boom
	}), 100)

	_, err := svc.Authenticate(context.Background(), Attempt{Username: "joe", Password: testPassword})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestService_SetIdentity_ClearsPreviousPrincipal(t *testing.T) {
	storage := &memStorage{}
	svc := NewService(NewDispatcher(), storage, audit.NewSlogLogger())
	ctx := context.Background()

	first := identity.Identity{UserID: 1, Username: "old", PasswordHash: "secret", Type: identity.TypeUser}
	require.NoError(t, svc.SetIdentity(ctx, first))
	assert.Zero(t, storage.clearCalls)

	second := identity.Identity{UserID: 2, Username: "new", PasswordHash: "secret", Type: identity.TypeAdmin}
	require.NoError(t, svc.SetIdentity(ctx, second))
	assert.Equal(t, 1, storage.clearCalls)

	got, err := svc.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.UserID)
	assert.Empty(t, got.PasswordHash)

	has, err := svc.HasIdentity(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, svc.ClearIdentity(ctx))
	has, err = svc.HasIdentity(ctx)
	require.NoError(t, err)
	assert.False(t, has)
}
