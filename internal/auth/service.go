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
	"fmt"
	"log/slog"

	"github.com/joern42/hostpanel/internal/audit"
	"github.com/joern42/hostpanel/internal/identity"
	"github.com/joern42/hostpanel/internal/observability/logger"
)

// Storage is the session-bound principal store the service persists into.
// Implementations resolve the current session from the context.
type Storage interface {
	// Read returns the stored principal, or identity.ErrUserNotFound when
	// the storage is empty.
	Read(ctx context.Context) (*identity.Identity, error)

	// Write stores a principal, replacing nothing: the service clears any
	// previous principal first.
	Write(ctx context.Context, ident identity.Identity) error

	// Clear removes the stored principal. Clearing empty storage is a no-op.
	Clear(ctx context.Context) error

	// IsEmpty reports whether no principal is stored.
	IsEmpty(ctx context.Context) (bool, error)
}

// Attempt carries one login submission into the pipeline.
type Attempt struct {
	Username   string
	Password   string
	ClientAddr string
	UserAgent  string
}

// Service orchestrates the three-phase authentication run. The run is
// linear (before, during, after) with no backward transitions; a fresh
// event is built per attempt. The service owns which result is
// authoritative at each phase boundary and runs deferred post-success
// actions only when the final result survived every gate.
type Service struct {
	dispatcher  *Dispatcher
	storage     Storage
	auditLogger audit.Logger
}

// NewService creates the authentication service.
func NewService(dispatcher *Dispatcher, storage Storage, auditLogger audit.Logger) *Service {
	return &Service{
		dispatcher:  dispatcher,
		storage:     storage,
		auditLogger: auditLogger,
	}
}

// Dispatcher returns the listener registry, for startup wiring.
func (s *Service) Dispatcher() *Dispatcher { return s.dispatcher }

// Authenticate runs one login attempt through the pipeline and returns the
// final result. Collaborator faults (a broken credential store, an
// unreachable settings table) propagate as errors; they are not login
// failures and leave no partial session state behind. Writing a successful
// identity into session storage is the caller's move, via SetIdentity.
func (s *Service) Authenticate(ctx context.Context, attempt Attempt) (Result, error) {
	ev := &Event{
		Username:   attempt.Username,
		Password:   attempt.Password,
		ClientAddr: attempt.ClientAddr,
		target:     s,
	}

	out, err := s.dispatcher.Dispatch(ctx, PhaseBefore, ev)
	if err != nil {
		return Result{}, err
	}
	if out.Stopped {
		// Early gates (lockout, rate limiting) end the attempt outright;
		// neither the credential check nor the after gates run.
		res := NewResult(CodeFailureUncategorized, nil, out.Message)
		ev.setResult(res)
		s.auditFailure(ctx, attempt, res)
		return res, nil
	}

	if _, err := s.dispatcher.Dispatch(ctx, PhaseDuring, ev); err != nil {
		return Result{}, err
	}
	if _, ok := ev.Result(); !ok {
		// Safety net against a listener set that resolved nothing.
		ev.setResult(NewResult(CodeFailureUncategorized, nil, "Unknown reason."))
	}

	// The after phase runs even on a credential failure: advisory listeners
	// react to failures, and policy gates downgrade otherwise-valid results.
	if _, err := s.dispatcher.Dispatch(ctx, PhaseAfter, ev); err != nil {
		return Result{}, err
	}

	res, _ := ev.Result()
	if res.Valid() {
		s.runDeferred(ctx, ev)
		s.auditLogger.Log(ctx, audit.Event{
			Type:      audit.TypeLoginSuccess,
			ActorID:   res.Identity().UserID,
			Resource:  "login",
			IPAddress: attempt.ClientAddr,
			UserAgent: attempt.UserAgent,
		})
	} else {
		s.auditFailure(ctx, attempt, res)
	}

	return res, nil
}

// runDeferred executes post-success actions. The login has already
// succeeded at this point; an action failure (a rehash UPDATE, the daemon
// notification) is logged and does not retroactively fail the attempt.
func (s *Service) runDeferred(ctx context.Context, ev *Event) {
	for _, action := range ev.actions {
		if err := action(ctx); err != nil {
			slog.ErrorContext(ctx, "post-login action failed",
				logger.Component("auth"),
				logger.Error(err),
			)
		}
	}
}

func (s *Service) auditFailure(ctx context.Context, attempt Attempt, res Result) {
	ev := audit.Event{
		Type:      audit.TypeLoginFailed,
		Resource:  "login",
		IPAddress: attempt.ClientAddr,
		UserAgent: attempt.UserAgent,
		Metadata:  map[string]any{"reason": res.Code().String()},
	}
	if ident := res.Identity(); ident != nil {
		ev.ActorID = ident.UserID
	}
	s.auditLogger.Log(ctx, ev)
}

// SetIdentity stores the authenticated principal. A previously stored
// principal is cleared first so no stale session flags survive a
// re-login. The stored copy never carries the password hash.
func (s *Service) SetIdentity(ctx context.Context, ident identity.Identity) error {
	empty, err := s.storage.IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("failed to inspect identity storage: %w", err)
	}
	if !empty {
		if err := s.storage.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear previous identity: %w", err)
		}
	}
	return s.storage.Write(ctx, ident.WithoutSecret())
}

// Identity returns the stored principal, or identity.ErrUserNotFound.
func (s *Service) Identity(ctx context.Context) (*identity.Identity, error) {
	return s.storage.Read(ctx)
}

// HasIdentity reports whether a principal is stored.
func (s *Service) HasIdentity(ctx context.Context) (bool, error) {
	empty, err := s.storage.IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	return !empty, nil
}

// ClearIdentity removes the stored principal.
func (s *Service) ClearIdentity(ctx context.Context) error {
	return s.storage.Clear(ctx)
}
