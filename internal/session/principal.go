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
	"errors"
	"fmt"

	"github.com/joern42/hostpanel/internal/identity"
)

type bindingKey struct{}

// Binding ties the session-backed principal storage to one request. The
// HTTP layer installs it with the session ID from the cookie (empty when
// anonymous); writing a principal replaces ID with the freshly created
// session, which the handler then sets as the new cookie.
type Binding struct {
	ID        string
	IPAddress string
	UserAgent string
}

// WithBinding attaches a binding to the context.
func WithBinding(ctx context.Context, b *Binding) context.Context {
	return context.WithValue(ctx, bindingKey{}, b)
}

// BindingFromContext returns the request's binding, if any.
func BindingFromContext(ctx context.Context) (*Binding, bool) {
	b, ok := ctx.Value(bindingKey{}).(*Binding)
	return b, ok
}

// PrincipalStore persists authenticated principals into server-side
// sessions. It is the storage collaborator of the authentication service:
// reads and clears address the session named by the request's binding,
// writes always mint a fresh session.
type PrincipalStore struct {
	svc *Service
}

// NewPrincipalStore creates the session-backed principal storage.
func NewPrincipalStore(svc *Service) *PrincipalStore {
	return &PrincipalStore{svc: svc}
}

// Read returns the principal of the bound session, or
// identity.ErrUserNotFound when the request has no live session.
func (p *PrincipalStore) Read(ctx context.Context) (*identity.Identity, error) {
	sess, err := p.current(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, identity.ErrUserNotFound
	}
	ident := sess.Identity()
	return &ident, nil
}

// IsEmpty reports whether the request has no live session.
func (p *PrincipalStore) IsEmpty(ctx context.Context) (bool, error) {
	sess, err := p.current(ctx)
	if err != nil {
		return false, err
	}
	return sess == nil, nil
}

// Write mints a fresh session for the principal and records its ID on the
// binding for the cookie.
func (p *PrincipalStore) Write(ctx context.Context, ident identity.Identity) error {
	b, ok := BindingFromContext(ctx)
	if !ok {
		return fmt.Errorf("no session binding on context")
	}

	sess, err := p.svc.Create(ctx, ident, b.IPAddress, b.UserAgent)
	if err != nil {
		return err
	}
	b.ID = sess.ID
	return nil
}

// Clear destroys the bound session.
func (p *PrincipalStore) Clear(ctx context.Context) error {
	b, ok := BindingFromContext(ctx)
	if !ok || b.ID == "" {
		return nil
	}
	if err := p.svc.Destroy(ctx, b.ID); err != nil {
		return err
	}
	b.ID = ""
	return nil
}

func (p *PrincipalStore) current(ctx context.Context) (*Session, error) {
	b, ok := BindingFromContext(ctx)
	if !ok || b.ID == "" {
		return nil, nil
	}
	sess, err := p.svc.Get(ctx, b.ID)
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}
