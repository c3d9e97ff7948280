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

// Package settings provides the database-backed runtime configuration of
// the panel. Unlike the process configuration in internal/config, these
// values are editable from the panel itself and take effect without a
// restart.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Well-known setting names.
const (
	KeyMaintenanceMode     = "MAINTENANCE_MODE"
	KeyMaintenanceMessage  = "MAINTENANCE_MESSAGE"
	KeyLostPasswordEnabled = "LOST_PASSWORD_ENABLED"
	KeyMinPasswordLength   = "MIN_PASSWORD_LENGTH"
)

// ErrNotFound is returned for a name with neither a stored value nor a
// built-in default.
var ErrNotFound = errors.New("setting not found")

// defaults apply when the config table has no row for a name.
var defaults = map[string]string{
	KeyMaintenanceMode:     "0",
	KeyMaintenanceMessage:  "The control panel is currently under maintenance. Please try again later.",
	KeyLostPasswordEnabled: "1",
	KeyMinPasswordLength:   "6",
}

// Store is the persistence collaborator holding the config table.
type Store interface {
	// Get returns the raw value for a name, or ErrNotFound.
	Get(ctx context.Context, name string) (string, error)
}

// Provider reads typed runtime settings.
type Provider interface {
	String(ctx context.Context, name string) (string, error)
	Bool(ctx context.Context, name string) (bool, error)
	Int(ctx context.Context, name string) (int, error)
}

// CachedProvider is a Provider with a read-through cache on top of a
// Store. The panel reads settings on every login attempt; the cache keeps
// that off the database while still picking up edits within the TTL.
type CachedProvider struct {
	store Store
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[string]cachedValue
}

type cachedValue struct {
	value     string
	fetchedAt time.Time
}

// NewCachedProvider creates a provider caching store reads for ttl. A
// non-positive ttl disables caching.
func NewCachedProvider(store Store, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		store: store,
		ttl:   ttl,
		cache: make(map[string]cachedValue),
	}
}

// String returns the raw value of a setting.
func (p *CachedProvider) String(ctx context.Context, name string) (string, error) {
	if p.ttl > 0 {
		p.mu.RLock()
		cached, ok := p.cache[name]
		p.mu.RUnlock()
		if ok && time.Since(cached.fetchedAt) < p.ttl {
			return cached.value, nil
		}
	}

	value, err := p.store.Get(ctx, name)
	if errors.Is(err, ErrNotFound) {
		fallback, ok := defaults[name]
		if !ok {
			return "", fmt.Errorf("setting %q: %w", name, ErrNotFound)
		}
		value = fallback
	} else if err != nil {
		return "", fmt.Errorf("failed to read setting %q: %w", name, err)
	}

	if p.ttl > 0 {
		p.mu.Lock()
		p.cache[name] = cachedValue{value: value, fetchedAt: time.Now()}
		p.mu.Unlock()
	}

	return value, nil
}

// Bool interprets a setting as a boolean. The panel historically stores
// booleans as "0"/"1"; strconv covers those along with true/false.
func (p *CachedProvider) Bool(ctx context.Context, name string) (bool, error) {
	raw, err := p.String(ctx, name)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("setting %q is not a boolean: %w", name, err)
	}
	return b, nil
}

// Int interprets a setting as an integer.
func (p *CachedProvider) Int(ctx context.Context, name string) (int, error) {
	raw, err := p.String(ctx, name)
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("setting %q is not an integer: %w", name, err)
	}
	return i, nil
}
