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
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const msgTooManyAttempts = "Too many authentication attempts. Please try again later."

// BruteforceListener is a before-phase gate: when a client address has
// exhausted its attempt budget, it stops the phase and the whole attempt
// ends without touching the credential store.
type BruteforceListener struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	interval rate.Limit
	burst    int
	maxAge   time.Duration
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewBruteforceListener allows burst attempts per client address, refilled
// at one attempt per interval. Idle client entries are dropped lazily.
func NewBruteforceListener(interval time.Duration, burst int) *BruteforceListener {
	if burst < 1 {
		burst = 1
	}
	return &BruteforceListener{
		clients:  make(map[string]*clientLimiter),
		interval: rate.Every(interval),
		burst:    burst,
		maxAge:   30 * time.Minute,
	}
}

// Handle consumes one attempt from the client's budget.
func (l *BruteforceListener) Handle(_ context.Context, ev *Event) (Decision, error) {
	if ev.ClientAddr == "" {
		return NoOpinion(), nil
	}
	if !l.allow(ev.ClientAddr) {
		return StopPropagation(msgTooManyAttempts), nil
	}
	return NoOpinion(), nil
}

func (l *BruteforceListener) allow(addr string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	cl, ok := l.clients[addr]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.interval, l.burst)}
		l.clients[addr] = cl
		l.sweep(now)
	}
	cl.lastSeen = now

	return cl.limiter.Allow()
}

// sweep drops entries idle longer than maxAge. Called under the lock, on
// the insert path only, so steady-state traffic pays nothing.
func (l *BruteforceListener) sweep(now time.Time) {
	for addr, cl := range l.clients {
		if now.Sub(cl.lastSeen) > l.maxAge {
			delete(l.clients, addr)
		}
	}
}
