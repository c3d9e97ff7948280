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

import "context"

// Phase is one of the three ordered stages of a login attempt.
type Phase int

const (
	PhaseBefore Phase = iota
	PhaseDuring
	PhaseAfter
)

func (p Phase) String() string {
	switch p {
	case PhaseBefore:
		return "before"
	case PhaseDuring:
		return "during"
	case PhaseAfter:
		return "after"
	default:
		return "unknown"
	}
}

// Action is deferred work collected during a login attempt and run by the
// service only when the final result is still valid. The deferred password
// rehash uses this so a hash is never upgraded for a login that a later
// gate rejected.
type Action func(ctx context.Context) error

// Event is the per-attempt context threaded through every listener in all
// three phases. One Event serves exactly one attempt; it is not safe for
// concurrent use and is discarded when the service returns.
type Event struct {
	// Username and Password are the raw submitted credentials.
	Username string
	Password string

	// ClientAddr is the remote client address, used by rate gates.
	ClientAddr string

	phase   Phase
	target  *Service
	result  *Result
	actions []Action
}

// Phase returns the stage currently being dispatched.
func (e *Event) Phase() Phase { return e.phase }

// Target returns the authentication service running this attempt.
func (e *Event) Target() *Service { return e.target }

// Result returns the most recently set result. Later listeners within a
// phase observe values set by earlier listeners in that same phase.
func (e *Event) Result() (Result, bool) {
	if e.result == nil {
		return Result{}, false
	}
	return *e.result, true
}

// Defer schedules a post-success action.
func (e *Event) Defer(a Action) {
	e.actions = append(e.actions, a)
}

// setResult replaces the current result (last writer wins). Only the
// dispatcher applies listener decisions; listeners themselves return a
// Decision instead of writing here.
func (e *Event) setResult(r Result) {
	e.result = &r
}
