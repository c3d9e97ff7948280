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
	"sync"
)

type decisionKind int

const (
	decisionNoOpinion decisionKind = iota
	decisionSetResult
	decisionStop
)

// Decision is what a listener returns: no opinion, a replacement result,
// or a request to stop the current phase.
type Decision struct {
	kind    decisionKind
	result  Result
	message string
}

// NoOpinion leaves the current result untouched.
func NoOpinion() Decision { return Decision{kind: decisionNoOpinion} }

// SetResult replaces the event's result (last writer wins).
func SetResult(r Result) Decision { return Decision{kind: decisionSetResult, result: r} }

// StopPropagation ends the current phase; no later listener in the phase
// runs. The message is surfaced by the service when no listener set a
// result of its own.
func StopPropagation(message string) Decision {
	return Decision{kind: decisionStop, message: message}
}

// Listener is a unit of logic reacting to one phase of a login attempt.
// A listener that wants to record a failure must return SetResult, not an
// error; errors are reserved for infrastructure faults and propagate
// untouched to the dispatcher's caller.
type Listener interface {
	Handle(ctx context.Context, ev *Event) (Decision, error)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, ev *Event) (Decision, error)

func (f ListenerFunc) Handle(ctx context.Context, ev *Event) (Decision, error) {
	return f(ctx, ev)
}

// Handle identifies a registration for later removal.
type Handle struct {
	phase Phase
	seq   uint64
}

// Outcome reports how a phase dispatch ended.
type Outcome struct {
	// Stopped is set when a listener requested propagation stop.
	Stopped bool
	// Message is the value supplied by the stopping listener.
	Message string
}

type registration struct {
	seq      uint64
	priority int
	listener Listener
}

// Dispatcher is an explicitly constructed, injected listener registry.
// Registration is expected at process start; it is nevertheless guarded so
// installing a listener cannot race a concurrent dispatch. Dispatch
// iterates a snapshot, so two attempts with independent events may run
// concurrently.
type Dispatcher struct {
	mu        sync.RWMutex
	seq       uint64
	listeners map[Phase][]registration
}

// NewDispatcher creates an empty registry.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{listeners: make(map[Phase][]registration)}
}

// Register installs a listener for a phase. Higher priority runs first;
// equal priorities keep registration order.
func (d *Dispatcher) Register(phase Phase, l Listener, priority int) Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	reg := registration{seq: d.seq, priority: priority, listener: l}

	regs := d.listeners[phase]
	idx := len(regs)
	for i, r := range regs {
		if reg.priority > r.priority {
			idx = i
			break
		}
	}

	next := make([]registration, 0, len(regs)+1)
	next = append(next, regs[:idx]...)
	next = append(next, reg)
	next = append(next, regs[idx:]...)
	d.listeners[phase] = next

	return Handle{phase: phase, seq: reg.seq}
}

// Unregister removes a previously registered listener. It reports whether
// the handle matched anything.
func (d *Dispatcher) Unregister(h Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs := d.listeners[h.phase]
	for i, r := range regs {
		if r.seq == h.seq {
			d.listeners[h.phase] = append(append([]registration(nil), regs[:i]...), regs[i+1:]...)
			return true
		}
	}
	return false
}

// Dispatch invokes the phase's listeners in order against the event. It
// ends early when a listener stops propagation. Listener errors abort the
// dispatch and propagate to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, phase Phase, ev *Event) (Outcome, error) {
	d.mu.RLock()
	snapshot := make([]registration, len(d.listeners[phase]))
	copy(snapshot, d.listeners[phase])
	d.mu.RUnlock()

	ev.phase = phase

	for _, reg := range snapshot {
		decision, err := reg.listener.Handle(ctx, ev)
		if err != nil {
			return Outcome{}, fmt.Errorf("auth listener failed in %s phase: %w", phase, err)
		}
		switch decision.kind {
		case decisionSetResult:
			ev.setResult(decision.result)
		case decisionStop:
			return Outcome{Stopped: true, Message: decision.message}, nil
		}
	}

	return Outcome{}, nil
}
