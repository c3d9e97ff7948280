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

	"github.com/joern42/hostpanel/internal/settings"
)

// HintScheduler receives the lost-password hint for the sign-in page. The
// hint is rendered after the redirect, outside this pipeline.
type HintScheduler interface {
	ScheduleLostPasswordHint(ctx context.Context, username string)
}

// HintSchedulerFunc adapts a function to the HintScheduler interface.
type HintSchedulerFunc func(ctx context.Context, username string)

func (f HintSchedulerFunc) ScheduleLostPasswordHint(ctx context.Context, username string) {
	f(ctx, username)
}

// RecoveryHintListener is purely advisory: on a credential failure it
// schedules a "lost your password?" hint when the feature is enabled. It
// never changes the authentication decision.
type RecoveryHintListener struct {
	settings  settings.Provider
	scheduler HintScheduler
}

// NewRecoveryHintListener creates the recovery hint listener.
func NewRecoveryHintListener(provider settings.Provider, scheduler HintScheduler) *RecoveryHintListener {
	return &RecoveryHintListener{settings: provider, scheduler: scheduler}
}

// Handle schedules the hint on credential failures.
func (l *RecoveryHintListener) Handle(ctx context.Context, ev *Event) (Decision, error) {
	res, ok := ev.Result()
	if !ok || res.Code() != CodeFailureCredentialInvalid {
		return NoOpinion(), nil
	}

	enabled, err := l.settings.Bool(ctx, settings.KeyLostPasswordEnabled)
	if err != nil {
		return NoOpinion(), err
	}
	if enabled {
		l.scheduler.ScheduleLostPasswordHint(ctx, ev.Username)
	}

	return NoOpinion(), nil
}
