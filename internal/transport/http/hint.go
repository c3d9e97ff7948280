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

package http

import (
	"context"

	"github.com/joern42/hostpanel/internal/auth"
)

type hintKey struct{}

// lostPasswordHint collects the advisory recovery hint for one request.
// The pipeline's hint listener sets it; the login handler surfaces it in
// the failure payload so the sign-in page can offer the recovery link.
type lostPasswordHint struct {
	scheduled bool
}

func (h *lostPasswordHint) Scheduled() bool { return h.scheduled }

func withLostPasswordHint(ctx context.Context, h *lostPasswordHint) context.Context {
	return context.WithValue(ctx, hintKey{}, h)
}

// HintScheduler returns the scheduler the recovery hint listener is wired
// with: it flags the hint holder of the current request, if one exists.
func HintScheduler() auth.HintScheduler {
	return auth.HintSchedulerFunc(func(ctx context.Context, _ string) {
		if h, ok := ctx.Value(hintKey{}).(*lostPasswordHint); ok {
			h.scheduled = true
		}
	})
}
