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

	"github.com/joern42/hostpanel/internal/identity"
	"github.com/joern42/hostpanel/internal/settings"
)

// MaintenanceListener rejects non-administrator logins while the panel is
// in maintenance mode. Administrators always get through so they can turn
// the mode off again.
type MaintenanceListener struct {
	settings settings.Provider
}

// NewMaintenanceListener creates the maintenance gate.
func NewMaintenanceListener(provider settings.Provider) *MaintenanceListener {
	return &MaintenanceListener{settings: provider}
}

// Handle downgrades a valid result when maintenance mode is active.
func (l *MaintenanceListener) Handle(ctx context.Context, ev *Event) (Decision, error) {
	res, ok := ev.Result()
	if !ok || !res.Valid() {
		return NoOpinion(), nil
	}

	ident := res.Identity()
	if ident.Type == identity.TypeAdmin {
		return NoOpinion(), nil
	}

	active, err := l.settings.Bool(ctx, settings.KeyMaintenanceMode)
	if err != nil {
		return NoOpinion(), err
	}
	if !active {
		return NoOpinion(), nil
	}

	message, err := l.settings.String(ctx, settings.KeyMaintenanceMessage)
	if err != nil {
		return NoOpinion(), err
	}

	return SetResult(NewResult(CodeFailureUncategorized, ident, message)), nil
}
