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
	"log/slog"
	"time"

	"github.com/joern42/hostpanel/internal/audit"
	"github.com/joern42/hostpanel/internal/identity"
	"github.com/joern42/hostpanel/internal/observability/logger"
)

const msgContactReseller = "An unexpected error occurred. Please contact your reseller."

// AccountStatusListener downgrades an otherwise-valid result when the
// account is disabled or expired. Administrators and resellers bypass the
// gate; their accounts have no status row.
type AccountStatusListener struct {
	store       identity.StatusStore
	auditLogger audit.Logger
}

// NewAccountStatusListener creates the account status gate.
func NewAccountStatusListener(store identity.StatusStore, auditLogger audit.Logger) *AccountStatusListener {
	return &AccountStatusListener{store: store, auditLogger: auditLogger}
}

// Handle checks the enable flag and expiry of the resolved account.
func (l *AccountStatusListener) Handle(ctx context.Context, ev *Event) (Decision, error) {
	res, ok := ev.Result()
	if !ok || !res.Valid() {
		return NoOpinion(), nil
	}

	ident := res.Identity()
	if ident.Type != identity.TypeUser {
		return NoOpinion(), nil
	}

	status, err := l.store.GetStatus(ctx, ident.UserID)
	if errors.Is(err, identity.ErrStatusNotFound) {
		// A resolved identity without a status row is a data
		// inconsistency. The user sees a generic message; the detail goes
		// to the operator.
		slog.ErrorContext(ctx, "authenticated account has no status row",
			logger.Component("auth"),
			logger.UserID(ident.UserID),
			logger.Username(ident.Username),
		)
		l.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeStatusInconsistent,
			ActorID:  ident.UserID,
			Resource: "account",
		})
		return SetResult(NewResult(CodeFailure, ident, msgContactReseller)), nil
	}
	if err != nil {
		return NoOpinion(), err
	}

	if !status.Enabled {
		return SetResult(NewResult(CodeFailureUncategorized, ident,
			"Your account has been disabled. Please contact your reseller.")), nil
	}
	if status.Expired(time.Now()) {
		return SetResult(NewResult(CodeFailureUncategorized, ident,
			"Your account has expired. Please contact your reseller.")), nil
	}

	return NoOpinion(), nil
}
