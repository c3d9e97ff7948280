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

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/joern42/hostpanel/internal/identity"
)

// UserRepository implements identity.CredentialStore and
// identity.StatusStore.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByUsername retrieves an identity by its normalized username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*identity.Identity, error) {
	var ident identity.Identity

	err := r.db.pool.QueryRow(ctx, `
		SELECT user_id, username, password_hash, user_type, created_by, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(
		&ident.UserID, &ident.Username, &ident.PasswordHash,
		&ident.Type, &ident.CreatedBy, &ident.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &ident, nil
}

// UpdatePasswordHash replaces the stored credential hash.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, userID int64, newHash string) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2
		WHERE user_id = $1
	`, userID, newHash)

	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}

	return nil
}

// CountByType counts accounts of one type.
func (r *UserRepository) CountByType(ctx context.Context, t identity.Type) (int64, error) {
	var count int64
	err := r.db.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM users WHERE user_type = $1
	`, t).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// CreateAdmin inserts an administrator account and returns its id.
func (r *UserRepository) CreateAdmin(ctx context.Context, username, passwordHash string) (int64, error) {
	var userID int64
	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, user_type, created_by)
		VALUES ($1, $2, $3, 0)
		RETURNING user_id
	`, username, passwordHash, identity.TypeAdmin).Scan(&userID)
	if err != nil {
		return 0, fmt.Errorf("failed to create administrator: %w", err)
	}
	return userID, nil
}

// GetStatus retrieves the account gate row of an ordinary account.
func (r *UserRepository) GetStatus(ctx context.Context, userID int64) (identity.Status, error) {
	var status identity.Status
	var expiresAt sql.NullTime

	err := r.db.pool.QueryRow(ctx, `
		SELECT enabled, expires_at
		FROM accounts
		WHERE user_id = $1
	`, userID).Scan(&status.Enabled, &expiresAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.Status{}, identity.ErrStatusNotFound
		}
		return identity.Status{}, fmt.Errorf("failed to get account status: %w", err)
	}

	if expiresAt.Valid {
		status.ExpiresAt = expiresAt.Time
	}

	return status, nil
}
