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

package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GehirnInc/crypt"
	"github.com/GehirnInc/crypt/apr1_crypt"
	"github.com/GehirnInc/crypt/md5_crypt"
	"golang.org/x/crypto/bcrypt"
)

// Algorithm tags a stored password hash format. The panel migrated from
// Apache-style MD5-crypt hashes to bcrypt; anything that is not bcrypt is
// treated as legacy and rewritten on the next successful login.
type Algorithm int

const (
	AlgorithmLegacy Algorithm = iota
	AlgorithmBcrypt
)

var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// AlgorithmOf tags a stored hash by its crypt prefix.
func AlgorithmOf(hash string) Algorithm {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(hash, p) {
			return AlgorithmBcrypt
		}
	}
	return AlgorithmLegacy
}

// Hasher verifies panel passwords in both stored formats and produces
// hashes in the current one.
type Hasher struct {
	cost int
}

// NewHasher creates a hasher that writes bcrypt hashes at the given cost.
// A cost outside bcrypt's valid range falls back to the library default.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash produces a bcrypt hash of the password.
func (h *Hasher) Hash(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(out), nil
}

// Verify checks a plaintext password against a stored hash in either the
// modern bcrypt format or a legacy crypt(3) format. Both branches compare
// in constant time. A hash in a format the panel never produced verifies
// as a mismatch, never as an error the caller could leak to the user.
func (h *Hasher) Verify(password, hash string) bool {
	if AlgorithmOf(hash) == AlgorithmBcrypt {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}
	return verifyLegacy(password, hash)
}

// NeedsRehash reports whether a hash that just verified should be rewritten
// in the current format.
func (h *Hasher) NeedsRehash(hash string) bool {
	return AlgorithmOf(hash) != AlgorithmBcrypt
}

func verifyLegacy(password, hash string) bool {
	var crypter crypt.Crypter
	switch {
	case strings.HasPrefix(hash, apr1_crypt.MagicPrefix):
		crypter = apr1_crypt.New()
	case strings.HasPrefix(hash, md5_crypt.MagicPrefix):
		crypter = md5_crypt.New()
	default:
		return false
	}

	err := crypter.Verify(hash, []byte(password))
	if err == nil {
		return true
	}
	if !errors.Is(err, crypt.ErrKeyMismatch) {
		// Malformed stored hash; indistinguishable from a mismatch here.
		return false
	}
	return false
}
