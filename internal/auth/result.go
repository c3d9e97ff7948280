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

import "github.com/joern42/hostpanel/internal/identity"

// Code is the outcome of an authentication attempt.
type Code int

const (
	// CodeFailure is a general rejection, used for data inconsistencies
	// that are not the user's fault.
	CodeFailure Code = iota
	// CodeSuccess is the only code on which an identity is handed to the
	// session layer.
	CodeSuccess
	// CodeFailureIdentityNotFound exists for completeness; the shipped
	// listeners report unknown usernames as CodeFailureCredentialInvalid
	// so the login surface cannot be used for username enumeration.
	CodeFailureIdentityNotFound
	// CodeFailureCredentialInvalid covers empty, unknown, and mismatching
	// credentials uniformly.
	CodeFailureCredentialInvalid
	// CodeFailureUncategorized covers policy rejections: lockout,
	// maintenance mode, disabled or expired accounts.
	CodeFailureUncategorized
)

func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeFailureIdentityNotFound:
		return "identity_not_found"
	case CodeFailureCredentialInvalid:
		return "credential_invalid"
	case CodeFailureUncategorized:
		return "uncategorized"
	default:
		return "failure"
	}
}

// Result is the immutable outcome value threaded through the pipeline.
// Listeners never mutate a Result; they replace it on the event.
type Result struct {
	code     Code
	identity *identity.Identity
	messages []string
}

// NewResult builds a result. A success code without an identity is
// normalized to CodeFailure so the success-implies-identity invariant
// cannot be violated by a misbehaving listener.
func NewResult(code Code, ident *identity.Identity, messages ...string) Result {
	if code == CodeSuccess && ident == nil {
		code = CodeFailure
	}
	return Result{code: code, identity: ident, messages: append([]string(nil), messages...)}
}

// Code returns the outcome code.
func (r Result) Code() Code { return r.code }

// Valid reports whether the attempt succeeded.
func (r Result) Valid() bool { return r.code == CodeSuccess }

// Identity returns the resolved principal, if any. Policy rejections keep
// the principal attached for audit logging even though login is denied.
func (r Result) Identity() *identity.Identity { return r.identity }

// Messages returns the user-facing messages in order.
func (r Result) Messages() []string {
	return append([]string(nil), r.messages...)
}
