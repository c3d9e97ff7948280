package audit

import (
	"testing"
)

// TestPurpose: Validates that sensitive metadata keys are redacted before
// an audit record reaches the log output.
// Scope: Unit Test
// Security: Data Masking and Leakage Prevention (CWE-532)
// Expected: Returns true for the credential-carrying keys, false otherwise.
// Test Case ID: AUD-01
func TestAudit_IsSecret(t *testing.T) {
	tests := []struct {
		key      string
		isSecret bool
	}{
		{"password", true},
		{"password_hash", true},
		{"secret", true},
		{"token", true},
		{"cookie", true},
		{"user_id", false},
		{"username", false},
		{"reason", false},
		{"ip_address", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := isSecret(tt.key); got != tt.isSecret {
				t.Errorf("isSecret(%q) = %v, want %v", tt.key, got, tt.isSecret)
			}
		})
	}
}
