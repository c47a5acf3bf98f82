package auth

import (
	"strings"
	"testing"
)

func TestGenerateAdminToken(t *testing.T) {
	t.Parallel()

	tok, err := GenerateAdminToken()
	if err != nil {
		t.Fatalf("GenerateAdminToken failed: %v", err)
	}

	if !strings.HasPrefix(tok.Plaintext, TokenPrefix) {
		t.Errorf("Token should start with %s, got: %s", TokenPrefix, tok.Plaintext)
	}
	if len(tok.Plaintext) != len(TokenPrefix)+TokenSecretLen {
		t.Errorf("Token length = %d, want %d", len(tok.Plaintext), len(TokenPrefix)+TokenSecretLen)
	}
	if !ValidateTokenFormat(tok.Plaintext) {
		t.Errorf("Generated token fails its own format check: %s", tok.Plaintext)
	}

	ok, err := VerifyToken(tok.Plaintext, tok.Hash)
	if err != nil || !ok {
		t.Errorf("Generated hash should verify the plaintext (ok=%v, err=%v)", ok, err)
	}
}

func TestGenerateAdminToken_Unique(t *testing.T) {
	t.Parallel()

	const numTokens = 10
	seen := make(map[string]bool, numTokens)

	for i := 0; i < numTokens; i++ {
		tok, err := GenerateAdminToken()
		if err != nil {
			t.Fatalf("GenerateAdminToken failed: %v", err)
		}
		if seen[tok.Plaintext] {
			t.Errorf("Duplicate token at iteration %d", i)
		}
		seen[tok.Plaintext] = true
	}
}

func TestValidateTokenFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"valid", "ct_admin_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b", true},
		{"short secret", "ct_admin_4f8d2e1b", false},
		{"long secret", "ct_admin_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1bx", false},
		{"uppercase hex", "ct_admin_4F8D2E1B9C7A5F3D2E1B9C7A5F3D2E1B", false},
		{"wrong prefix", "pk_live_abc123_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := ValidateTokenFormat(tt.token); got != tt.want {
				t.Errorf("ValidateTokenFormat(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}
}
