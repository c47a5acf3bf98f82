package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// Token format: ct_admin_{secret}
// Example: ct_admin_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const (
	TokenPrefix    = "ct_admin_"
	TokenSecretLen = 32 // hex encoded 16 bytes
)

var (
	// ErrInvalidTokenFormat indicates the token format is invalid.
	ErrInvalidTokenFormat = errors.New("invalid admin token format")

	tokenFormatRegex = regexp.MustCompile(`^ct_admin_[a-f0-9]{32}$`)
)

// GeneratedToken is a new admin token. Plaintext is shown once; Hash goes
// into ADMIN_TOKEN_HASH.
type GeneratedToken struct {
	Plaintext string
	Hash      string
}

// GenerateAdminToken creates a random admin token and its hash.
func GenerateAdminToken() (*GeneratedToken, error) {
	secret := make([]byte, TokenSecretLen/2)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	plaintext := TokenPrefix + hex.EncodeToString(secret)

	hash, err := HashToken(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash token: %w", err)
	}

	return &GeneratedToken{Plaintext: plaintext, Hash: hash}, nil
}

// ValidateTokenFormat checks if token looks like a generated admin token.
// Operators may also hash their own tokens, so this is advisory.
func ValidateTokenFormat(token string) bool {
	return tokenFormatRegex.MatchString(token)
}
