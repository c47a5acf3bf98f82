package kv

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashIP creates a truncated SHA256 hash of an IP address.
// State keys never carry the raw address.
func HashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8]) // 16 hex chars
}
