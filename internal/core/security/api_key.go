package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// KeyPrefix marks every issued key so leaked keys are easy to grep for.
const KeyPrefix = "db_live_"

// GenerateAPIKey creates a secure random API key and its SHA256 hash.
//
// Returns:
//   - realKey: the key shown to the account holder once (e.g. "db_live_abc123...")
//   - keyHash: SHA256 hash to store in the database
//   - error: any error during random byte generation
func GenerateAPIKey() (string, string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	realKey := KeyPrefix + hex.EncodeToString(bytes)
	return realKey, HashKey(realKey), nil
}

// HashKey is the lookup hash stored for a key. We never store or compare
// plain keys.
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
