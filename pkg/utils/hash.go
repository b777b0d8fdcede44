package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashBytes returns the hex SHA-256 digest of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
