package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// minSaltLength is the shortest salt accepted from the environment.
const minSaltLength = 32

var hashSalt string

// InitHashSalt loads the salt used for hashing sender identifiers.
// It panics when LOG_HASH_SALT is missing or shorter than 32 characters.
func InitHashSalt() {
	salt := os.Getenv("LOG_HASH_SALT")
	if salt == "" {
		panic("LOG_HASH_SALT must be set")
	}
	if len(salt) < minSaltLength {
		panic(fmt.Sprintf("LOG_HASH_SALT must be at least %d characters", minSaltLength))
	}
	hashSalt = salt
}

// InitHashSaltForTesting sets the salt directly.
func InitHashSaltForTesting(salt string) {
	hashSalt = salt
}

// HashSender creates a privacy-preserving hash of a conversation identifier
// such as a phone number or chat ID.
func HashSender(senderID string) string {
	data := senderID + ":" + hashSalt
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:8]
}

// SanitizeDescription redacts a description but preserves length information for debugging.
func SanitizeDescription(desc string) string {
	if desc == "" {
		return "<empty>"
	}

	words := strings.Fields(desc)
	return fmt.Sprintf("<redacted: %d words, %d chars>", len(words), len(desc))
}

// SanitizeText is a general-purpose sanitizer for any user-provided text.
func SanitizeText(text string) string {
	if text == "" {
		return "<empty>"
	}

	if len(text) <= 10 {
		return fmt.Sprintf("<%d chars>", len(text))
	}

	return fmt.Sprintf("%s...<%d chars>", text[:3], len(text))
}
