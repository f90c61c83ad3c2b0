package domain

import "strings"

// Gemini API keys are opaque, but every real one starts with this
// prefix and is comfortably longer than 30 characters.
const (
	keyPrefix    = "AIza"
	keyMinLength = 30
)

// ValidateKey performs the shape check applied when a key is added.
func ValidateKey(key string) error {
	if !strings.HasPrefix(key, keyPrefix) || len(key) < keyMinLength {
		return ErrInvalidKeyFormat
	}
	return nil
}

// KeySuffix returns the last 8 characters of a key, the only form a
// key ever appears in logs and task results.
func KeySuffix(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[len(key)-8:]
}
