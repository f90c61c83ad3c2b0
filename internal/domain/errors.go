package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Task errors
	ErrTaskNotFound    = errors.New("task not found")
	ErrAlreadyTerminal = errors.New("task already completed")
	ErrEmptyPrompts    = errors.New("prompt list must not be empty")

	// Key errors
	ErrNoKeysConfigured = errors.New("no API keys configured")
	ErrKeyNotFound      = errors.New("API key not found")
	ErrInvalidKeyFormat = errors.New("API key must start with \"AIza\" and be at least 30 characters")
	ErrKeyExists        = errors.New("API key already exists")

	// Upload errors
	ErrUnsupportedImage = errors.New("unsupported image format")
	ErrImageNotFound    = errors.New("image file not found")
)
