// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// MaxUploadBytes bounds one audio or image upload.
	MaxUploadBytes = 32 << 20

	// MaxSettingsBytes bounds the settings request body.
	MaxSettingsBytes = 4 << 10

	// Per-connection WebSocket rate limiting
	RateLimitMessages = 30
	RateLimitWindow   = time.Second
)
