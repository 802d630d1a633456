package restclient

import "time"

// Client configuration constants
const (
	DefaultTimeout = 60 * time.Second

	// Response size bounds
	MaxResponseBytes = 4 << 20 // 4 MiB
	ErrorBodyPreview = 512

	// Sampling temperature for enrichment completions
	enrichTemperature = 0.3
)
