// Package config handles platform configuration
package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/scribeflow/platform/internal/resilience"
)

// Config is the mutable application configuration, loaded at startup and
// adjustable through the settings endpoint. Pipelines never read it live:
// they take a Settings snapshot at the start of each invocation.
type Config struct {
	mu sync.RWMutex

	HTTPAddr string

	// Provider endpoints and credential
	ASRURL string
	OCRURL string
	LLMURL string
	APIKey string

	// Model identifiers per task
	ASRModel  string
	OCRModel  string
	TextModel string

	// Enrichment behavior
	EnrichEnabled bool
	MaxRetries    int // attempts per enrichment task, clamped to 1..5
	BackoffBaseMs int

	// Note composition toggles
	IncludeOCRInNote  bool
	CombineAudioOCR   bool
	KeepOriginalAudio bool

	// Storage
	VaultDir string

	// Recording
	SampleRate int
}

// Settings is the immutable per-invocation snapshot consumed by a pipeline
// run. A settings change mid-flight cannot produce a torn read across the
// parallel enrichment tasks.
type Settings struct {
	ASRModel  string
	OCRModel  string
	TextModel string

	EnrichEnabled bool
	Retry         resilience.Policy

	IncludeOCRInNote  bool
	CombineAudioOCR   bool
	KeepOriginalAudio bool
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8765"),
		ASRURL:            getEnv("ASR_URL", "https://api.example.com/v1/audio/transcriptions"),
		OCRURL:            getEnv("OCR_URL", "https://api.example.com/v1/images/text"),
		LLMURL:            getEnv("LLM_URL", "https://api.example.com/v1/chat/completions"),
		APIKey:            getEnv("API_KEY", ""),
		ASRModel:          getEnv("ASR_MODEL", "whisper-1"),
		OCRModel:          getEnv("OCR_MODEL", "vision-1"),
		TextModel:         getEnv("TEXT_MODEL", "gpt-4o-mini"),
		EnrichEnabled:     getEnvBool("ENRICH_ENABLED", true),
		MaxRetries:        clampRetries(getEnvInt("MAX_RETRIES", resilience.DefaultMaxAttempts)),
		BackoffBaseMs:     getEnvInt("BACKOFF_BASE_MS", 500),
		IncludeOCRInNote:  getEnvBool("INCLUDE_OCR_IN_NOTE", true),
		CombineAudioOCR:   getEnvBool("COMBINE_AUDIO_OCR", true),
		KeepOriginalAudio: getEnvBool("KEEP_ORIGINAL_AUDIO", false),
		VaultDir:          getEnv("VAULT_DIR", "./vault"),
		SampleRate:        getEnvInt("SAMPLE_RATE", 16000),
	}
}

// Snapshot captures the current settings as an immutable value.
func (c *Config) Snapshot() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()

	backoff := time.Duration(c.BackoffBaseMs) * time.Millisecond
	if backoff < 0 {
		backoff = 0
	}
	return Settings{
		ASRModel:          c.ASRModel,
		OCRModel:          c.OCRModel,
		TextModel:         c.TextModel,
		EnrichEnabled:     c.EnrichEnabled,
		Retry:             resilience.Policy{MaxAttempts: clampRetries(c.MaxRetries), BackoffBase: backoff},
		IncludeOCRInNote:  c.IncludeOCRInNote,
		CombineAudioOCR:   c.CombineAudioOCR,
		KeepOriginalAudio: c.KeepOriginalAudio,
	}
}

// SetEnrichEnabled toggles enrichment for subsequent captures.
func (c *Config) SetEnrichEnabled(enabled bool) {
	c.mu.Lock()
	c.EnrichEnabled = enabled
	c.mu.Unlock()
}

// SetMaxRetries updates the per-task attempt bound for subsequent captures.
func (c *Config) SetMaxRetries(n int) {
	c.mu.Lock()
	c.MaxRetries = clampRetries(n)
	c.mu.Unlock()
}

func clampRetries(n int) int {
	if n < resilience.MinAttempts {
		return resilience.MinAttempts
	}
	if n > resilience.MaxAttempts {
		return resilience.MaxAttempts
	}
	return n
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}
