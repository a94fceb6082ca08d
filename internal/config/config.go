package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/docreader/internal/chunker"
	"github.com/dgallion1/docreader/internal/hotkey"
	"github.com/dgallion1/docreader/internal/textenc"
)

const defaultMaxDocumentBytes = 200 << 20

type Config struct {
	Port string

	// Auth
	APIKey string

	// Pagination and ingestion
	LineSize              int
	MinEncodingConfidence float64
	MaxDocumentBytes      int64

	// Pathstore connection. An empty URL keeps positions in memory.
	PathstoreURL    string
	PathstoreAPIKey string

	// Position writer
	PersistWorkers int
	PersistTimeout time.Duration

	// PDF
	PDFFallbackPdftotext bool

	// Hotkey accelerators, one per action.
	Shortcuts map[hotkey.Action]string
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("DOCREADER_API_KEY"),

		LineSize:              envInt("LINE_SIZE", chunker.DefaultLineSize),
		MinEncodingConfidence: envFloat("MIN_ENCODING_CONFIDENCE", textenc.DefaultMinConfidence),
		MaxDocumentBytes:      envInt64("MAX_DOCUMENT_BYTES", defaultMaxDocumentBytes),

		PathstoreURL:    os.Getenv("PATHSTORE_URL"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),

		PersistWorkers: envInt("PERSIST_WORKERS", 2),
		PersistTimeout: envDuration("PERSIST_TIMEOUT", 10*time.Second),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		Shortcuts: shortcuts(runtime.GOOS),
	}

	if cfg.MinEncodingConfidence <= 0 || cfg.MinEncodingConfidence > 1 {
		cfg.MinEncodingConfidence = textenc.DefaultMinConfidence
	}
	if cfg.MaxDocumentBytes <= 0 {
		cfg.MaxDocumentBytes = defaultMaxDocumentBytes
	}
	if cfg.PersistWorkers <= 0 {
		cfg.PersistWorkers = 2
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 10 * time.Second
	}

	return cfg
}

// ShortcutEnv names the variable that overrides the accelerator for action,
// e.g. NEXT_LINE_SHORTCUT.
func ShortcutEnv(action hotkey.Action) string {
	return strings.ToUpper(string(action)) + "_SHORTCUT"
}

func shortcuts(goos string) map[hotkey.Action]string {
	out := hotkey.DefaultBindings(goos)
	for _, action := range hotkey.Actions {
		out[action] = envOr(ShortcutEnv(action), out[action])
	}
	return out
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("DOCREADER_API_KEY is required")
	}
	if c.LineSize <= 0 {
		return fmt.Errorf("LINE_SIZE must be positive, got %d", c.LineSize)
	}
	if c.PathstoreURL != "" && c.PathstoreAPIKey == "" {
		return fmt.Errorf("PATHSTORE_API_KEY is required when PATHSTORE_URL is set")
	}
	for action, accel := range c.Shortcuts {
		if _, err := hotkey.Normalize(accel); err != nil {
			return fmt.Errorf("%s: %w", ShortcutEnv(action), err)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
