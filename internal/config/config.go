package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	BackendRemote     = "remote"
	BackendSubprocess = "subprocess"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Checker engine. Exactly one of CheckerURL and CheckerCommand is used.
	CheckerBackend     string
	CheckerURL         string
	CheckerCommand     string
	CheckerLocale      string
	CheckerConcurrency int
	CheckerTimeout     time.Duration
	CheckerRetries     int

	// Document sessions
	SessionTTL       time.Duration
	MaxDocumentBytes int64

	// Disk cache for the command line tool
	CacheDir string

	// YAML policy table, locale and rule selection
	PolicyFile string
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		APIKey: os.Getenv("PROSECHECK_API_KEY"),

		CheckerBackend:     os.Getenv("CHECKER_BACKEND"),
		CheckerURL:         os.Getenv("CHECKER_URL"),
		CheckerCommand:     os.Getenv("CHECKER_COMMAND"),
		CheckerLocale:      envOr("CHECKER_LOCALE", "en-US"),
		CheckerConcurrency: envInt("CHECKER_CONCURRENCY", 4),
		CheckerTimeout:     envDuration("CHECKER_TIMEOUT", 10*time.Second),
		CheckerRetries:     envInt("CHECKER_RETRIES", 3),

		SessionTTL:       envDuration("SESSION_TTL", 30*time.Minute),
		MaxDocumentBytes: envInt64("MAX_DOCUMENT_BYTES", 4<<20), // 4MB

		CacheDir:   envOr("CACHE_DIR", defaultCacheDir()),
		PolicyFile: os.Getenv("PROSECHECK_POLICY_FILE"),
	}

	if cfg.CheckerConcurrency <= 0 {
		cfg.CheckerConcurrency = 4
	}
	if cfg.CheckerTimeout <= 0 {
		cfg.CheckerTimeout = 10 * time.Second
	}
	if cfg.CheckerRetries <= 0 {
		cfg.CheckerRetries = 1
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.MaxDocumentBytes <= 0 {
		cfg.MaxDocumentBytes = 4 << 20
	}

	return cfg
}

// Backend returns the checker backend to use. When CHECKER_BACKEND is unset
// it is inferred from whichever of CHECKER_URL and CHECKER_COMMAND is set.
func (c Config) Backend() (string, error) {
	switch c.CheckerBackend {
	case BackendRemote:
		if c.CheckerURL == "" {
			return "", fmt.Errorf("CHECKER_URL is required for the remote backend")
		}
		return BackendRemote, nil
	case BackendSubprocess:
		if c.CheckerCommand == "" {
			return "", fmt.Errorf("CHECKER_COMMAND is required for the subprocess backend")
		}
		return BackendSubprocess, nil
	case "":
	default:
		return "", fmt.Errorf("unknown CHECKER_BACKEND %q (want %s or %s)", c.CheckerBackend, BackendRemote, BackendSubprocess)
	}

	switch {
	case c.CheckerURL != "" && c.CheckerCommand != "":
		return "", fmt.Errorf("set exactly one of CHECKER_URL and CHECKER_COMMAND, or choose with CHECKER_BACKEND")
	case c.CheckerURL != "":
		return BackendRemote, nil
	case c.CheckerCommand != "":
		return BackendSubprocess, nil
	default:
		return "", fmt.Errorf("no checker configured: set CHECKER_URL or CHECKER_COMMAND")
	}
}

// Validate checks the settings shared by every front end.
func (c Config) Validate() error {
	if _, err := c.Backend(); err != nil {
		return err
	}
	if c.CheckerLocale == "" {
		return fmt.Errorf("CHECKER_LOCALE must not be empty")
	}
	return nil
}

// ValidateServer additionally requires the API key.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("PROSECHECK_API_KEY is required")
	}
	return nil
}

func defaultCacheDir() string {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "prosecheck")
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

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
