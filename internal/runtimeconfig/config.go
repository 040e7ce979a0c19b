package runtimeconfig

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var ErrBaseURLRequired = errors.New("blocksync config: sync base URL is required")
var ErrBaseURLInvalid = errors.New("blocksync config: sync base URL must be an absolute http(s) URL")
var ErrDebounceDelayInvalid = errors.New("blocksync config: debounce delay must be positive")
var ErrRequestTimeoutInvalid = errors.New("blocksync config: request timeout must be zero or positive")
var ErrFlushTimeoutInvalid = errors.New("blocksync config: flush timeout must be positive")
var ErrFlushAttemptsInvalid = errors.New("blocksync config: flush attempts must be at least one")

// ErrPolicyFieldConflict reports a field listed under more than one merge rule.
var ErrPolicyFieldConflict = errors.New("blocksync config: policy field listed under more than one rule")

var ErrServerAddrRequired = errors.New("blocksync config: server address is required")
var ErrStorageProviderUnknown = errors.New("blocksync config: storage provider is invalid")
var ErrStorageDSNRequired = errors.New("blocksync config: storage DSN is required for the bun provider")
var ErrCacheTTLInvalid = errors.New("blocksync config: cache TTL must be positive when the cache is enabled")
var ErrRefreshScheduleInvalid = errors.New("blocksync config: refresh schedule is invalid")
var ErrLoggingProviderRequired = errors.New("blocksync config: logging provider is required when logging feature is enabled")
var ErrLoggingProviderUnknown = errors.New("blocksync config: logging provider is invalid")
var ErrLoggingLevelInvalid = errors.New("blocksync config: logging level is invalid")
var ErrLoggingFormatInvalid = errors.New("blocksync config: logging format is invalid")

// Config aggregates the settings of the editing client and the reference
// backend. The CLI fills it from flags; library hosts build it in code.
type Config struct {
	Sync     SyncConfig
	Policy   PolicyConfig
	Server   ServerConfig
	Storage  StorageConfig
	Cache    CacheConfig
	Refresh  RefreshConfig
	Logging  LoggingConfig
	Features Features
}

// SyncConfig configures the editing sessions and their sync client.
type SyncConfig struct {
	BaseURL          string
	DebounceDelay    time.Duration
	RequestTimeout   time.Duration
	FlushTimeout     time.Duration
	FlushMaxAttempts int
}

// PolicyConfig lists the fields that do not follow the default deep merge.
// An empty policy means reconcile.DefaultPolicy.
type PolicyConfig struct {
	Assign        []string
	ReplaceObject []string
	AssignArray   []string
}

// ServerConfig configures the reference backend.
type ServerConfig struct {
	Addr     string
	BasePath string
}

// StorageConfig selects the backend repositories. Provider is "memory" or
// "bun"; the bun provider picks sqlite or postgres from the DSN.
type StorageConfig struct {
	Provider string
	DSN      string
}

// CacheConfig captures cache behaviour toggles.
type CacheConfig struct {
	Enabled    bool
	DefaultTTL time.Duration
}

// RefreshConfig holds the cron spec of the periodic baseline refresh. Empty
// disables it.
type RefreshConfig struct {
	Schedule string
}

// LoggingConfig captures provider-specific options for runtime logging.
type LoggingConfig struct {
	Provider  string
	Level     string
	Format    string
	AddSource bool
	Focus     []string
}

// Features toggles optional functionality.
type Features struct {
	Logger bool
	// Live follows the page event stream of the backend.
	Live bool
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() Config {
	return Config{
		Sync: SyncConfig{
			BaseURL:          "http://localhost:8080/api",
			DebounceDelay:    300 * time.Millisecond,
			RequestTimeout:   10 * time.Second,
			FlushTimeout:     5 * time.Second,
			FlushMaxAttempts: 3,
		},
		Server: ServerConfig{
			Addr:     ":8080",
			BasePath: "/api",
		},
		Storage: StorageConfig{
			Provider: "memory",
		},
		Cache: CacheConfig{
			Enabled:    false,
			DefaultTTL: time.Minute,
		},
		Logging: LoggingConfig{
			Provider: "console",
			Level:    "info",
			Format:   "",
		},
	}
}

// Validate performs high-level consistency checks.
func (cfg Config) Validate() error {
	if err := cfg.Sync.validate(); err != nil {
		return err
	}
	if err := cfg.Policy.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return ErrServerAddrRequired
	}
	switch normalizeProvider(cfg.Storage.Provider) {
	case "memory":
	case "bun":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return ErrStorageDSNRequired
		}
	default:
		return fmt.Errorf("%w: %s", ErrStorageProviderUnknown, cfg.Storage.Provider)
	}
	if cfg.Cache.Enabled && cfg.Cache.DefaultTTL <= 0 {
		return ErrCacheTTLInvalid
	}
	if spec := strings.TrimSpace(cfg.Refresh.Schedule); spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%w: %v", ErrRefreshScheduleInvalid, err)
		}
	}
	if cfg.Features.Logger {
		provider := normalizeProvider(cfg.Logging.Provider)
		if provider == "" {
			return ErrLoggingProviderRequired
		}
		if !isSupportedProvider(provider) {
			return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, provider)
		}
		if level := strings.TrimSpace(cfg.Logging.Level); level != "" && !isSupportedLevel(level) {
			return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
		}
		if provider == "gologger" {
			if format := strings.TrimSpace(cfg.Logging.Format); format != "" && !isSupportedFormat(format) {
				return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, format)
			}
		}
	}
	return nil
}

func (s SyncConfig) validate() error {
	base := strings.TrimSpace(s.BaseURL)
	if base == "" {
		return ErrBaseURLRequired
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("%w: %s", ErrBaseURLInvalid, base)
	}
	if s.DebounceDelay <= 0 {
		return ErrDebounceDelayInvalid
	}
	if s.RequestTimeout < 0 {
		return ErrRequestTimeoutInvalid
	}
	if s.FlushTimeout <= 0 {
		return ErrFlushTimeoutInvalid
	}
	if s.FlushMaxAttempts < 1 {
		return ErrFlushAttemptsInvalid
	}
	return nil
}

func (p PolicyConfig) validate() error {
	seen := map[string]bool{}
	for _, group := range [][]string{p.Assign, p.ReplaceObject, p.AssignArray} {
		local := map[string]bool{}
		for _, field := range group {
			name := strings.TrimSpace(field)
			if name == "" || local[name] {
				continue
			}
			if seen[name] {
				return fmt.Errorf("%w: %s", ErrPolicyFieldConflict, name)
			}
			local[name] = true
			seen[name] = true
		}
	}
	return nil
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

func isSupportedProvider(provider string) bool {
	switch provider {
	case "console", "gologger":
		return true
	default:
		return false
	}
}

func isSupportedLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
		return true
	default:
		return false
	}
}

func isSupportedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json", "console", "pretty":
		return true
	default:
		return false
	}
}
