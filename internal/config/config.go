// Package config handles configuration loading, validation, and management for gobengali.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete editor configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Service configures the analysis collaborator.
	Service ServiceConfig `toml:"service" json:"service" yaml:"service"`

	// Analysis configures the debounced analysis trigger.
	Analysis AnalysisConfig `toml:"analysis" json:"analysis" yaml:"analysis"`

	// Sync configures the view synchronization protocol.
	Sync SyncConfig `toml:"sync" json:"sync" yaml:"sync"`

	// Quota configures the usage tier and its daily caps.
	Quota QuotaConfig `toml:"quota" json:"quota" yaml:"quota"`

	// Transliteration configures the suggestion menu.
	Transliteration TransliterationConfig `toml:"transliteration" json:"transliteration" yaml:"transliteration"`

	// Storage configures quota persistence.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// ServiceConfig holds collaborator client configuration.
type ServiceConfig struct {
	// BaseURL is the API root, e.g. http://localhost:8000/api.
	BaseURL string `toml:"base_url" json:"base_url" yaml:"base_url"`

	// TimeoutMs bounds a single request.
	TimeoutMs int `toml:"timeout_ms" json:"timeout_ms" yaml:"timeout_ms"`

	// MaxConns caps concurrent connections to the service host.
	MaxConns int `toml:"max_conns" json:"max_conns" yaml:"max_conns"`
}

// AnalysisConfig holds analysis trigger configuration.
type AnalysisConfig struct {
	// DebounceMs is the quiet period after the last edit before analysis.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`

	// MinLength is the minimum number of characters worth analyzing.
	MinLength int `toml:"min_length" json:"min_length" yaml:"min_length"`

	// Script is the writing system a buffer must contain to be analyzed.
	Script string `toml:"script" json:"script" yaml:"script"`

	// LanguageHint is sent with every request.
	LanguageHint string `toml:"language_hint" json:"language_hint" yaml:"language_hint"`

	CheckGrammar  bool `toml:"check_grammar" json:"check_grammar" yaml:"check_grammar"`
	CheckSpelling bool `toml:"check_spelling" json:"check_spelling" yaml:"check_spelling"`

	// DetectLanguage enables the language detection trigger.
	DetectLanguage   bool `toml:"detect_language" json:"detect_language" yaml:"detect_language"`
	DetectDebounceMs int  `toml:"detect_debounce_ms" json:"detect_debounce_ms" yaml:"detect_debounce_ms"`
	DetectMinLength  int  `toml:"detect_min_length" json:"detect_min_length" yaml:"detect_min_length"`
}

// SyncConfig holds view synchronization configuration.
type SyncConfig struct {
	// CooldownMs is how long change events are suppressed after a push.
	CooldownMs int `toml:"cooldown_ms" json:"cooldown_ms" yaml:"cooldown_ms"`

	// ReoffsetAnchors shifts the remaining corrections after a single accept.
	ReoffsetAnchors bool `toml:"reoffset_anchors" json:"reoffset_anchors" yaml:"reoffset_anchors"`

	// ReanalyzeAfterCooldown schedules analysis when a cooldown ends even
	// if nothing was typed during it.
	ReanalyzeAfterCooldown bool `toml:"reanalyze_after_cooldown" json:"reanalyze_after_cooldown" yaml:"reanalyze_after_cooldown"`
}

// QuotaConfig holds usage tier configuration.
type QuotaConfig struct {
	User         string `toml:"user" json:"user" yaml:"user"`
	Tier         string `toml:"tier" json:"tier" yaml:"tier"`
	DailyWords   int    `toml:"daily_words" json:"daily_words" yaml:"daily_words"`
	DailyAccepts int    `toml:"daily_accepts" json:"daily_accepts" yaml:"daily_accepts"`

	// WarnPercent is the usage percentage at which the limit banner shows.
	WarnPercent int `toml:"warn_percent" json:"warn_percent" yaml:"warn_percent"`
}

// TransliterationConfig holds suggestion menu configuration.
type TransliterationConfig struct {
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Lookback is how many characters before the caret are searched for a token.
	Lookback int `toml:"lookback" json:"lookback" yaml:"lookback"`

	MaxSuggestions int `toml:"max_suggestions" json:"max_suggestions" yaml:"max_suggestions"`

	// Offline skips the service and uses local suggestions only.
	Offline bool `toml:"offline" json:"offline" yaml:"offline"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// Type is the storage backend type: "sqlite", "file" or "memory".
	Type string `toml:"type" json:"type" yaml:"type"`

	// Path is the database file (sqlite) or directory (file).
	Path string `toml:"path" json:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is where to write logs: "stdout", "stderr", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	MaxSizeMB  int  `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int  `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int  `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool `toml:"compress" json:"compress" yaml:"compress"`

	// LogContent writes document text to the log instead of its length.
	LogContent bool `toml:"log_content" json:"log_content" yaml:"log_content"`
}

// MetricsConfig holds Prometheus endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Listen  string `toml:"listen" json:"listen" yaml:"listen"`
}

// DefaultConfig returns a configuration with the production editor's defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Version: Version,
		Service: ServiceConfig{
			BaseURL:   "http://localhost:8000/api",
			TimeoutMs: 30000,
			MaxConns:  16,
		},
		Analysis: AnalysisConfig{
			DebounceMs:       1500,
			MinLength:        5,
			Script:           "bengali",
			LanguageHint:     "bn",
			CheckGrammar:     true,
			CheckSpelling:    true,
			DetectLanguage:   true,
			DetectDebounceMs: 1000,
			DetectMinLength:  10,
		},
		Sync: SyncConfig{
			CooldownMs: 3000,
		},
		Quota: QuotaConfig{
			User:         "default",
			Tier:         "free",
			DailyWords:   500,
			DailyAccepts: 15,
			WarnPercent:  80,
		},
		Transliteration: TransliterationConfig{
			Enabled:        true,
			Lookback:       50,
			MaxSuggestions: 4,
		},
		Storage: StorageConfig{
			Type: "sqlite",
			Path: filepath.Join(dir, "gobengali.db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "gobengali.log"),
			MaxSizeMB:  20,
			MaxBackups: 5,
			MaxAgeDays: 14,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the configured files live in.
func (c *Config) EnsureDirectories() error {
	var dirs []string
	switch c.Storage.Type {
	case "sqlite":
		dirs = append(dirs, filepath.Dir(expandPath(c.Storage.Path)))
	case "file":
		dirs = append(dirs, expandPath(c.Storage.Path))
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(expandPath(c.Logging.FilePath)))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DataDir returns the base gobengali data directory.
// GOBENGALI_DATA_DIR overrides the platform default.
func DataDir() string {
	if envDir := os.Getenv("GOBENGALI_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with GOBENGALI_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("GOBENGALI_SERVICE_URL"); v != "" {
		c.Service.BaseURL = v
	}
	if v := os.Getenv("GOBENGALI_SERVICE_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Service.TimeoutMs = ms
		}
	}

	if v := os.Getenv("GOBENGALI_USER"); v != "" {
		c.Quota.User = v
	}
	if v := os.Getenv("GOBENGALI_TIER"); v != "" {
		c.Quota.Tier = strings.ToLower(v)
	}

	if v := os.Getenv("GOBENGALI_STORAGE_TYPE"); v != "" {
		c.Storage.Type = strings.ToLower(v)
	}
	if v := os.Getenv("GOBENGALI_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}

	if v := os.Getenv("GOBENGALI_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("GOBENGALI_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}

	if v := os.Getenv("GOBENGALI_TRANSLIT_OFFLINE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Transliteration.Offline = b
		}
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &Config{
		Version:         c.Version,
		Service:         c.Service,
		Analysis:        c.Analysis,
		Sync:            c.Sync,
		Quota:           c.Quota,
		Transliteration: c.Transliteration,
		Storage:         c.Storage,
		Logging:         c.Logging,
		Metrics:         c.Metrics,
	}
}

// Encode writes the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var b strings.Builder
	b.WriteString("# gobengali configuration\n\n")
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return nil, fmt.Errorf("encode TOML: %w", err)
	}
	return []byte(b.String()), nil
}

// Timeout returns TimeoutMs as a duration.
func (s ServiceConfig) Timeout() time.Duration {
	return ms(s.TimeoutMs)
}

// Debounce returns DebounceMs as a duration.
func (a AnalysisConfig) Debounce() time.Duration {
	return ms(a.DebounceMs)
}

// DetectDebounce returns DetectDebounceMs as a duration.
func (a AnalysisConfig) DetectDebounce() time.Duration {
	return ms(a.DetectDebounceMs)
}

// Cooldown returns CooldownMs as a duration.
func (s SyncConfig) Cooldown() time.Duration {
	return ms(s.CooldownMs)
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
