package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gobengali/internal/text"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is(err, ErrInvalidConfig) match any validation failure.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig && len(e) > 0
}

// Fields returns the names of the offending fields.
func (e ValidationErrors) Fields() []string {
	out := make([]string, len(e))
	for i, err := range e {
		out[i] = err.Field
	}
	return out
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateService(&c.Service)...)
	errs = append(errs, validateAnalysis(&c.Analysis)...)
	errs = append(errs, validateSync(&c.Sync)...)
	errs = append(errs, validateQuota(&c.Quota)...)
	errs = append(errs, validateTransliteration(&c.Transliteration)...)
	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateService(s *ServiceConfig) ValidationErrors {
	var errs ValidationErrors

	if !isValidURL(s.BaseURL) {
		errs = append(errs, ValidationError{
			Field:   "service.base_url",
			Message: fmt.Sprintf("invalid URL: %q (must be http or https)", s.BaseURL),
		})
	}
	if s.TimeoutMs < 100 {
		errs = append(errs, ValidationError{
			Field:   "service.timeout_ms",
			Message: "timeout must be at least 100ms",
		})
	}
	if s.MaxConns < 1 {
		errs = append(errs, ValidationError{
			Field:   "service.max_conns",
			Message: "max connections must be at least 1",
		})
	}

	return errs
}

func validateAnalysis(a *AnalysisConfig) ValidationErrors {
	var errs ValidationErrors

	if a.DebounceMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "analysis.debounce_ms",
			Message: "debounce cannot be negative",
		})
	}
	if a.MinLength < 0 {
		errs = append(errs, ValidationError{
			Field:   "analysis.min_length",
			Message: "minimum length cannot be negative",
		})
	}
	if _, ok := text.LookupScript(a.Script); a.Script != "" && !ok {
		errs = append(errs, ValidationError{
			Field:   "analysis.script",
			Message: fmt.Sprintf("unknown script: %s", a.Script),
		})
	}
	if !a.CheckGrammar && !a.CheckSpelling {
		errs = append(errs, ValidationError{
			Field:   "analysis.check_spelling",
			Message: "at least one of check_grammar and check_spelling must be enabled",
		})
	}
	if a.DetectLanguage {
		if a.DetectDebounceMs < 0 {
			errs = append(errs, ValidationError{
				Field:   "analysis.detect_debounce_ms",
				Message: "debounce cannot be negative",
			})
		}
		if a.DetectMinLength < 1 {
			errs = append(errs, ValidationError{
				Field:   "analysis.detect_min_length",
				Message: "minimum length must be at least 1",
			})
		}
	}

	return errs
}

func validateSync(s *SyncConfig) ValidationErrors {
	var errs ValidationErrors

	if s.CooldownMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "sync.cooldown_ms",
			Message: "cooldown cannot be negative",
		})
	}
	if s.CooldownMs > 60000 {
		errs = append(errs, ValidationError{
			Field:   "sync.cooldown_ms",
			Message: "cooldown cannot exceed 60s",
		})
	}

	return errs
}

func validateQuota(q *QuotaConfig) ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(q.User) == "" {
		errs = append(errs, ValidationError{
			Field:   "quota.user",
			Message: "user is required",
		})
	}
	switch q.Tier {
	case "free", "pro":
	default:
		errs = append(errs, ValidationError{
			Field:   "quota.tier",
			Message: fmt.Sprintf("invalid tier: %s (valid: free, pro)", q.Tier),
		})
	}
	if q.DailyWords < 0 {
		errs = append(errs, ValidationError{
			Field:   "quota.daily_words",
			Message: "daily word limit cannot be negative",
		})
	}
	if q.DailyAccepts < 0 {
		errs = append(errs, ValidationError{
			Field:   "quota.daily_accepts",
			Message: "daily accept limit cannot be negative",
		})
	}
	if q.WarnPercent < 1 || q.WarnPercent > 100 {
		errs = append(errs, ValidationError{
			Field:   "quota.warn_percent",
			Message: "warn percent must be between 1 and 100",
		})
	}

	return errs
}

func validateTransliteration(t *TransliterationConfig) ValidationErrors {
	var errs ValidationErrors

	if !t.Enabled {
		return errs
	}
	if t.Lookback < 1 {
		errs = append(errs, ValidationError{
			Field:   "transliteration.lookback",
			Message: "lookback must be at least 1",
		})
	}
	if t.MaxSuggestions < 1 || t.MaxSuggestions > 20 {
		errs = append(errs, ValidationError{
			Field:   "transliteration.max_suggestions",
			Message: "max suggestions must be between 1 and 20",
		})
	}

	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors

	switch s.Type {
	case "sqlite", "file", "memory":
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.type",
			Message: fmt.Sprintf("invalid storage type: %s (valid: sqlite, file, memory)", s.Type),
		})
	}

	if s.Type == "sqlite" && s.Path != "" {
		// Check parent directory exists or can be created
		dir := filepath.Dir(expandPath(s.Path))
		if dir != "" && dir != "." {
			if info, err := os.Stat(dir); err != nil {
				if !os.IsNotExist(err) {
					errs = append(errs, ValidationError{
						Field:   "storage.path",
						Message: fmt.Sprintf("cannot access directory: %v", err),
					})
				}
			} else if !info.IsDir() {
				errs = append(errs, ValidationError{
					Field:   "storage.path",
					Message: fmt.Sprintf("parent path is not a directory: %s", dir),
				})
			}
		}
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	var errs ValidationErrors

	if !m.Enabled {
		return errs
	}
	if _, _, err := net.SplitHostPort(m.Listen); err != nil {
		errs = append(errs, ValidationError{
			Field:   "metrics.listen",
			Message: fmt.Sprintf("invalid listen address: %v", err),
		})
	}

	return errs
}

// Helper functions

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func isValidURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
