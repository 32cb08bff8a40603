// Package redaction masks credentials before they reach the log.
// It knows the shapes of Discord bot tokens and database connection strings,
// and masks any literal secret registered at startup.
package redaction

import (
	"regexp"
	"strings"
	"sync"
)

// Config holds redaction configuration.
type Config struct {
	// Enabled controls whether redaction is active.
	Enabled bool

	// RedactTokens masks Discord bot tokens and bearer tokens.
	RedactTokens bool

	// RedactConnectionStrings masks passwords embedded in database URLs.
	RedactConnectionStrings bool

	// Secrets are literal values that are always masked.
	Secrets []string

	// Replacement is the string used to replace sensitive data.
	Replacement string
}

// DefaultConfig returns the default redaction configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:                 true,
		RedactTokens:            true,
		RedactConnectionStrings: true,
		Replacement:             "[REDACTED]",
	}
}

// Redactor provides sensitive data redaction capabilities.
type Redactor struct {
	config  Config
	secrets []string
	mu      sync.RWMutex
}

var (
	discordTokenPattern = regexp.MustCompile(`[MNO][A-Za-z\d_-]{23,27}\.[A-Za-z\d_-]{6}\.[A-Za-z\d_-]{27,}`)
	bearerPattern       = regexp.MustCompile(`(?i)(bot|bearer)\s+([A-Za-z0-9_\-\.]{20,})`)
	dsnPasswordPattern  = regexp.MustCompile(`(?i)([a-z][a-z0-9+.-]*://[^:/@\s]+:)([^@\s]+)(@)`)
	kvPasswordPattern   = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|[^\s]+)`)
)

// NewRedactor creates a new Redactor with the given configuration.
func NewRedactor(config Config) *Redactor {
	r := &Redactor{config: config}
	for _, s := range config.Secrets {
		r.addSecretLocked(s)
	}
	return r
}

// AddSecret registers a literal value that must never appear in output.
// Empty values are ignored.
func (r *Redactor) AddSecret(secret string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addSecretLocked(secret)
}

func (r *Redactor) addSecretLocked(secret string) {
	if strings.TrimSpace(secret) == "" {
		return
	}
	for _, s := range r.secrets {
		if s == secret {
			return
		}
	}
	r.secrets = append(r.secrets, secret)
}

// Redact applies all configured redaction rules to the input string.
func (r *Redactor) Redact(input string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.config.Enabled || input == "" {
		return input
	}

	result := input
	for _, s := range r.secrets {
		result = strings.ReplaceAll(result, s, r.config.Replacement)
	}

	if r.config.RedactConnectionStrings {
		result = dsnPasswordPattern.ReplaceAllString(result, "${1}"+r.config.Replacement+"${3}")
		result = kvPasswordPattern.ReplaceAllString(result, "${1}"+r.config.Replacement)
	}

	if r.config.RedactTokens {
		result = discordTokenPattern.ReplaceAllString(result, r.config.Replacement)
		result = bearerPattern.ReplaceAllString(result, "${1} "+r.config.Replacement)
	}

	return result
}

// RedactFields redacts sensitive values in a map.
func (r *Redactor) RedactFields(fields map[string]any) map[string]any {
	if !r.isEnabled() {
		return fields
	}

	result := make(map[string]any, len(fields))
	for k, v := range fields {
		if isSensitiveKey(strings.ToLower(k)) {
			result[k] = r.config.Replacement
			continue
		}
		switch val := v.(type) {
		case string:
			result[k] = r.Redact(val)
		case error:
			result[k] = r.Redact(val.Error())
		case map[string]any:
			result[k] = r.RedactFields(val)
		default:
			result[k] = v
		}
	}
	return result
}

func (r *Redactor) isEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Enabled
}

func isSensitiveKey(key string) bool {
	for _, sk := range []string{"password", "secret", "token", "credential", "database_url", "dsn"} {
		if strings.Contains(key, sk) {
			return true
		}
	}
	return false
}

// SetEnabled enables or disables redaction at runtime.
func (r *Redactor) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config.Enabled = enabled
}

var (
	globalMu       sync.RWMutex
	globalRedactor = NewRedactor(DefaultConfig())
)

func global() *Redactor {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalRedactor
}

// Redact applies redaction using the global redactor.
func Redact(input string) string {
	return global().Redact(input)
}

// RedactFields redacts fields using the global redactor.
func RedactFields(fields map[string]any) map[string]any {
	return global().RedactFields(fields)
}

// AddSecret registers a secret with the global redactor.
func AddSecret(secret string) {
	global().AddSecret(secret)
}

// SetGlobalConfig sets the configuration for the global redactor.
func SetGlobalConfig(config Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalRedactor = NewRedactor(config)
}
