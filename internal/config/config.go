// Package config loads and watches the sigclaw gateway configuration.
// Config comes from a JSON5 file overlaid with SIGCLAW_* env vars; env
// takes precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nextlevelbuilder/sigclaw/internal/ratelimit"
)

// Config is the root configuration for the sigclaw gateway.
type Config struct {
	// Account is our own transport account identifier (e.g. "+4479...").
	Account string `json:"account"`
	// APIURL points at an externally managed signal-cli-api. Empty means
	// sigclaw spawns and manages its own instance.
	APIURL string `json:"api_url,omitempty"`
	// Port is the preferred port for a managed signal-cli-api (0 = any).
	Port int `json:"port,omitempty"`
	// Allowed lists sender IDs permitted to talk to the backend. Empty
	// defaults to just the account itself.
	Allowed []string `json:"allowed,omitempty"`

	Model        string  `json:"model"`
	MaxBudgetUSD float64 `json:"max_budget_usd"`
	ClaudeBinary string  `json:"claude_binary,omitempty"`

	// DebounceMs is the quiet window merging message bursts; 0 disables.
	DebounceMs int `json:"debounce_ms"`
	// SessionTTL is a Go duration string bounding idle session lifetime
	// (e.g. "12h"); empty disables expiry.
	SessionTTL string `json:"session_ttl,omitempty"`

	RateLimit *ratelimit.Config `json:"rate_limit,omitempty"`

	// MaxMsgLen is the transport message length before chunking.
	MaxMsgLen int `json:"max_msg_len"`
	// TruncationThreshold flags backend replies at or above this length
	// as likely cut short. Advisory.
	TruncationThreshold int `json:"truncation_threshold"`
	// ChunkDelayMs is the pause between multi-part sends.
	ChunkDelayMs int `json:"chunk_delay_ms"`

	// TmpDir receives downloaded attachments.
	TmpDir string `json:"tmp_dir,omitempty"`

	// StatsAddr is the listen address of the read-only stats endpoint;
	// empty disables it.
	StatsAddr string `json:"stats_addr,omitempty"`

	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
}

// TelemetryConfig configures OpenTelemetry OTLP trace export. When
// enabled, each backend invocation is wrapped in a span.
type TelemetryConfig struct {
	Enabled  bool   `json:"enabled,omitempty"`
	Endpoint string `json:"endpoint,omitempty"` // e.g. "localhost:4317"
	Protocol string `json:"protocol,omitempty"` // "grpc" (default) or "http"
	Insecure bool   `json:"insecure,omitempty"`
}

// Default returns a Config with the stock defaults.
func Default() *Config {
	return &Config{
		Model:               "opus",
		MaxBudgetUSD:        5.0,
		ClaudeBinary:        "claude",
		Port:                8080,
		DebounceMs:          3000,
		MaxMsgLen:           4000,
		TruncationThreshold: 3500,
		ChunkDelayMs:        200,
		TmpDir:              "/tmp/sigclaw",
		StatsAddr:           "127.0.0.1:8089",
	}
}

// Validate checks startup-time requirements. Anything failing here is
// fatal to the process.
func (c *Config) Validate() error {
	if c.Account == "" {
		return fmt.Errorf("account is required (config or SIGCLAW_ACCOUNT)")
	}
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	if c.MaxMsgLen <= 0 {
		return fmt.Errorf("max_msg_len must be positive, got %d", c.MaxMsgLen)
	}
	if _, err := c.SessionTTLDuration(); err != nil {
		return err
	}
	return nil
}

// AllowedSenders returns the effective allow list: the configured list,
// or just our own account when nothing is configured.
func (c *Config) AllowedSenders() []string {
	out := make([]string, 0, len(c.Allowed))
	for _, a := range c.Allowed {
		if s := strings.TrimSpace(a); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 && c.Account != "" {
		out = append(out, c.Account)
	}
	return out
}

// SessionTTLDuration parses the session TTL; zero when unset.
func (c *Config) SessionTTLDuration() (time.Duration, error) {
	if c.SessionTTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("parse session_ttl: %w", err)
	}
	return d, nil
}

// DebounceWindow returns the debounce quiet window as a duration.
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// ChunkDelay returns the inter-part send delay as a duration.
func (c *Config) ChunkDelay() time.Duration {
	return time.Duration(c.ChunkDelayMs) * time.Millisecond
}

// ExpandHome expands a leading "~/" to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
