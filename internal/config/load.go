package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is not an error: defaults plus env are enough to run.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			cfg.TmpDir = ExpandHome(cfg.TmpDir)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.TmpDir = ExpandHome(cfg.TmpDir)
	return cfg, nil
}

// applyEnvOverrides overlays SIGCLAW_* env vars onto the config.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("SIGCLAW_ACCOUNT", &c.Account)
	envStr("SIGCLAW_API_URL", &c.APIURL)
	envStr("SIGCLAW_MODEL", &c.Model)
	envStr("SIGCLAW_CLAUDE_BINARY", &c.ClaudeBinary)
	envStr("SIGCLAW_SESSION_TTL", &c.SessionTTL)
	envStr("SIGCLAW_TMP_DIR", &c.TmpDir)
	envStr("SIGCLAW_STATS_ADDR", &c.StatsAddr)

	if v := os.Getenv("SIGCLAW_ALLOWED"); v != "" {
		c.Allowed = strings.Split(v, ",")
	}
	if v := os.Getenv("SIGCLAW_MAX_BUDGET"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.MaxBudgetUSD = f
		}
	}
	if v := os.Getenv("SIGCLAW_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v := os.Getenv("SIGCLAW_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DebounceMs = n
		}
	}
}
