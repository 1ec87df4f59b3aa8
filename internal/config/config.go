// Package config loads the daemon's configuration from environment
// variables with an optional YAML overlay file, following the
// agent's loadConfig() idiom: env vars first, parsed into typed fields,
// with sane defaults for anything unset.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oomkilld/oomkilld/internal/killer"
)

// Config is the union of KillerConfig and the ambient settings this
// expansion adds: status server address, audit DSN, OTLP endpoint.
type Config struct {
	Killer killer.Config

	StatusAddr   string
	AuditDSN     string
	OTLPEndpoint string
}

// Default matches spec.md §3/§6 plus SPEC_FULL.md §6's additions.
func Default() Config {
	return Config{
		Killer:       killer.DefaultConfig(),
		StatusAddr:   "127.0.0.1:9110",
		AuditDSN:     "",
		OTLPEndpoint: "",
	}
}

// fileOverlay is the subset of Config fields a YAML overlay file may
// set. It is thin by design: it never carries decision logic, only
// values that could equally have come from an environment variable.
type fileOverlay struct {
	StatusAddr              string   `yaml:"status_addr"`
	AuditDSN                string   `yaml:"audit_dsn"`
	OTLPEndpoint            string   `yaml:"otlp_endpoint"`
	SystemDenylist          []string `yaml:"system_denylist"`
	SystemShortUptime       string   `yaml:"system_short_uptime"`
	MinFreeRatio            *float64 `yaml:"min_free_ratio"`
	MaxSwapRatio            *float64 `yaml:"max_swap_ratio"`
	PressureDuration        string   `yaml:"pressure_duration"`
	MinKillInterval         string   `yaml:"min_kill_interval"`
	CheckInterval           string   `yaml:"check_interval"`
	MinCandidates           *int     `yaml:"min_candidates"`
	MaxCandidates           *int     `yaml:"max_candidates"`
	AllowSystemProcesses    *bool    `yaml:"allow_system_processes"`
	MinMemoryThresholdBytes *uint64  `yaml:"min_memory_threshold_bytes"`
}

// Load builds a Config from the environment, then overlays
// OOMKILLD_CONFIG_FILE if set. Env vars establish the baseline; the file,
// when present, always wins.
func Load() (Config, error) {
	cfg := Default()

	if v := os.Getenv("OOMKILLD_STATUS_ADDR"); v != "" {
		cfg.StatusAddr = v
	}
	cfg.AuditDSN = os.Getenv("OOMKILLD_AUDIT_DSN")
	cfg.OTLPEndpoint = os.Getenv("OOMKILLD_OTLP_ENDPOINT")

	if v := os.Getenv("OOMKILLD_SYSTEM_DENYLIST"); v != "" {
		cfg.Killer.SystemProcess.Denylist = splitCommaList(v)
	}
	if v := os.Getenv("OOMKILLD_SYSTEM_SHORT_UPTIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: OOMKILLD_SYSTEM_SHORT_UPTIME: %w", err)
		}
		cfg.Killer.SystemProcess.ShortUptime = d
	}

	if v := os.Getenv("OOMKILLD_MIN_FREE_RATIO"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: OOMKILLD_MIN_FREE_RATIO: %w", err)
		}
		cfg.Killer.Pressure.MinFreeRatio = f
	}
	if v := os.Getenv("OOMKILLD_MAX_SWAP_RATIO"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: OOMKILLD_MAX_SWAP_RATIO: %w", err)
		}
		cfg.Killer.Pressure.MaxSwapRatio = f
	}
	if v := os.Getenv("OOMKILLD_PRESSURE_DURATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: OOMKILLD_PRESSURE_DURATION: %w", err)
		}
		cfg.Killer.Pressure.PressureDuration = d
	}
	if v := os.Getenv("OOMKILLD_MIN_KILL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: OOMKILLD_MIN_KILL_INTERVAL: %w", err)
		}
		cfg.Killer.MinKillInterval = d
	}
	if v := os.Getenv("OOMKILLD_CHECK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: OOMKILLD_CHECK_INTERVAL: %w", err)
		}
		cfg.Killer.CheckInterval = d
	}
	if v := os.Getenv("OOMKILLD_MIN_CANDIDATES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: OOMKILLD_MIN_CANDIDATES: %w", err)
		}
		cfg.Killer.Selector.MinCandidates = n
	}
	if v := os.Getenv("OOMKILLD_MAX_CANDIDATES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: OOMKILLD_MAX_CANDIDATES: %w", err)
		}
		cfg.Killer.Selector.MaxCandidates = n
	}
	if v := os.Getenv("OOMKILLD_ALLOW_SYSTEM_PROCESSES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: OOMKILLD_ALLOW_SYSTEM_PROCESSES: %w", err)
		}
		cfg.Killer.Selector.AllowSystemProcesses = b
	}
	if v := os.Getenv("OOMKILLD_MIN_MEMORY_THRESHOLD_BYTES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: OOMKILLD_MIN_MEMORY_THRESHOLD_BYTES: %w", err)
		}
		cfg.Killer.Selector.MinMemoryThresholdBytes = n
	}

	if path := os.Getenv("OOMKILLD_CONFIG_FILE"); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	if overlay.StatusAddr != "" {
		cfg.StatusAddr = overlay.StatusAddr
	}
	if overlay.AuditDSN != "" {
		cfg.AuditDSN = overlay.AuditDSN
	}
	if overlay.OTLPEndpoint != "" {
		cfg.OTLPEndpoint = overlay.OTLPEndpoint
	}
	if len(overlay.SystemDenylist) > 0 {
		cfg.Killer.SystemProcess.Denylist = overlay.SystemDenylist
	}
	if overlay.SystemShortUptime != "" {
		d, err := time.ParseDuration(overlay.SystemShortUptime)
		if err != nil {
			return fmt.Errorf("config: %s: system_short_uptime: %w", path, err)
		}
		cfg.Killer.SystemProcess.ShortUptime = d
	}
	if overlay.MinFreeRatio != nil {
		cfg.Killer.Pressure.MinFreeRatio = *overlay.MinFreeRatio
	}
	if overlay.MaxSwapRatio != nil {
		cfg.Killer.Pressure.MaxSwapRatio = *overlay.MaxSwapRatio
	}
	if overlay.PressureDuration != "" {
		d, err := time.ParseDuration(overlay.PressureDuration)
		if err != nil {
			return fmt.Errorf("config: %s: pressure_duration: %w", path, err)
		}
		cfg.Killer.Pressure.PressureDuration = d
	}
	if overlay.MinKillInterval != "" {
		d, err := time.ParseDuration(overlay.MinKillInterval)
		if err != nil {
			return fmt.Errorf("config: %s: min_kill_interval: %w", path, err)
		}
		cfg.Killer.MinKillInterval = d
	}
	if overlay.CheckInterval != "" {
		d, err := time.ParseDuration(overlay.CheckInterval)
		if err != nil {
			return fmt.Errorf("config: %s: check_interval: %w", path, err)
		}
		cfg.Killer.CheckInterval = d
	}
	if overlay.MinCandidates != nil {
		cfg.Killer.Selector.MinCandidates = *overlay.MinCandidates
	}
	if overlay.MaxCandidates != nil {
		cfg.Killer.Selector.MaxCandidates = *overlay.MaxCandidates
	}
	if overlay.AllowSystemProcesses != nil {
		cfg.Killer.Selector.AllowSystemProcesses = *overlay.AllowSystemProcesses
	}
	if overlay.MinMemoryThresholdBytes != nil {
		cfg.Killer.Selector.MinMemoryThresholdBytes = *overlay.MinMemoryThresholdBytes
	}

	return nil
}

func splitCommaList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
