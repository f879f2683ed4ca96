// Package config handles loading and saving canopy configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config: ~/.config/canopy/config.yaml
//   - State:  ~/.local/state/canopy/ (resume snapshots, cache database)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config files can say "150ms" or "2s".
// A bare number is read as seconds.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements custom YAML unmarshalling for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err == nil {
		*d = Duration(parsed)
		return nil
	}
	// Fallback: a plain number, assumed seconds. YAML hands "2" to us
	// as a string, and time.ParseDuration rejects it (missing unit).
	var seconds float64
	if _, scanErr := fmt.Sscanf(raw, "%f", &seconds); scanErr == nil {
		*d = Duration(seconds * float64(time.Second))
		return nil
	}
	return fmt.Errorf("invalid duration %q: %w", raw, err)
}

// MarshalYAML renders the duration in the form ParseDuration accepts.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// PaginationConfig tunes the leaf collector's exhaustion heuristic.
type PaginationConfig struct {
	BottomThreshold     float64  `yaml:"bottom_threshold,omitempty"`
	NoNewLimit          int      `yaml:"no_new_limit,omitempty"`
	StuckLimit          int      `yaml:"stuck_limit,omitempty"`
	HardNoNewLimit      int      `yaml:"hard_no_new_limit,omitempty"`
	MaxAttempts         int      `yaml:"max_attempts,omitempty"`
	LargeCollectionSize int      `yaml:"large_collection_size,omitempty"`
	SettleWait          Duration `yaml:"settle_wait,omitempty"`
	LargeSettleWait     Duration `yaml:"large_settle_wait,omitempty"`
}

// WalkConfig tunes the tree walker.
type WalkConfig struct {
	ExpandSettle Duration `yaml:"expand_settle,omitempty"`
}

// CacheConfig selects and locates the traversal cache.
type CacheConfig struct {
	// Backend is "memory" or "sqlite". SQLite survives restarts, which
	// is what makes resume cheap.
	Backend string `yaml:"backend,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// Config is the top-level configuration for canopy.
type Config struct {
	Pagination PaginationConfig `yaml:"pagination,omitempty"`
	Walk       WalkConfig       `yaml:"walk,omitempty"`
	Cache      CacheConfig      `yaml:"cache,omitempty"`
	StatePath  string           `yaml:"state_path,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Cache: CacheConfig{
			Backend: "sqlite",
			Path:    filepath.Join(StateDir(), "cache.db"),
		},
		StatePath: filepath.Join(StateDir(), "traversal.json"),
	}
}

// ConfigDir returns the XDG config directory for canopy.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "canopy")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "canopy")
}

// StateDir returns the XDG state directory for canopy.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "canopy")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "canopy")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Cache.Path = expandHome(cfg.Cache.Path)
	cfg.StatePath = expandHome(cfg.StatePath)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	switch strings.ToLower(c.Cache.Backend) {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("unknown cache backend %q (want memory or sqlite)", c.Cache.Backend)
	}
	if strings.EqualFold(c.Cache.Backend, "sqlite") && c.Cache.Path == "" {
		return fmt.Errorf("sqlite cache backend requires cache.path")
	}
	if c.Pagination.MaxAttempts < 0 {
		return fmt.Errorf("pagination.max_attempts cannot be negative")
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
