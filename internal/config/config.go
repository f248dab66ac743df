// Package config handles netsweep configuration loading and validation.
// Configuration is stored as YAML and validated with struct tags before use.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/netsweep/internal/logging"
)

const (
	configFilePerm = 0600
	configDirPerm  = 0750

	defaultMaxWorkers    = 5
	defaultUnitTimeout   = 10 * time.Minute
	defaultKillGrace     = 5 * time.Second
	defaultChunkSize     = 256
	defaultFileChunkSize = 100
	defaultTailLines     = 20
)

// Config represents the complete netsweep configuration.
type Config struct {
	// Scanner configuration
	Scanner ScannerConfig `yaml:"scanner" json:"scanner"`

	// Logging configuration
	Logging logging.Config `yaml:"logging" json:"logging"`
}

// ScannerConfig holds scan engine settings.
type ScannerConfig struct {
	// Path to the external scan executable
	BinaryPath string `yaml:"binary_path" json:"binary_path" validate:"required"`

	// Number of concurrent scan workers
	MaxWorkers int `yaml:"max_workers" json:"max_workers" validate:"gte=1,lte=64"`

	// Wall-clock budget per work unit
	UnitTimeout time.Duration `yaml:"unit_timeout" json:"unit_timeout" validate:"gt=0"`

	// Grace period between terminate and kill
	KillGrace time.Duration `yaml:"kill_grace" json:"kill_grace" validate:"gt=0"`

	// Maximum addresses per work unit for in-memory host lists
	ChunkSize int `yaml:"chunk_size" json:"chunk_size" validate:"gte=1"`

	// Maximum addresses per work unit for newline-file host lists
	FileChunkSize int `yaml:"file_chunk_size" json:"file_chunk_size" validate:"gte=1"`

	// Lines of subprocess output kept as failure context
	TailLines int `yaml:"tail_lines" json:"tail_lines" validate:"gte=1"`

	// Directory for scan artifacts and chunk files (empty = system temp)
	WorkDir string `yaml:"work_dir" json:"work_dir"`
}

// rawScannerConfig mirrors ScannerConfig with string durations so config
// files can say "10m" instead of nanosecond counts.
type rawScannerConfig struct {
	BinaryPath    string `yaml:"binary_path"`
	MaxWorkers    int    `yaml:"max_workers"`
	UnitTimeout   string `yaml:"unit_timeout"`
	KillGrace     string `yaml:"kill_grace"`
	ChunkSize     int    `yaml:"chunk_size"`
	FileChunkSize int    `yaml:"file_chunk_size"`
	TailLines     int    `yaml:"tail_lines"`
	WorkDir       string `yaml:"work_dir"`
}

// UnmarshalYAML decodes durations from "10m" style strings.
func (s *ScannerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw rawScannerConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}
	unitTimeout, err := parseDuration(raw.UnitTimeout)
	if err != nil {
		return fmt.Errorf("invalid unit_timeout: %w", err)
	}
	killGrace, err := parseDuration(raw.KillGrace)
	if err != nil {
		return fmt.Errorf("invalid kill_grace: %w", err)
	}
	*s = ScannerConfig{
		BinaryPath:    raw.BinaryPath,
		MaxWorkers:    raw.MaxWorkers,
		UnitTimeout:   unitTimeout,
		KillGrace:     killGrace,
		ChunkSize:     raw.ChunkSize,
		FileChunkSize: raw.FileChunkSize,
		TailLines:     raw.TailLines,
		WorkDir:       raw.WorkDir,
	}
	return nil
}

// MarshalYAML encodes durations as "10m0s" style strings.
func (s ScannerConfig) MarshalYAML() (interface{}, error) {
	return rawScannerConfig{
		BinaryPath:    s.BinaryPath,
		MaxWorkers:    s.MaxWorkers,
		UnitTimeout:   s.UnitTimeout.String(),
		KillGrace:     s.KillGrace.String(),
		ChunkSize:     s.ChunkSize,
		FileChunkSize: s.FileChunkSize,
		TailLines:     s.TailLines,
		WorkDir:       s.WorkDir,
	}, nil
}

// parseDuration accepts "10m" style strings or bare nanosecond counts.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	ns, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not a duration: %q", s)
	}
	return time.Duration(ns), nil
}

// Default returns a configuration populated with default values.
func Default() *Config {
	return &Config{
		Scanner: ScannerConfig{
			BinaryPath:    "nmap",
			MaxWorkers:    defaultMaxWorkers,
			UnitTimeout:   defaultUnitTimeout,
			KillGrace:     defaultKillGrace,
			ChunkSize:     defaultChunkSize,
			FileChunkSize: defaultFileChunkSize,
			TailLines:     defaultTailLines,
		},
		Logging: logging.DefaultConfig(),
	}
}

// applyDefaults fills zero-valued fields with defaults.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Scanner.BinaryPath == "" {
		c.Scanner.BinaryPath = def.Scanner.BinaryPath
	}
	if c.Scanner.MaxWorkers == 0 {
		c.Scanner.MaxWorkers = def.Scanner.MaxWorkers
	}
	if c.Scanner.UnitTimeout == 0 {
		c.Scanner.UnitTimeout = def.Scanner.UnitTimeout
	}
	if c.Scanner.KillGrace == 0 {
		c.Scanner.KillGrace = def.Scanner.KillGrace
	}
	if c.Scanner.ChunkSize == 0 {
		c.Scanner.ChunkSize = def.Scanner.ChunkSize
	}
	if c.Scanner.FileChunkSize == 0 {
		c.Scanner.FileChunkSize = def.Scanner.FileChunkSize
	}
	if c.Scanner.TailLines == 0 {
		c.Scanner.TailLines = def.Scanner.TailLines
	}
	if c.Logging.Level == "" {
		c.Logging.Level = logging.LevelInfo
	}
	if c.Logging.Format == "" {
		c.Logging.Format = logging.FormatText
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Load reads a configuration file, applies defaults and validates it.
// A missing file is not an error; the defaults are returned instead.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator flags
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg = &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write saves the configuration to the given path as YAML.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, configDirPerm); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, configFilePerm)
}
