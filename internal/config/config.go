// Package config loads the CLI's TOML configuration.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap/zapcore"
)

var (
	ErrInvalidLogLevel  = errors.New("invalid log_level")
	ErrInvalidEntries   = errors.New("cache_entries must be positive")
	ErrInvalidChainHash = errors.New("drand.chain_hash must be 32 hex-encoded bytes")
	ErrMissingPath      = errors.New("path must not be empty")
)

// Config mirrors the TOML file. Absent fields keep their defaults.
type Config struct {
	CachePath    string `toml:"cache_path"`
	KeysDir      string `toml:"keys_dir"`
	LogLevel     string `toml:"log_level"`
	CacheEntries int    `toml:"cache_entries"`
	StepLimit    uint64 `toml:"step_limit"`
	Drand        Drand  `toml:"drand"`
	Chain        Chain  `toml:"chain"`
}

type Drand struct {
	Endpoint  string `toml:"endpoint"`
	ChainHash string `toml:"chain_hash"`
}

type Chain struct {
	KeyFile string `toml:"key_file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	root := filepath.Join(home, ".lurk")
	return &Config{
		CachePath:    filepath.Join(root, "proofs.db"),
		KeysDir:      filepath.Join(root, "keys"),
		LogLevel:     "info",
		CacheEntries: 256,
		Drand: Drand{
			Endpoint:  "https://api.drand.sh",
			ChainHash: "52db9ba70e0cc0f6eaf7803dd07447a1f5477735fd3f661792ba94600c84e971",
		},
		Chain: Chain{KeyFile: filepath.Join(root, "operator.key")},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config %s: unknown keys %v", path, undecoded)
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if _, err := c.Level(); err != nil {
		result = multierror.Append(result, err)
	}
	if c.CacheEntries <= 0 {
		result = multierror.Append(result, fmt.Errorf("%w: have %d", ErrInvalidEntries, c.CacheEntries))
	}
	if c.CachePath == "" {
		result = multierror.Append(result, fmt.Errorf("cache_path: %w", ErrMissingPath))
	}
	if c.KeysDir == "" {
		result = multierror.Append(result, fmt.Errorf("keys_dir: %w", ErrMissingPath))
	}
	if b, err := hex.DecodeString(c.Drand.ChainHash); err != nil || len(b) != 32 {
		result = multierror.Append(result, fmt.Errorf("%w: have %q", ErrInvalidChainHash, c.Drand.ChainHash))
	}
	return result.ErrorOrNil()
}

// Level parses LogLevel.
func (c *Config) Level() (zapcore.Level, error) {
	l, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return l, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	return l, nil
}

// ChainHashBytes decodes the drand chain hash. Validate has checked it.
func (c *Config) ChainHashBytes() []byte {
	b, _ := hex.DecodeString(c.Drand.ChainHash)
	return b
}
