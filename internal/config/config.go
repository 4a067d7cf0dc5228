package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. MARKETPLACE_LISTEN_ADDR.
const EnvPrefix = "MARKETPLACE_"

const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
)

// Config is the marketplace server configuration.
type Config struct {
	ListenAddr string        `yaml:"listen_addr" env:"LISTEN_ADDR"`
	GinMode    string        `yaml:"gin_mode" env:"GIN_MODE"`
	LogLevel   string        `yaml:"log_level" env:"LOG_LEVEL"`
	Deployer   string        `yaml:"deployer" env:"DEPLOYER"`
	DemoTokens bool          `yaml:"demo_tokens" env:"DEMO_TOKENS"`
	Storage    StorageConfig `yaml:"storage" envPrefix:"STORAGE_"`
}

type StorageConfig struct {
	Backend string `yaml:"backend" env:"BACKEND"`
	Path    string `yaml:"path" env:"PATH"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ListenAddr: ":8081",
		GinMode:    "release",
		LogLevel:   "info",
		Deployer:   "0x00000000000000000000000000000000000D3910",
		DemoTokens: true,
		Storage: StorageConfig{
			Backend: BackendMemory,
			Path:    "sales.db",
		},
	}
}

// Load reads path (if not empty) over the defaults, then applies environment
// overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	if !common.IsHexAddress(c.Deployer) {
		errs = append(errs, fmt.Errorf("deployer %q is not a hex address", c.Deployer))
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendBolt:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for the bolt backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	return errors.Join(errs...)
}

func (c Config) DeployerAddress() common.Address {
	return common.HexToAddress(c.Deployer)
}
