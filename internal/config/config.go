package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written in the usual
// "2s" / "500ms" notation.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds the node's deployment-level settings. The sync wait
// timeout is deliberately a node setting, not a request parameter.
type Config struct {
	DataDir         string   `yaml:"data_dir"`
	RPCListenAddr   string   `yaml:"rpc_listen_addr"`
	FeedListenAddr  string   `yaml:"feed_listen_addr"`
	SyncWaitTimeout Duration `yaml:"sync_wait_timeout"`
	DevSealer       bool     `yaml:"dev_sealer"`
	SealInterval    Duration `yaml:"seal_interval"`
	LogLevel        string   `yaml:"log_level"`
	LogFormat       string   `yaml:"log_format"`
}

// Default returns the configuration used when no file is provided. An
// empty DataDir selects the in-memory store.
func Default() Config {
	return Config{
		RPCListenAddr:   "127.0.0.1:8545",
		SyncWaitTimeout: Duration(2 * time.Second),
		DevSealer:       true,
		SealInterval:    Duration(500 * time.Millisecond),
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail deep inside startup.
func (c *Config) Validate() error {
	if c.RPCListenAddr == "" {
		return fmt.Errorf("rpc_listen_addr must not be empty")
	}
	if c.SyncWaitTimeout <= 0 {
		return fmt.Errorf("sync_wait_timeout must be positive, got %s", c.SyncWaitTimeout.Std())
	}
	if c.DevSealer && c.SealInterval <= 0 {
		return fmt.Errorf("seal_interval must be positive when dev_sealer is enabled")
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	return nil
}
