package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Command CommandConfig `yaml:"command"`
	Sync    SyncConfig    `yaml:"sync"`
	Clock   ClockConfig   `yaml:"clock"`
}

type DeviceConfig struct {
	Path        string        `yaml:"path"`
	Speed       int           `yaml:"speed"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

type CommandConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
	// SettleDelay is the pause between telling the chip to change rate and
	// retuning the local port.
	SettleDelay time.Duration `yaml:"settle_delay"`
}

type SyncConfig struct {
	Retries      int           `yaml:"retries"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

type ClockConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when no file is given. The device
// path has no default; it comes from the file or the command line.
func Default() Config {
	cfg := Config{}
	cfg.Device.Speed = 9600
	applyDefaults(&cfg)
	return cfg
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if cfg.Device.Speed < 0 {
		return Config{}, fmt.Errorf("device.speed must be > 0")
	}
	if cfg.Command.Retries < 0 {
		return Config{}, fmt.Errorf("command.retries must be >= 0")
	}
	if cfg.Sync.Retries < 0 {
		return Config{}, fmt.Errorf("sync.retries must be >= 0")
	}
	if cfg.Device.Speed == 0 {
		cfg.Device.Speed = 9600
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Device.ReadTimeout <= 0 {
		cfg.Device.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.Command.Timeout <= 0 {
		cfg.Command.Timeout = 2 * time.Second
	}
	if cfg.Command.Retries == 0 {
		cfg.Command.Retries = 2
	}
	if cfg.Command.SettleDelay <= 0 {
		cfg.Command.SettleDelay = 100 * time.Millisecond
	}
	if cfg.Sync.Retries == 0 {
		cfg.Sync.Retries = 5
	}
	if cfg.Sync.ProbeTimeout <= 0 {
		cfg.Sync.ProbeTimeout = 500 * time.Millisecond
	}
	if cfg.Clock.Timeout <= 0 {
		cfg.Clock.Timeout = 5 * time.Second
	}
}
