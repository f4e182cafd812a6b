// Package config loads attendr's static configuration from an optional
// YAML file and ATTENDR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Service   ServiceConfig   `mapstructure:"service"`
	Attend    AttendConfig    `mapstructure:"attendance"`
	Idle      IdleConfig      `mapstructure:"idle"`
	CrossTab  CrossTabConfig  `mapstructure:"crosstab"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	DevServer DevServerConfig `mapstructure:"devserver"`
}

type AppConfig struct {
	Timezone string `mapstructure:"timezone"`
	DBPath   string `mapstructure:"db_path"`
}

type ServiceConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	ClientID string        `mapstructure:"client_id"`
}

type AttendConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	TickInterval  time.Duration `mapstructure:"tick_interval"`
	WatchInterval time.Duration `mapstructure:"watch_interval"`
}

type IdleConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	PromptBefore time.Duration `mapstructure:"prompt_before"`
}

type CrossTabConfig struct {
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type LoggingConfig struct {
	Env  string `mapstructure:"env"`
	Path string `mapstructure:"path"`
}

type DevServerConfig struct {
	Addr     string        `mapstructure:"addr"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

const (
	BackendLocal = "local"
	BackendRedis = "redis"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.timezone", "")
	v.SetDefault("app.db_path", "")
	v.SetDefault("service.base_url", "http://localhost:8088")
	v.SetDefault("service.timeout", 10*time.Second)
	v.SetDefault("service.client_id", "attendr")
	v.SetDefault("attendance.poll_interval", 30*time.Second)
	v.SetDefault("attendance.tick_interval", time.Second)
	v.SetDefault("attendance.watch_interval", 2*time.Second)
	v.SetDefault("idle.timeout", 12*time.Minute)
	v.SetDefault("idle.prompt_before", 2*time.Minute)
	v.SetDefault("crosstab.backend", BackendLocal)
	v.SetDefault("crosstab.redis.addr", "localhost:6379")
	v.SetDefault("crosstab.redis.password", "")
	v.SetDefault("crosstab.redis.db", 0)
	v.SetDefault("crosstab.redis.channel", "attendr:session")
	v.SetDefault("logging.env", "development")
	v.SetDefault("logging.path", "")
	v.SetDefault("devserver.addr", ":8088")
	v.SetDefault("devserver.token_ttl", 8*time.Hour)
}

// DefaultFile returns ~/.config/attendr/config.yaml.
func DefaultFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".config", "attendr", "config.yaml"), nil
}

func newViper(file string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("ATTENDR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file == "" {
		return v, nil
	}
	if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
		return v, nil
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads file if it exists. An empty file name uses defaults and the
// environment only.
func Load(file string) (*Config, error) {
	v, err := newViper(file)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch loads file and calls onChange with the new config each time the
// file is rewritten. Invalid edits are reported to onError and ignored.
func Watch(file string, onChange func(*Config), onError func(error)) (*Config, error) {
	v, err := newViper(file)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if v.ConfigFileUsed() == "" {
		return cfg, nil
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(next)
	})
	v.WatchConfig()
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.CrossTab.Backend {
	case BackendLocal, BackendRedis:
	default:
		return fmt.Errorf("crosstab.backend must be %q or %q, got %q", BackendLocal, BackendRedis, c.CrossTab.Backend)
	}
	if c.Service.BaseURL == "" {
		return errors.New("service.base_url is required")
	}
	if c.Attend.PollInterval < 0 {
		return fmt.Errorf("attendance.poll_interval must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves app.timezone; empty means the system zone.
func (c *Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("app.timezone: %w", err)
	}
	return loc, nil
}

func (c *LoggingConfig) IsProduction() bool {
	return c.Env == "production"
}
