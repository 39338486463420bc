package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	StoreDriverSQLite = "sqlite"
	StoreDriverFile   = "file"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type MonitorConfig struct {
	DefaultInterval string `mapstructure:"default_interval"`
}

type SweeperConfig struct {
	Interval string `mapstructure:"interval"`
}

type StoreConfig struct {
	Driver       string `mapstructure:"driver"`
	Path         string `mapstructure:"path"`
	FallbackPath string `mapstructure:"fallback_path"`
}

type SeedConfig struct {
	Path string `mapstructure:"path"`
}

type AlertsConfig struct {
	Webhooks []string   `mapstructure:"webhooks"`
	Email    SMTPConfig `mapstructure:"email"`
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Sweeper SweeperConfig `mapstructure:"sweeper"`
	Store   StoreConfig   `mapstructure:"store"`
	Seed    SeedConfig    `mapstructure:"seed"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
}

// LoadConfig reads config.yaml (or configFile when set), applies environment
// overrides and validates the result.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("logging.pretty", false)
	v.SetDefault("monitor.default_interval", "60s")
	v.SetDefault("sweeper.interval", "30s")
	v.SetDefault("store.driver", StoreDriverSQLite)
	v.SetDefault("store.path", "./data/upwatch.db")
	v.SetDefault("store.fallback_path", "./data/monitors.json")
	v.SetDefault("seed.path", "")
	v.SetDefault("alerts.webhooks", []string{})
	v.SetDefault("alerts.email.port", 587)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("store.path", "STORE_PATH", "DB_PATH")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Address = ":" + port
	}
	if !v.IsSet("logging.pretty") && cfg.Server.Environment == EnvDev {
		cfg.Logging.Pretty = true
	}
	if cfg.Seed.Path == "" {
		cfg.Seed.Path = filepath.Join(filepath.Dir(cfg.Store.Path), "monitors.yaml")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Summary logs the effective configuration.
func (c *Config) Summary(log zerolog.Logger) {
	log.Info().
		Str("address", c.Server.Address).
		Str("environment", c.Server.Environment).
		Str("store", c.Store.Driver).
		Str("store_path", c.storePath()).
		Str("sweep_interval", c.Sweeper.Interval).
		Int("webhooks", len(c.Alerts.Webhooks)).
		Bool("email", c.Alerts.Email.Enabled()).
		Msg("[Config] Configuration loaded")
}

func (c *Config) storePath() string {
	if c.Store.Driver == StoreDriverFile {
		return c.Store.FallbackPath
	}
	return c.Store.Path
}

// DefaultIntervalMs returns the configured default check interval.
func (c *Config) DefaultIntervalMs() int64 {
	d, err := time.ParseDuration(c.Monitor.DefaultInterval)
	if err != nil {
		return DefaultIntervalMs
	}
	return d.Milliseconds()
}

// SweepInterval returns the recovery sweep period.
func (c *Config) SweepInterval() time.Duration {
	d, err := time.ParseDuration(c.Sweeper.Interval)
	if err != nil {
		return DefaultSweepInterval
	}
	return d
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server, validation.By(func(value interface{}) error {
			sc, ok := value.(ServerConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a ServerConfig")
			}
			return validation.ValidateStruct(&sc,
				validation.Field(&sc.Environment, validation.Required, validation.In(EnvDev, EnvStaging, EnvProd)),
				validation.Field(&sc.Address, validation.Required, validation.By(validateHostPort)),
			)
		})),
		validation.Field(&c.Logging, validation.By(func(value interface{}) error {
			lc, ok := value.(LoggingConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
			}
			return validation.ValidateStruct(&lc,
				validation.Field(&lc.Level, validation.Required,
					validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError)),
			)
		})),
		validation.Field(&c.Monitor, validation.By(func(value interface{}) error {
			mc, ok := value.(MonitorConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a MonitorConfig")
			}
			return validation.ValidateStruct(&mc,
				validation.Field(&mc.DefaultInterval, validation.Required, validation.By(validateDuration)),
			)
		})),
		validation.Field(&c.Sweeper, validation.By(func(value interface{}) error {
			sc, ok := value.(SweeperConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a SweeperConfig")
			}
			return validation.ValidateStruct(&sc,
				validation.Field(&sc.Interval, validation.Required, validation.By(validateDuration)),
			)
		})),
		validation.Field(&c.Store, validation.By(func(value interface{}) error {
			sc, ok := value.(StoreConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a StoreConfig")
			}
			return validation.ValidateStruct(&sc,
				validation.Field(&sc.Driver, validation.Required, validation.In(StoreDriverSQLite, StoreDriverFile)),
				validation.Field(&sc.Path, validation.Required),
				validation.Field(&sc.FallbackPath, validation.Required),
			)
		})),
		validation.Field(&c.Alerts, validation.By(func(value interface{}) error {
			ac, ok := value.(AlertsConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be an AlertsConfig")
			}
			return validation.ValidateStruct(&ac,
				validation.Field(&ac.Webhooks, validation.Each(is.RequestURL)),
				validation.Field(&ac.Email, validation.By(validateSMTPConfig)),
			)
		})),
	)
}

func validateSMTPConfig(value interface{}) error {
	sc, ok := value.(SMTPConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be an SMTPConfig")
	}
	if sc.Host == "" {
		return nil
	}
	return validation.ValidateStruct(&sc,
		validation.Field(&sc.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&sc.From, validation.Required, is.EmailFormat),
		validation.Field(&sc.To, validation.Required, validation.Each(is.EmailFormat)),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}
	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}
	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}
	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}
	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be positive")
	}
	return nil
}

// SeedMonitor is one monitor entry of monitors.yaml. Interval is a Go
// duration; CheckInterval (seconds) is accepted for older files.
type SeedMonitor struct {
	Name          string `yaml:"name"`
	URL           string `yaml:"url"`
	Interval      string `yaml:"interval,omitempty"`
	CheckInterval int    `yaml:"checkInterval,omitempty"`
	Enabled       *bool  `yaml:"enabled,omitempty"`
	Paused        bool   `yaml:"paused,omitempty"`
}

// SeedFile is the root of monitors.yaml.
type SeedFile struct {
	Monitors []SeedMonitor `yaml:"monitors"`
}

// loadSeedFile parses monitors.yaml into create requests. A missing file
// yields no requests.
func loadSeedFile(path string) ([]CreateMonitorRequest, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	reqs := make([]CreateMonitorRequest, 0, len(seed.Monitors))
	for i, sm := range seed.Monitors {
		if strings.TrimSpace(sm.URL) == "" {
			return nil, fmt.Errorf("monitor %d: url is required", i)
		}

		var intervalMs int64
		switch {
		case sm.Interval != "":
			d, err := time.ParseDuration(sm.Interval)
			if err != nil {
				return nil, fmt.Errorf("monitor %d: invalid interval %q: %w", i, sm.Interval, err)
			}
			intervalMs = d.Milliseconds()
		case sm.CheckInterval > 0:
			intervalMs = int64(sm.CheckInterval) * 1000
		}

		enabled := !sm.Paused
		if sm.Enabled != nil {
			enabled = *sm.Enabled
		}
		reqs = append(reqs, CreateMonitorRequest{
			Name:       sm.Name,
			URL:        sm.URL,
			IntervalMs: intervalMs,
			Enabled:    &enabled,
		})
	}
	return reqs, nil
}

// applySeed creates the monitors from the seed file whose URL is not
// registered yet and returns how many were created.
func applySeed(registry *Registry, path string, log zerolog.Logger) (int, error) {
	reqs, err := loadSeedFile(path)
	if err != nil {
		return 0, err
	}
	if len(reqs) == 0 {
		log.Debug().Str("seed_path", path).Msg("[Config] No seed monitors")
		return 0, nil
	}

	seen := make(map[string]bool, len(reqs))
	fresh := make([]CreateMonitorRequest, 0, len(reqs))
	for _, req := range reqs {
		key := strings.ToLower(normalizeURL(req.URL))
		if seen[key] || registry.HasURL(req.URL) {
			log.Debug().Str("url", req.URL).Msg("[Config] Seed monitor already registered")
			continue
		}
		seen[key] = true
		fresh = append(fresh, req)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	created, err := registry.CreateMany(fresh)
	if err != nil {
		return 0, fmt.Errorf("failed to create seed monitors: %w", err)
	}
	log.Info().Int("count", len(created)).Str("seed_path", path).Msg("[Config] Seeded monitors")
	return len(created), nil
}
