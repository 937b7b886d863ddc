package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Tailscale  TailscaleConfig  `yaml:"tailscale"`
	Optimizer  OptimizerConfig  `yaml:"optimizer"`
	Redis      RedisConfig      `yaml:"redis"`
	Generation GenerationConfig `yaml:"generation"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// OptimizerConfig points at the movement-selection service. An empty URL
// runs every session through the heuristic selector.
type OptimizerConfig struct {
	URL        string        `yaml:"url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// RedisConfig enables progress events. An empty Addr disables publishing.
type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
}

// GenerationConfig holds the scheduling knobs. It is converted once into an
// immutable Snapshot that is passed to the structuring and sequencing code.
type GenerationConfig struct {
	DefaultCycleLength      int           `yaml:"default_cycle_length"`
	SessionTimeout          time.Duration `yaml:"session_timeout"`
	MaxCardioPct            float64       `yaml:"max_cardio_pct"`
	MaxMobilityPct          float64       `yaml:"max_mobility_pct"`
	EnduranceHeavyThreshold float64       `yaml:"endurance_heavy_threshold"`
	FinisherThreshold       float64       `yaml:"finisher_threshold"`
	MaxFinisherDays         int           `yaml:"max_finisher_days"`
	MinutesPerCardioDay     int           `yaml:"minutes_per_cardio_day"`
	Workers                 int           `yaml:"workers"`
	SweepSchedule           string        `yaml:"sweep_schedule"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix ALLOY_ and underscore-separated paths:
//
//	ALLOY_SERVER_HOST, ALLOY_SERVER_PORT,
//	ALLOY_DB_HOST, ALLOY_DB_PORT, ALLOY_DB_NAME,
//	ALLOY_DB_USER, ALLOY_DB_PASSWORD, ALLOY_DB_SSLMODE,
//	ALLOY_AUTH_API_KEY, ALLOY_OPTIMIZER_URL, ALLOY_REDIS_ADDR,
//	ALLOY_SESSION_TIMEOUT, ALLOY_WORKERS
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.Generation.applyDefaults()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ALLOY_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("ALLOY_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ALLOY_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("ALLOY_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("ALLOY_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("ALLOY_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("ALLOY_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("ALLOY_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("ALLOY_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("ALLOY_OPTIMIZER_URL"); v != "" {
		cfg.Optimizer.URL = v
	}
	if v := os.Getenv("ALLOY_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ALLOY_SESSION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Generation.SessionTimeout = d
		}
	}
	if v := os.Getenv("ALLOY_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Generation.Workers = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Optimizer.Timeout == 0 {
		c.Optimizer.Timeout = 5 * time.Second
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "alloy.generation"
	}
	if c.Tailscale.Hostname == "" {
		c.Tailscale.Hostname = "alloy"
	}
}

func (g *GenerationConfig) applyDefaults() {
	d := DefaultGeneration()
	if g.DefaultCycleLength == 0 {
		g.DefaultCycleLength = d.DefaultCycleLength
	}
	if g.SessionTimeout == 0 {
		g.SessionTimeout = d.SessionTimeout
	}
	if g.MaxCardioPct == 0 {
		g.MaxCardioPct = d.MaxCardioPct
	}
	if g.MaxMobilityPct == 0 {
		g.MaxMobilityPct = d.MaxMobilityPct
	}
	if g.EnduranceHeavyThreshold == 0 {
		g.EnduranceHeavyThreshold = d.EnduranceHeavyThreshold
	}
	if g.FinisherThreshold == 0 {
		g.FinisherThreshold = d.FinisherThreshold
	}
	if g.MaxFinisherDays == 0 {
		g.MaxFinisherDays = d.MaxFinisherDays
	}
	if g.MinutesPerCardioDay == 0 {
		g.MinutesPerCardioDay = d.MinutesPerCardioDay
	}
	if g.Workers == 0 {
		g.Workers = d.Workers
	}
	if g.SweepSchedule == "" {
		g.SweepSchedule = d.SweepSchedule
	}
}

// DefaultGeneration returns the generation defaults used when the file omits them.
func DefaultGeneration() GenerationConfig {
	return GenerationConfig{
		DefaultCycleLength:      10,
		SessionTimeout:          8 * time.Second,
		MaxCardioPct:            0.35,
		MaxMobilityPct:          0.15,
		EnduranceHeavyThreshold: 0.5,
		FinisherThreshold:       0.3,
		MaxFinisherDays:         2,
		MinutesPerCardioDay:     45,
		Workers:                 4,
		SweepSchedule:           "@every 1m",
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	return c.Generation.validate()
}

func (g GenerationConfig) validate() error {
	if g.DefaultCycleLength < 7 || g.DefaultCycleLength > 14 {
		return fmt.Errorf("generation.default_cycle_length must be between 7 and 14")
	}
	if g.SessionTimeout <= 0 {
		return fmt.Errorf("generation.session_timeout must be positive")
	}
	if g.MaxCardioPct <= 0 || g.MaxCardioPct > 1 {
		return fmt.Errorf("generation.max_cardio_pct must be in (0, 1]")
	}
	if g.MaxMobilityPct <= 0 || g.MaxMobilityPct > 1 {
		return fmt.Errorf("generation.max_mobility_pct must be in (0, 1]")
	}
	if g.Workers < 1 {
		return fmt.Errorf("generation.workers must be at least 1")
	}
	return nil
}
