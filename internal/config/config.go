package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ScheduleConfig parameterizes slot generation. Opening bounds and the
// session duration are configuration, not constants, so one engine serves
// any venue layout.
type ScheduleConfig struct {
	OpenHour               int    `yaml:"open_hour"`
	CloseHour              int    `yaml:"close_hour"`
	SessionDurationMinutes int    `yaml:"session_duration_minutes"`
	SlotStepMinutes        int    `yaml:"slot_step_minutes"`
	Timezone               string `yaml:"timezone"`
}

type Config struct {
	Server struct {
		Port   int    `yaml:"port"`
		APIKey string `yaml:"api_key"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	RateLimit struct {
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limit"`

	Schedule ScheduleConfig `yaml:"schedule"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/igrovik.db"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// OpenMinute returns the earliest slot start in minutes since midnight.
func (s ScheduleConfig) OpenMinute() int {
	if s.OpenHour <= 0 || s.OpenHour >= 24 {
		return 9 * 60
	}
	return s.OpenHour * 60
}

// CloseMinute returns the closing bound in minutes since midnight. The
// latest slot start is CloseMinute() - SessionDuration().
func (s ScheduleConfig) CloseMinute() int {
	if s.CloseHour <= 0 || s.CloseHour > 24 || s.CloseHour*60 <= s.OpenMinute() {
		return 17 * 60
	}
	return s.CloseHour * 60
}

// SessionDuration returns the fixed session length in minutes.
func (s ScheduleConfig) SessionDuration() int {
	if s.SessionDurationMinutes <= 0 {
		return 120
	}
	return s.SessionDurationMinutes
}

// SlotStep returns the candidate-start grid step in minutes.
func (s ScheduleConfig) SlotStep() int {
	if s.SlotStepMinutes <= 0 {
		return 60
	}
	return s.SlotStepMinutes
}

// Location resolves the venue timezone, falling back to local time.
func (s ScheduleConfig) Location() *time.Location {
	if s.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// CacheTTL returns the availability cache TTL, zero when caching is off.
func (c *Config) CacheTTL() time.Duration {
	if c.Redis.Address == "" || c.Redis.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

// RateLimitRPS returns the per-client request rate with a sane default.
func (c *Config) RateLimitRPS() float64 {
	if c.RateLimit.RequestsPerSecond <= 0 {
		return 10
	}
	return c.RateLimit.RequestsPerSecond
}

// RateLimitBurst returns the per-client burst with a sane default.
func (c *Config) RateLimitBurst() int {
	if c.RateLimit.Burst <= 0 {
		return 20
	}
	return c.RateLimit.Burst
}
