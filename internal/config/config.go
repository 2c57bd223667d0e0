// Package config loads runtime settings from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone             = "UTC"
	defaultServerHealthInterval = 300
	defaultUserSyncInterval     = 60
	defaultGatewayTimeout       = 10
	defaultHost                 = "127.0.0.1"
	defaultPort                 = "8080"
)

// fileConfig mirrors the YAML file. Intervals are seconds.
type fileConfig struct {
	Token                string  `yaml:"token"`
	DatabaseURL          string  `yaml:"database_url"`
	Timezone             string  `yaml:"timezone"`
	ServerHealthInterval int     `yaml:"server_health_interval"`
	UserSyncInterval     int     `yaml:"user_sync_interval"`
	LogLevel             string  `yaml:"log_level"`
	LogFormat            string  `yaml:"log_format"`
	Host                 string  `yaml:"host"`
	Port                 string  `yaml:"port"`
	AdminPassword        string  `yaml:"admin_password"`
	GatewayTimeout       int     `yaml:"gateway_timeout"`
	GatewayRPS           float64 `yaml:"gateway_rps"`
}

// Config is the validated runtime configuration.
type Config struct {
	Token                string
	DatabaseURL          string
	Location             *time.Location
	ServerHealthInterval time.Duration
	UserSyncInterval     time.Duration
	LogLevel             string
	LogFormat            string
	Host                 string
	Port                 string
	AdminPassword        string
	GatewayTimeout       time.Duration
	GatewayRPS           float64
}

// Addr is the listen address of the admin HTTP surface.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Load reads path (when non-empty), applies environment overrides and defaults,
// and validates the result.
func Load(path string) (*Config, error) {
	fc := fileConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&fc); err != nil {
		return nil, err
	}
	return build(fc)
}

func applyEnv(fc *fileConfig) error {
	str := map[string]*string{
		"TOKEN":          &fc.Token,
		"DATABASE_URL":   &fc.DatabaseURL,
		"TIMEZONE":       &fc.Timezone,
		"LOG_LEVEL":      &fc.LogLevel,
		"LOG_FORMAT":     &fc.LogFormat,
		"HOST":           &fc.Host,
		"PORT":           &fc.Port,
		"ADMIN_PASSWORD": &fc.AdminPassword,
	}
	for name, dst := range str {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	ints := map[string]*int{
		"SERVER_HEALTH_INTERVAL": &fc.ServerHealthInterval,
		"USER_SYNC_INTERVAL":     &fc.UserSyncInterval,
		"GATEWAY_TIMEOUT":        &fc.GatewayTimeout,
	}
	for name, dst := range ints {
		v, ok := lookup(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not a number of seconds", name, v)
		}
		*dst = n
	}
	if v, ok := lookup("GATEWAY_RPS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("GATEWAY_RPS: %q is not a number", v)
		}
		fc.GatewayRPS = f
	}
	return nil
}

// lookup treats blank variables as unset.
func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func build(fc fileConfig) (*Config, error) {
	var errs []error
	if fc.Token == "" {
		errs = append(errs, errors.New("TOKEN is required"))
	}
	if fc.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if fc.Timezone == "" {
		fc.Timezone = defaultTimezone
	}
	loc, err := time.LoadLocation(fc.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
	}
	seconds := func(name string, v, def int) time.Duration {
		if v == 0 {
			v = def
		}
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
		return time.Duration(v) * time.Second
	}
	cfg := &Config{
		Token:                fc.Token,
		DatabaseURL:          fc.DatabaseURL,
		Location:             loc,
		ServerHealthInterval: seconds("SERVER_HEALTH_INTERVAL", fc.ServerHealthInterval, defaultServerHealthInterval),
		UserSyncInterval:     seconds("USER_SYNC_INTERVAL", fc.UserSyncInterval, defaultUserSyncInterval),
		GatewayTimeout:       seconds("GATEWAY_TIMEOUT", fc.GatewayTimeout, defaultGatewayTimeout),
		LogLevel:             orDefault(fc.LogLevel, "info"),
		LogFormat:            orDefault(fc.LogFormat, "text"),
		Host:                 orDefault(fc.Host, defaultHost),
		Port:                 orDefault(fc.Port, defaultPort),
		AdminPassword:        fc.AdminPassword,
		GatewayRPS:           fc.GatewayRPS,
	}
	if cfg.GatewayRPS < 0 {
		errs = append(errs, errors.New("GATEWAY_RPS must not be negative"))
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q is not text or json", cfg.LogFormat))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
