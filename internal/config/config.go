// Package config loads prodhub settings from a YAML file and PRODHUB_*
// environment variables. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "PRODHUB_"

type CalendarConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Exclude []string      `yaml:"exclude"`
	Timeout time.Duration `yaml:"timeout"`
}

type SuggestConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type Config struct {
	Driver      string         `yaml:"driver"`
	DSN         string         `yaml:"dsn"`
	Owner       string         `yaml:"owner"`
	Timezone    string         `yaml:"timezone"`
	LogLevel    string         `yaml:"log_level"`
	WatchFile   bool           `yaml:"watch_file"`
	MetricsAddr string         `yaml:"metrics_addr"`
	Calendar    CalendarConfig `yaml:"calendar"`
	Suggest     SuggestConfig  `yaml:"suggest"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	owner := strings.TrimSpace(os.Getenv("USER"))
	if owner == "" {
		owner = "local"
	}
	return Config{
		Driver:    "sqlite",
		Owner:     owner,
		Timezone:  "Local",
		LogLevel:  "warn",
		WatchFile: true,
		Calendar: CalendarConfig{
			Exclude: []string{"birthday"},
			Timeout: 15 * time.Second,
		},
		Suggest: SuggestConfig{
			Model:   "gemini-2.0-flash",
			Timeout: 60 * time.Second,
		},
	}
}

// DefaultPath returns ~/.config/prodhub/config.yaml
func DefaultPath() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "prodhub", "config.yaml"), nil
}

// Load reads path over the defaults and applies the environment. A missing
// file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating the directory.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (c Config) Validate() error {
	switch c.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.Driver == "postgres" && strings.TrimSpace(c.DSN) == "" {
		return errors.New("postgres driver requires dsn")
	}
	if strings.TrimSpace(c.Owner) == "" {
		return errors.New("owner is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone; "Local" and "" mean the system zone.
func (c Config) Location() (*time.Location, error) {
	switch strings.TrimSpace(c.Timezone) {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Per-owner settings kept in the backing store.
const (
	SettingTimezone        = "timezone"
	SettingCalendarExclude = "calendar.exclude"
)

// WithSettings overlays the owner's stored settings onto c. Stored settings
// win over the file and the environment.
func (c Config) WithSettings(settings map[string]string) (Config, error) {
	if tz := strings.TrimSpace(settings[SettingTimezone]); tz != "" {
		c.Timezone = tz
	}
	if raw, ok := settings[SettingCalendarExclude]; ok {
		c.Calendar.Exclude = splitList(raw)
	}
	return c, c.Validate()
}

func applyEnv(c *Config) error {
	stringEnv("DRIVER", &c.Driver)
	stringEnv("DSN", &c.DSN)
	stringEnv("OWNER", &c.Owner)
	stringEnv("TIMEZONE", &c.Timezone)
	stringEnv("LOG_LEVEL", &c.LogLevel)
	stringEnv("METRICS_ADDR", &c.MetricsAddr)
	stringEnv("CALENDAR_BASE_URL", &c.Calendar.BaseURL)
	stringEnv("CALENDAR_TOKEN", &c.Calendar.Token)
	stringEnv("SUGGEST_BASE_URL", &c.Suggest.BaseURL)
	stringEnv("SUGGEST_API_KEY", &c.Suggest.APIKey)
	stringEnv("SUGGEST_MODEL", &c.Suggest.Model)
	listEnv("CALENDAR_EXCLUDE", &c.Calendar.Exclude)

	var errs []error
	errs = append(errs,
		boolEnv("WATCH_FILE", &c.WatchFile),
		durationEnv("CALENDAR_TIMEOUT", &c.Calendar.Timeout),
		durationEnv("SUGGEST_TIMEOUT", &c.Suggest.Timeout),
	)
	return errors.Join(errs...)
}

func lookup(name string) (string, bool) {
	raw, ok := os.LookupEnv(envPrefix + name)
	return strings.TrimSpace(raw), ok
}

func stringEnv(name string, dst *string) {
	if raw, ok := lookup(name); ok && raw != "" {
		*dst = raw
	}
}

// listEnv reads a comma-separated list; an explicitly empty value clears it.
func listEnv(name string, dst *[]string) {
	raw, ok := lookup(name)
	if !ok {
		return
	}
	*dst = splitList(raw)
}

// splitList never returns nil so that an empty value stays distinguishable
// from an unset one.
func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func boolEnv(name string, dst *bool) error {
	raw, ok := lookup(name)
	if !ok || raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid %s%s=%q", envPrefix, name, raw)
	}
	*dst = v
	return nil
}

func durationEnv(name string, dst *time.Duration) error {
	raw, ok := lookup(name)
	if !ok || raw == "" {
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s%s=%q", envPrefix, name, raw)
	}
	*dst = v
	return nil
}
