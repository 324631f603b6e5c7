package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"goveiss/internal/veiss"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Notify   NotifyConfig   `yaml:"notify"`
	Log      LogConfig      `yaml:"log"`
	Tuning   veiss.Tuning   `yaml:"tuning"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`      // TCP ingest from the bridge
	HTTPPort int    `yaml:"http_port"` // REST API
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	Token string `yaml:"token"`
}

// NotifyConfig points at a ZeroMQ PULL socket receiving the ids of
// validated sets. Notifications are disabled when Host is empty.
type NotifyConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     557,
			HTTPPort: 8080,
		},
		Database: DatabaseConfig{Path: "goveiss.db"},
		Log:      LogConfig{Level: "info"},
		Tuning:   veiss.DefaultTuning(),
	}
}

// Load reads config from a YAML file on top of the defaults, then applies
// environment variable overrides. An empty path skips the file. Env vars
// use the prefix GOVEISS_:
//
//	GOVEISS_SERVER_HOST, GOVEISS_SERVER_PORT, GOVEISS_HTTP_PORT,
//	GOVEISS_DB_PATH, GOVEISS_AUTH_TOKEN,
//	GOVEISS_NOTIFY_HOST, GOVEISS_NOTIFY_PORT, GOVEISS_LOG_LEVEL
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GOVEISS_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("GOVEISS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GOVEISS_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.HTTPPort = port
		}
	}
	if v := os.Getenv("GOVEISS_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("GOVEISS_AUTH_TOKEN"); v != "" {
		cfg.Auth.Token = v
	}
	if v := os.Getenv("GOVEISS_NOTIFY_HOST"); v != "" {
		cfg.Notify.Host = v
	}
	if v := os.Getenv("GOVEISS_NOTIFY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Notify.Port = port
		}
	}
	if v := os.Getenv("GOVEISS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func (this *Config) validate() error {
	if this.Server.Port <= 0 || this.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if this.Server.HTTPPort <= 0 || this.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port must be between 1 and 65535")
	}
	if this.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if this.Notify.Host != "" && this.Notify.Port == 0 {
		return fmt.Errorf("notify.port is required when notify.host is set")
	}
	if _, err := this.Log.SlogLevel(); err != nil {
		return err
	}
	if k := this.Tuning.MedianKernel; k > 0 && k%2 == 0 {
		return fmt.Errorf("tuning.median_kernel must be odd")
	}
	if this.Tuning.MinRepDurationMs > 0 && this.Tuning.MaxRepDurationMs > 0 &&
		this.Tuning.MinRepDurationMs >= this.Tuning.MaxRepDurationMs {
		return fmt.Errorf("tuning.min_rep_duration_ms must be below tuning.max_rep_duration_ms")
	}
	return nil
}

func (this LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(this.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level %q is not one of debug, info, warn, error", this.Level)
}

// NewLogger builds the text logger used by the command line tools.
func (this LogConfig) NewLogger() *slog.Logger {
	level, _ := this.SlogLevel()
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
