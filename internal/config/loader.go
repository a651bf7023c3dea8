package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const envPrefix = "MESHMON_"

// Load builds the configuration in order of precedence: defaults, then the
// YAML config file (if any), then environment variables. An empty path skips
// the file stage.
func Load(path string) (*Config, error) {
	// A .env next to the process is applied to the environment first, so
	// deployments can ship overrides as a file.
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded environment overrides from .env")
	}

	cfg := Default()

	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	loadEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("Loaded config file")
	return nil
}

func loadEnv(cfg *Config) {
	if val := os.Getenv(envPrefix + "ADMIN_URL_FORMAT"); val != "" {
		cfg.AdminURLFormat = val
	}
	if val := os.Getenv(envPrefix + "ADMIN_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.AdminPort = port
		}
	}
	if val := os.Getenv(envPrefix + "FETCH_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.FetchTimeout = d
		}
	}
	if val := os.Getenv(envPrefix + "CONNECT_RETRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.ConnectRetries = n
		}
	}
	if val := os.Getenv(envPrefix + "HOSTS"); val != "" {
		cfg.Hosts = splitList(val)
	}
	if val := os.Getenv(envPrefix + "SERVICES"); val != "" {
		cfg.Services = splitList(val)
	}
	if val := os.Getenv(envPrefix + "POLL_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.PollInterval = d
		}
	}
	if val := os.Getenv(envPrefix + "CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Concurrency = n
		}
	}
	if val := os.Getenv(envPrefix + "TASKS_FILE"); val != "" {
		cfg.TasksFile = val
	}
	if val := os.Getenv(envPrefix + "METRICS_ADDR"); val != "" {
		cfg.MetricsAddr = val
	}
	if val := os.Getenv(envPrefix + "LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}
	if val := os.Getenv(envPrefix + "LOG_FORMAT"); val != "" {
		cfg.LogFormat = val
	}
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
