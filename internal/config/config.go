package config

import (
	"fmt"
	"time"
)

// Config is the full runtime configuration of the discovery daemon.
type Config struct {
	// Admin interface access
	AdminURLFormat string        `yaml:"admin_url_format"`
	AdminPort      int           `yaml:"admin_port"` // 0 = discover via the system service database
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	ConnectRetries int           `yaml:"connect_retries"`
	UserAgent      string        `yaml:"user_agent"`

	// Poll engine
	Hosts        []string      `yaml:"hosts"`
	Services     []string      `yaml:"services"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Concurrency  int           `yaml:"concurrency"`
	DNSRefresh   time.Duration `yaml:"dns_refresh"`

	// Task inventory
	TasksFile string `yaml:"tasks_file"`

	// Operability
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

// Default returns the built-in configuration baseline.
func Default() *Config {
	return &Config{
		AdminURLFormat: "http://%s:%d/%s",
		FetchTimeout:   1 * time.Second,
		ConnectRetries: 3,
		UserAgent:      "meshmon",
		PollInterval:   30 * time.Second,
		Concurrency:    8,
		DNSRefresh:     5 * time.Minute,
		MetricsAddr:    ":9102",
		LogLevel:       "info",
		LogFormat:      "auto",
	}
}

// Validate checks the final configuration for values the daemon cannot
// start with.
func (c *Config) Validate() error {
	if len(c.Hosts) == 0 {
		return fmt.Errorf("no hosts configured")
	}
	if c.AdminPort < 0 || c.AdminPort > 65535 {
		return fmt.Errorf("admin_port out of range: %d", c.AdminPort)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	return nil
}
