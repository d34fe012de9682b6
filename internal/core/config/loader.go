package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/faultline/internal/core/capability"
	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/faultlog"
	"github.com/vietddude/faultline/internal/recovery"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content, expanding environment variables first.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	var cfg AppConfig
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero values and clamps the fault limits.
func (c *AppConfig) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Environment == "" {
		c.Environment = string(capability.EnvironmentProcess)
	}

	if c.Fault.MaxLogSize == 0 {
		c.Fault.MaxLogSize = faultlog.DefaultMaxSize
	}
	c.Fault.MaxLogSize = min(max(c.Fault.MaxLogSize, faultlog.MinSize), faultlog.MaxSize)

	if c.Fault.MaxRecoveryAttempts == 0 {
		c.Fault.MaxRecoveryAttempts = recovery.DefaultAttempts
	}
	c.Fault.MaxRecoveryAttempts = min(max(c.Fault.MaxRecoveryAttempts, recovery.MinAttempts), recovery.MaxAttemptsCap)

	if c.Fault.RotateInterval < 0 {
		c.Fault.RotateInterval = 0
	}

	if c.Archive.Kind == "" {
		c.Archive.Kind = "none"
	}
	if c.Archive.Redis.TTL == 0 {
		c.Archive.Redis.TTL = 7 * 24 * time.Hour
	}
}

// Validate checks values that cannot be defaulted.
func (c *AppConfig) Validate() error {
	for name, sev := range c.Fault.SeverityRules {
		if _, err := domain.ParseSeverity(sev); err != nil {
			return fmt.Errorf("invalid severity rule for %s: %w", name, err)
		}
	}

	switch strings.ToLower(c.Archive.Kind) {
	case "none":
	case "redis":
		if c.Archive.Redis.URL == "" {
			return fmt.Errorf("archive kind redis requires archive.redis.url")
		}
	case "postgres":
		if c.Archive.Database.URL == "" {
			return fmt.Errorf("archive kind postgres requires archive.database.url")
		}
	default:
		return fmt.Errorf("unknown archive kind %q", c.Archive.Kind)
	}
	return nil
}
