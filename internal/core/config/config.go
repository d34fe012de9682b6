package config

import (
	"time"

	"github.com/vietddude/faultline/internal/archive"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server      ServerConfig  `yaml:"server"`
	Logging     LoggingConfig `yaml:"logging"`
	Environment string        `yaml:"environment"` // process, dom, none
	Fault       FaultConfig   `yaml:"fault"`
	Archive     ArchiveConfig `yaml:"archive"`
}

// ServerConfig holds HTTP and gRPC listener settings.
type ServerConfig struct {
	Port     int `yaml:"port"`
	GRPCPort int `yaml:"grpc_port"` // 0 disables the gRPC health service
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json, text
}

// FaultConfig tunes classification, the log and recovery.
type FaultConfig struct {
	MaxLogSize          int               `yaml:"max_log_size"`
	MaxRecoveryAttempts int               `yaml:"max_recovery_attempts"`
	SeverityRules       map[string]string `yaml:"severity_rules"`   // error name -> LOW..CRITICAL
	ContextPatterns     map[string]string `yaml:"context_patterns"` // context tag -> regex
	RotateInterval      time.Duration     `yaml:"rotate_interval"`  // 0 = never
	ProbeURL            string            `yaml:"probe_url"`        // network probe target, 5s deadline
}

// ArchiveConfig selects where rotated log snapshots are shipped.
type ArchiveConfig struct {
	Kind     string                 `yaml:"kind"` // none, redis, postgres
	Redis    archive.RedisConfig    `yaml:"redis"`
	Database archive.PostgresConfig `yaml:"database"`
}
