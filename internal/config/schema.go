// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for briefgate.
package config

import "time"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Agent configures the briefing agent backend connection.
	Agent AgentConfig `yaml:"agent"`

	// Gateway configures the HTTP front-end.
	Gateway GatewayConfig `yaml:"gateway"`

	// Sessions configures session lifecycle limits.
	Sessions SessionsConfig `yaml:"sessions,omitempty"`

	// Audit configures history archiving.
	Audit AuditConfig `yaml:"audit,omitempty"`

	// Telemetry configures trace export. Disabled when absent.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`

	// Log configures diagnostic output.
	Log LogConfig `yaml:"log,omitempty"`
}

// AgentConfig identifies the briefing agent backend.
type AgentConfig struct {
	// Endpoint is the full URL of the agent's invoke endpoint.
	Endpoint string `yaml:"endpoint"`

	// Token is the bearer token sent on every backend call.
	Token string `yaml:"token"`

	// Timeout bounds a single backend round trip. Zero means no timeout;
	// approval-resume calls can legitimately run for minutes.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// GatewayConfig configures the HTTP server.
type GatewayConfig struct {
	// Bind is the listen address (e.g. "127.0.0.1:8080").
	Bind string `yaml:"bind"`

	// Auth holds the inbound bearer token. Empty disables gateway auth,
	// which is only sensible behind a trusted proxy.
	Auth AuthConfig `yaml:"auth,omitempty"`

	// ReadTimeout and WriteTimeout guard slow clients. WriteTimeout must
	// outlast the agent timeout or long resumes get cut off mid-response.
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`

	// WelcomeDoc is an optional path to a markdown document served to new
	// sessions. A built-in message is used when empty.
	WelcomeDoc string `yaml:"welcome_doc,omitempty"`
}

// AuthConfig holds inbound authentication settings.
type AuthConfig struct {
	// Token is compared in constant time against the Bearer header.
	Token string `yaml:"token,omitempty"`
}

// SessionsConfig bounds session lifecycle.
type SessionsConfig struct {
	// Max limits concurrent sessions. Zero means unlimited.
	Max int `yaml:"max,omitempty"`

	// MaxIdle is how long a session may sit untouched before the cleanup
	// job removes it. Zero disables pruning.
	MaxIdle time.Duration `yaml:"max_idle,omitempty"`

	// PruneSchedule is a 5-field cron expression for the cleanup job.
	PruneSchedule string `yaml:"prune_schedule,omitempty"`

	// MaxAutoResumes bounds consecutive status-only resubmissions.
	MaxAutoResumes int `yaml:"max_auto_resumes,omitempty"`
}

// AuditConfig configures the approval history archive.
type AuditConfig struct {
	// LogPath is the JSONL audit log file. Empty disables file logging.
	LogPath string `yaml:"log_path,omitempty"`

	// DBPath is the SQLite archive database. Empty disables the archive.
	DBPath string `yaml:"db_path,omitempty"`
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	// Endpoint is the OTLP/HTTP collector address (host:port).
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for the exporter connection.
	Insecure bool `yaml:"insecure,omitempty"`
}

// LogConfig configures diagnostic output.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level,omitempty"`
}
