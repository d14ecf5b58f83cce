package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/robfig/cron/v3"
)

// Validate checks the structural validity of a Config. The agent endpoint
// and token are hard requirements: briefgate fails closed rather than
// starting without a reachable, authenticated backend.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	errs = append(errs, validateAgent(cfg.Agent)...)
	errs = append(errs, validateGateway(cfg.Gateway)...)
	errs = append(errs, validateSessions(cfg.Sessions)...)

	if cfg.Telemetry != nil && cfg.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("config: telemetry.endpoint is required when telemetry is configured"))
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log level %q", cfg.Log.Level))
	}

	return errors.Join(errs...)
}

func validateAgent(agent AgentConfig) []error {
	var errs []error

	if agent.Endpoint == "" {
		errs = append(errs, errors.New("config: agent.endpoint is required"))
	} else if u, err := url.Parse(agent.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("config: agent.endpoint %q is not an absolute URL", agent.Endpoint))
	}

	if agent.Token == "" {
		errs = append(errs, errors.New("config: agent.token is required"))
	}

	if agent.Timeout < 0 {
		errs = append(errs, errors.New("config: agent.timeout must not be negative"))
	}

	return errs
}

func validateGateway(gw GatewayConfig) []error {
	var errs []error

	if gw.Bind == "" {
		errs = append(errs, errors.New("config: gateway.bind is required"))
	}

	if gw.ReadTimeout < 0 {
		errs = append(errs, errors.New("config: gateway.read_timeout must not be negative"))
	}
	if gw.WriteTimeout < 0 {
		errs = append(errs, errors.New("config: gateway.write_timeout must not be negative"))
	}

	return errs
}

func validateSessions(sc SessionsConfig) []error {
	var errs []error

	if sc.Max < 0 {
		errs = append(errs, errors.New("config: sessions.max must not be negative"))
	}
	if sc.MaxIdle < 0 {
		errs = append(errs, errors.New("config: sessions.max_idle must not be negative"))
	}
	if sc.MaxAutoResumes < 0 {
		errs = append(errs, errors.New("config: sessions.max_auto_resumes must not be negative"))
	}

	if sc.PruneSchedule != "" {
		if _, err := cron.ParseStandard(sc.PruneSchedule); err != nil {
			errs = append(errs, fmt.Errorf("config: sessions.prune_schedule: %w", err))
		}
	}

	return errs
}
