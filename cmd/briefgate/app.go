package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/briefgate/briefgate/internal/audit"
	"github.com/briefgate/briefgate/internal/briefing"
	"github.com/briefgate/briefgate/internal/config"
	"github.com/briefgate/briefgate/internal/cron"
	"github.com/briefgate/briefgate/internal/redact"
	"github.com/briefgate/briefgate/internal/session"
	"github.com/briefgate/briefgate/internal/telemetry"
)

// app holds the assembled components shared by serve and console modes.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	redactor *redact.Redactor
	store    *session.Store
	archive  *audit.Archive
	welcome  string

	auditFile   *os.File
	stopTracing func(context.Context) error
}

// buildApp wires everything from configuration: redacted logging, trace
// export, the agent client, audit sinks, and the session store.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	redactor := redact.New()
	redactor.AddLiteral(cfg.Agent.Token)
	redactor.AddLiteral(cfg.Gateway.Auth.Token)

	logger := buildLogger(cfg.Log.Level, redactor)

	var telemetryCfg *telemetry.Config
	if cfg.Telemetry != nil {
		telemetryCfg = &telemetry.Config{
			Endpoint: cfg.Telemetry.Endpoint,
			Insecure: cfg.Telemetry.Insecure,
			Version:  version,
		}
	}
	stopTracing, err := telemetry.Setup(ctx, telemetryCfg)
	if err != nil {
		return nil, err
	}

	client, err := briefing.NewClient(briefing.ClientConfig{
		Endpoint:   cfg.Agent.Endpoint,
		Token:      cfg.Agent.Token,
		HTTPClient: &http.Client{Timeout: cfg.Agent.Timeout},
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:         cfg,
		logger:      logger,
		redactor:    redactor,
		stopTracing: stopTracing,
	}

	recorder, err := a.buildRecorder()
	if err != nil {
		a.close()
		return nil, err
	}

	a.store = session.NewStore(session.Config{
		Agent:          client,
		Logger:         logger,
		Recorder:       recorder,
		MaxAutoResumes: cfg.Sessions.MaxAutoResumes,
	})
	a.store.SetMaxSessions(cfg.Sessions.Max)

	a.welcome, err = loadWelcome(cfg.Gateway.WelcomeDoc)
	if err != nil {
		a.close()
		return nil, err
	}

	return a, nil
}

// buildRecorder assembles the configured audit sinks.
func (a *app) buildRecorder() (session.Recorder, error) {
	var recorders []session.Recorder

	if path := a.cfg.Audit.LogPath; path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		a.auditFile = f
		recorders = append(recorders, audit.NewLogger(audit.LoggerConfig{
			Writer:   f,
			Redactor: a.redactor,
		}))
	}

	if path := a.cfg.Audit.DBPath; path != "" {
		arch, err := audit.OpenArchive(path, a.logger)
		if err != nil {
			return nil, err
		}
		a.archive = arch
		recorders = append(recorders, arch)
	}

	switch len(recorders) {
	case 0:
		return nil, nil
	case 1:
		return recorders[0], nil
	default:
		return audit.Fanout(recorders...), nil
	}
}

// newScheduler builds the maintenance scheduler, or nil when pruning is
// disabled.
func (a *app) newScheduler() (*cron.Scheduler, error) {
	if a.cfg.Sessions.MaxIdle <= 0 {
		return nil, nil
	}

	scheduler := cron.NewScheduler(a.logger)
	err := scheduler.RegisterJob(&cron.SessionCleanupJob{
		Store:        a.store,
		MaxIdle:      a.cfg.Sessions.MaxIdle,
		Logger:       a.logger,
		ScheduleExpr: a.cfg.Sessions.PruneSchedule,
	})
	if err != nil {
		return nil, err
	}
	return scheduler, nil
}

// close releases everything buildApp opened, tolerating partial assembly.
func (a *app) close() {
	if a.archive != nil {
		_ = a.archive.Close()
	}
	if a.auditFile != nil {
		_ = a.auditFile.Close()
	}
	if a.stopTracing != nil {
		_ = a.stopTracing(context.Background())
	}
}

func buildLogger(level string, redactor *redact.Redactor) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(redact.NewHandler(inner, redactor))
}

func loadWelcome(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read welcome doc: %w", err)
	}
	return string(raw), nil
}
