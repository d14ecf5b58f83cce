// Package gateway exposes the approval-resume protocol over HTTP: session
// lifecycle, prompt submission, reviewer decisions, and a WebSocket event
// stream, plus health, status, metrics, and a redacted config view.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/briefgate/briefgate/internal/audit"
	"github.com/briefgate/briefgate/internal/config"
	"github.com/briefgate/briefgate/internal/redact"
	"github.com/briefgate/briefgate/internal/session"
)

const defaultShutdownTimeout = 10 * time.Second

// Options assembles the gateway's collaborators.
type Options struct {
	// Config is the full application config; the gateway section drives the
	// server, the rest backs the redacted config view.
	Config *config.Config

	// Store holds live sessions. Required.
	Store *session.Store

	// Archive serves archived history when configured. Optional.
	Archive *audit.Archive

	// Redactor scrubs the config view. Optional.
	Redactor *redact.Redactor

	// Logger receives gateway diagnostics. Defaults to slog.Default.
	Logger *slog.Logger

	// WelcomeText is shown to new sessions.
	WelcomeText string

	// Version is reported by the status endpoint.
	Version string
}

// Gateway is the HTTP front-end.
type Gateway struct {
	cfg       config.GatewayConfig
	appConfig *config.Config
	store     *session.Store
	archive   *audit.Archive
	redactor  *redact.Redactor
	logger    *slog.Logger
	metrics   *Metrics
	welcome   string
	version   string

	server    *http.Server
	startedAt time.Time
}

// New creates a gateway. Call Start to begin serving.
func New(opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	redactor := opts.Redactor
	if redactor == nil {
		redactor = redact.New()
	}
	welcome := opts.WelcomeText
	if welcome == "" {
		welcome = defaultWelcomeText
	}
	return &Gateway{
		cfg:       opts.Config.Gateway,
		appConfig: opts.Config,
		store:     opts.Store,
		archive:   opts.Archive,
		redactor:  redactor,
		logger:    logger,
		metrics:   NewMetrics(opts.Store),
		welcome:   welcome,
		version:   opts.Version,
	}
}

// Start binds the listen address and serves in the background.
func (g *Gateway) Start() error {
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.cfg.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.cfg.ReadTimeout,
		WriteTimeout: g.cfg.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.cfg.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.cfg.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
