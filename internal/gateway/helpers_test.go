package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/briefgate/briefgate/internal/config"
	"github.com/briefgate/briefgate/internal/session"
)

// scriptedAgent returns canned raw responses in order.
type scriptedAgent struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	idx       int
}

func (a *scriptedAgent) Send(_ context.Context, _ any) (json.RawMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.idx >= len(a.responses) {
		return nil, fmt.Errorf("no more scripted responses")
	}
	i := a.idx
	a.idx++
	if i < len(a.errs) && a.errs[i] != nil {
		return nil, a.errs[i]
	}
	return json.RawMessage(a.responses[i]), nil
}

func testConfig() *config.Config {
	return &config.Config{
		Version: "1",
		Agent: config.AgentConfig{
			Endpoint: "https://agents.example.com/invoke",
			Token:    "backend-secret-token",
		},
		Gateway: config.GatewayConfig{
			Bind: "127.0.0.1:0",
		},
	}
}

// newTestGateway builds a gateway with a scripted agent behind its store.
func newTestGateway(t *testing.T, agent session.Agent) *Gateway {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := session.NewStore(session.Config{Agent: agent, Logger: logger})
	return New(Options{
		Config: testConfig(),
		Store:  store,
		Logger: logger,
	})
}
