package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/briefgate/briefgate/internal/session"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

// handleHealth returns an http.HandlerFunc for GET /health. The gateway has
// no local dependencies that can degrade; backend reachability shows up per
// call, not here.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Sessions: g.store.Len(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Version  string  `json:"version,omitempty"`
	Uptime   float64 `json:"uptime_seconds"`
	Sessions int     `json:"sessions"`
	Awaiting int     `json:"sessions_awaiting_approval"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Version:  g.version,
			Uptime:   time.Since(g.startedAt).Truncate(time.Second).Seconds(),
			Sessions: g.store.Len(),
			Awaiting: g.countAwaiting(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (g *Gateway) countAwaiting() int {
	count := 0
	g.store.Range(func(sess *session.Session) bool {
		if sess.AwaitingApproval() {
			count++
		}
		return true
	})
	return count
}
