package gateway

import (
	"encoding/json"
	"net/http"
)

// defaultWelcomeText greets new sessions when no welcome document is
// configured.
const defaultWelcomeText = "Welcome to the briefing agent. Describe the briefing you need; " +
	"when the agent wants to act on your behalf, you will be asked to approve each step."

// handleWelcomeDoc serves the welcome text shown before a session's first
// prompt.
func (g *Gateway) handleWelcomeDoc() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"welcome": g.welcome})
	}
}

// handleGetConfig returns the current config with secrets redacted.
func (g *Gateway) handleGetConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		raw, err := json.Marshal(g.appConfig)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to serialize config"})
			return
		}

		var generic map[string]any
		if err := json.Unmarshal(raw, &generic); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to parse config"})
			return
		}

		g.redactor.RedactMap(generic)
		writeJSON(w, http.StatusOK, generic)
	}
}
