package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/briefgate/briefgate/internal/briefing"
	"github.com/briefgate/briefgate/internal/session"
	"github.com/go-chi/chi/v5"
)

// messageJSON is a serializable transcript message.
type messageJSON struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// pendingJSON is a serializable pending approval item.
type pendingJSON struct {
	ID            string         `json:"id"`
	Path          string         `json:"path,omitempty"`
	Function      string         `json:"function,omitempty"`
	Arguments     string         `json:"arguments,omitempty"`
	JSONArguments map[string]any `json:"json_arguments,omitempty"`
	StatusInfo    string         `json:"status_info,omitempty"`
	Actionable    bool           `json:"actionable"`
}

// sessionJSON is a serializable session snapshot.
type sessionJSON struct {
	ID           string        `json:"id"`
	State        string        `json:"state"`
	Reviewer     string        `json:"reviewer,omitempty"`
	Transcript   []messageJSON `json:"transcript"`
	Pending      []pendingJSON `json:"pending,omitempty"`
	CreatedAt    string        `json:"created_at"`
	LastActiveAt string        `json:"last_active_at"`
}

func snapshotSession(sess *session.Session) sessionJSON {
	transcript := []messageJSON{}
	for _, msg := range sess.Transcript() {
		transcript = append(transcript, messageJSON{Role: msg.Role, Content: msg.Text()})
	}

	var pending []pendingJSON
	for _, p := range sess.PendingApprovals() {
		pj := pendingJSON{
			ID:         p.ID,
			Path:       p.Item.Path(),
			StatusInfo: p.Item.StatusInfo,
			Actionable: p.Item.Actionable(),
		}
		if p.Item.ToolCall != nil {
			pj.Function = p.Item.ToolCall.Function.Name
			pj.Arguments = p.Item.ToolCall.Function.Arguments
			pj.JSONArguments = p.Item.ToolCall.Function.JSONArguments
		}
		pending = append(pending, pj)
	}

	return sessionJSON{
		ID:           sess.ID(),
		State:        string(sess.State()),
		Reviewer:     sess.Reviewer(),
		Transcript:   transcript,
		Pending:      pending,
		CreatedAt:    sess.CreatedAt().UTC().Format(time.RFC3339),
		LastActiveAt: sess.LastActive().UTC().Format(time.RFC3339),
	}
}

// handleCreateSession registers a new session and returns its snapshot
// together with the welcome text.
func (g *Gateway) handleCreateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		sess, err := g.store.Create()
		if err != nil {
			if errors.Is(err, session.ErrSessionLimit) {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
				return
			}
			g.logger.Error("session creation failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "session creation failed"})
			return
		}

		g.metrics.SessionCreated()
		g.logger.Info("session created", "session", sess.ID())

		body := struct {
			sessionJSON
			Welcome string `json:"welcome"`
		}{snapshotSession(sess), g.welcome}
		writeJSON(w, http.StatusCreated, body)
	}
}

// handleListSessions returns all active sessions as JSON.
func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		sessions := []sessionJSON{}
		g.store.Range(func(sess *session.Session) bool {
			sessions = append(sessions, snapshotSession(sess))
			return true
		})
		writeJSON(w, http.StatusOK, sessions)
	}
}

func (g *Gateway) handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := g.lookup(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, snapshotSession(sess))
	}
}

func (g *Gateway) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := g.lookup(w, r)
		if !ok {
			return
		}
		g.store.Delete(sess.ID())
		g.logger.Info("session deleted", "session", sess.ID())
		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePrompt submits one user turn.
func (g *Gateway) handlePrompt() http.HandlerFunc {
	type request struct {
		Prompt string `json:"prompt"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := g.lookup(w, r)
		if !ok {
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prompt is required"})
			return
		}

		g.metrics.PromptSubmitted()
		if _, err := sess.SubmitPrompt(r.Context(), req.Prompt); err != nil {
			g.writeSessionError(w, sess, err)
			return
		}
		writeJSON(w, http.StatusOK, snapshotSession(sess))
	}
}

// handleApprovals submits one reviewer batch.
func (g *Gateway) handleApprovals() http.HandlerFunc {
	type request struct {
		Decisions map[string]session.Decision `json:"decisions"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := g.lookup(w, r)
		if !ok {
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		g.metrics.DecisionSubmitted("approve")
		if _, err := sess.SubmitDecisions(r.Context(), req.Decisions); err != nil {
			g.writeSessionError(w, sess, err)
			return
		}
		writeJSON(w, http.StatusOK, snapshotSession(sess))
	}
}

func (g *Gateway) handleDisapprove() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := g.lookup(w, r)
		if !ok {
			return
		}

		g.metrics.DecisionSubmitted("disapprove")
		if _, err := sess.Disapprove(); err != nil {
			g.writeSessionError(w, sess, err)
			return
		}
		writeJSON(w, http.StatusOK, snapshotSession(sess))
	}
}

func (g *Gateway) handleDismissWelcome() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := g.lookup(w, r)
		if !ok {
			return
		}
		sess.DismissWelcome()
		writeJSON(w, http.StatusOK, snapshotSession(sess))
	}
}

func (g *Gateway) handleLogin() http.HandlerFunc {
	type request struct {
		Reviewer string `json:"reviewer"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := g.lookup(w, r)
		if !ok {
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reviewer == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reviewer is required"})
			return
		}

		sess.Login(req.Reviewer)
		writeJSON(w, http.StatusOK, snapshotSession(sess))
	}
}

func (g *Gateway) handleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := g.lookup(w, r)
		if !ok {
			return
		}
		sess.Logout()
		writeJSON(w, http.StatusOK, snapshotSession(sess))
	}
}

func (g *Gateway) handleReset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := g.lookup(w, r)
		if !ok {
			return
		}
		sess.Reset()
		writeJSON(w, http.StatusOK, snapshotSession(sess))
	}
}

// handleSessionHistory returns the live session's in-memory history log.
func (g *Gateway) handleSessionHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := g.lookup(w, r)
		if !ok {
			return
		}
		history := sess.History()
		if history == nil {
			history = []session.HistoryEntry{}
		}
		writeJSON(w, http.StatusOK, history)
	}
}

// handleArchivedHistory serves archived entries, which survive session
// deletion and restarts. 404s when no archive is configured.
func (g *Gateway) handleArchivedHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.archive == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no archive configured"})
			return
		}

		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
				return
			}
			limit = n
		}

		entries, err := g.archive.Recent(r.Context(), chi.URLParam(r, "id"), limit)
		if err != nil {
			g.logger.Error("archive query failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "archive query failed"})
			return
		}
		if entries == nil {
			entries = []session.HistoryEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// lookup resolves the session from the URL, writing a 404 when absent.
func (g *Gateway) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing session id"})
		return nil, false
	}
	sess := g.store.Get(id)
	if sess == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return nil, false
	}
	return sess, true
}

// writeSessionError maps protocol errors to HTTP codes. State conflicts are
// 409s the client can recover from by refreshing its snapshot; backend
// failures surface as 502 with the status the agent returned.
func (g *Gateway) writeSessionError(w http.ResponseWriter, sess *session.Session, err error) {
	switch {
	case errors.Is(err, session.ErrWelcomeActive),
		errors.Is(err, session.ErrApprovalPending),
		errors.Is(err, session.ErrNoApprovalPending):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": err.Error(),
			"state": string(sess.State()),
		})
	default:
		g.metrics.AgentError()
		g.logger.Error("agent call failed", "session", sess.ID(), "error", err)

		body := map[string]string{"error": err.Error(), "state": string(sess.State())}
		var apiErr *briefing.APIError
		if errors.As(err, &apiErr) && apiErr.Status != 0 {
			body["agent_status"] = strconv.Itoa(apiErr.Status)
		}
		writeJSON(w, http.StatusBadGateway, body)
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
