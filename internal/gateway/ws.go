package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

// stateEvent is one message on the session event stream.
type stateEvent struct {
	SessionID string    `json:"session_id"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// handleSessionEvents streams state transitions for one session. Clients use
// it as a re-render hint and refetch the snapshot endpoint; events may be
// coalesced under load.
func (g *Gateway) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess := g.store.Get(id)
	if sess == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.logger.Error("websocket accept failed", "session", id, "error", err)
		return
	}
	defer func() {
		_ = conn.Close(websocket.StatusInternalError, "unexpected close")
	}()

	events, cancel := sess.Watch()
	defer cancel()

	ctx := r.Context()

	// Discard inbound frames so pings and client closes are processed.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	// Initial event so clients render without waiting for a transition.
	if err := g.writeEvent(ctx, conn, id, string(sess.State())); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case state, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "session closed")
				return
			}
			if err := g.writeEvent(ctx, conn, id, string(state)); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) writeEvent(ctx context.Context, conn *websocket.Conn, id, state string) error {
	data, err := json.Marshal(stateEvent{
		SessionID: id,
		State:     state,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
