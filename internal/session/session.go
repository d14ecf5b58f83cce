// Package session implements the approval-resume protocol: per-session state,
// the transition rules between chatting and awaiting-approval, reviewer batch
// processing, and the append-only history log. Each session is an isolated
// unit of state driving at most one outstanding agent call at a time.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/briefgate/briefgate/internal/briefing"
)

// State identifies where a session is in the approval-resume cycle. There is
// no terminal state: a session loops between chatting and awaiting approval
// until it is deleted.
type State string

// Session states.
const (
	StateWelcome          State = "welcome"
	StateChatting         State = "chatting"
	StateAwaitingApproval State = "awaiting_approval"
)

// DeclineMessage is appended to the transcript when a reviewer disapproves.
const DeclineMessage = "You have declined the request, so the briefing agent will not proceed. " +
	"If you wish to continue later, please start a new conversation."

// defaultMaxAutoResumes bounds consecutive automatic resubmissions of
// status-only batches, so a backend stuck emitting informational items
// cannot spin the session forever.
const defaultMaxAutoResumes = 10

// Sentinel errors for invalid operation/state combinations.
var (
	ErrWelcomeActive     = errors.New("session: dismiss the welcome screen first")
	ErrApprovalPending   = errors.New("session: an approval batch is pending")
	ErrNoApprovalPending = errors.New("session: no approval batch is pending")
	ErrAutoResumeLimit   = errors.New("session: automatic resume limit reached")
)

// Agent abstracts the briefing backend. *briefing.Client satisfies it; tests
// substitute scripted implementations.
type Agent interface {
	Send(ctx context.Context, payload any) (json.RawMessage, error)
}

// Decision is one reviewer verdict on an actionable approval item, keyed by
// the item's stable ID in SubmitDecisions.
type Decision struct {
	Approved bool   `json:"approved"`
	Note     string `json:"note,omitempty"`
}

// Config assembles a session's collaborators.
type Config struct {
	// Agent performs the actual backend calls. Required.
	Agent Agent
	// Logger receives session diagnostics. Defaults to slog.Default.
	Logger *slog.Logger
	// Recorder archives history entries beyond the in-memory log. Optional.
	Recorder Recorder
	// MaxAutoResumes overrides the status-only auto-resubmission bound.
	MaxAutoResumes int
	// Now overrides time.Now for testing.
	Now func() time.Time
}

// Session owns one conversation with the briefing agent. All methods are safe
// for concurrent use; the internal mutex also enforces the one-batch-at-a-time
// discipline, so a second operation blocks until the in-flight one resolves.
type Session struct {
	id             string
	agent          Agent
	logger         *slog.Logger
	recorder       Recorder
	maxAutoResumes int
	now            func() time.Time

	mu         sync.Mutex
	state      State
	transcript []briefing.Message
	current    *briefing.Reply
	reviewer   string
	loggedIn   bool
	history    []HistoryEntry
	processed  map[string]struct{}
	createdAt  time.Time

	// lastActive has its own lock so idle checks never wait on the main
	// mutex, which is held across entire agent round trips.
	activeMu   sync.Mutex
	lastActive time.Time

	notifier notifier
}

// New creates a session in the welcome state.
func New(id string, cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	maxAuto := cfg.MaxAutoResumes
	if maxAuto <= 0 {
		maxAuto = defaultMaxAutoResumes
	}
	return &Session{
		id:             id,
		agent:          cfg.Agent,
		logger:         logger.With("session", id),
		recorder:       cfg.Recorder,
		maxAutoResumes: maxAuto,
		now:            now,
		state:          StateWelcome,
		processed:      make(map[string]struct{}),
		createdAt:      now(),
		lastActive:     now(),
	}
}

// ID returns the session's opaque identifier.
func (s *Session) ID() string { return s.id }

// State returns the current protocol state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Welcome reports whether the welcome screen is still active.
func (s *Session) Welcome() bool {
	return s.State() == StateWelcome
}

// DismissWelcome performs the explicit welcome dismissal and returns the
// resulting state. Dismissing twice is harmless.
func (s *Session) DismissWelcome() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateWelcome {
		s.setState(StateChatting)
	}
	return s.state
}

// AwaitingApproval reports whether a reviewer decision is required.
func (s *Session) AwaitingApproval() bool {
	return s.State() == StateAwaitingApproval
}

// Transcript returns a copy of the chat transcript.
func (s *Session) Transcript() []briefing.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]briefing.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// History returns a copy of the session's history log.
func (s *Session) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// PendingApprovals returns the approval items awaiting a decision, with their
// stable IDs, or nil when the session is not in approval mode.
func (s *Session) PendingApprovals() []briefing.PendingItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current.Pending()
}

// Login attaches a reviewer identity to subsequent history entries. This is a
// display label only; no verification happens anywhere.
func (s *Session) Login(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviewer = name
	s.loggedIn = true
}

// Logout clears the reviewer identity and nothing else.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviewer = ""
	s.loggedIn = false
}

// Reviewer returns the reviewer identity, or "" when not logged in.
func (s *Session) Reviewer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loggedIn {
		return ""
	}
	return s.reviewer
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createdAt
}

// LastActive returns the time of the most recent user-driven operation. It
// does not take the main session lock, so it stays responsive while an agent
// call is in flight.
func (s *Session) LastActive() time.Time {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	return s.lastActive
}

// Watch subscribes to state-change events. The returned cancel function must
// be called to release the subscription. Events may be coalesced under load;
// watchers are a re-render hint, the snapshot endpoints stay authoritative.
func (s *Session) Watch() (<-chan State, func()) {
	return s.notifier.subscribe()
}

// Close releases the session's watcher subscriptions; their channels close
// so streaming clients see the session end. The store calls this on removal.
func (s *Session) Close() {
	s.notifier.closeAll()
}

// Reset starts a new conversation: the transcript and any pending approval
// cycle are discarded. The history log and reviewer identity survive; the
// log is append-only, and logout is a separate action.
func (s *Session) Reset() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = nil
	s.current = nil
	s.setState(StateChatting)
	return s.state
}

// SubmitPrompt sends an ordinary user turn to the agent and folds the
// response into session state. The returned state tells the caller whether
// plain content arrived (chatting) or approval mode was entered. On failure
// the session is left unchanged apart from the already-appended user message,
// and the same prompt may simply be submitted again.
func (s *Session) SubmitPrompt(ctx context.Context, prompt string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateWelcome:
		return s.state, ErrWelcomeActive
	case StateAwaitingApproval:
		return s.state, ErrApprovalPending
	}

	s.touch()
	s.appendMessage(briefing.RoleUser, prompt)

	reply, err := s.roundTrip(ctx, briefing.PromptRequest{Prompt: prompt})
	if err != nil {
		return s.state, err
	}

	return s.state, s.absorb(ctx, reply)
}

// SubmitDecisions processes one reviewer batch and resumes the agent.
// Decisions are keyed by stable item ID; absent or unapproved entries leave
// the corresponding item untouched, so it can be decided in a later batch.
// Recorded history is never rolled back, even when resubmission fails:
// at-most-once bookkeeping is preferred over duplicate credit.
func (s *Session) SubmitDecisions(ctx context.Context, decisions map[string]Decision) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingApproval || s.current == nil {
		return s.state, ErrNoApprovalPending
	}

	s.touch()
	s.annotate(s.current, decisions)

	reply, err := s.roundTrip(ctx, s.current.ForSubmission())
	if err != nil {
		// Stay in approval mode; the reviewer may resend the batch.
		return s.state, err
	}

	s.current = nil
	return s.state, s.absorb(ctx, reply)
}

// Disapprove abandons the current approval cycle without resubmission. A
// terminal assistant message explains the decline; partly-filled notes are
// simply dropped with the cycle.
func (s *Session) Disapprove() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingApproval {
		return s.state, ErrNoApprovalPending
	}

	s.touch()
	s.current = nil
	s.appendMessage(briefing.RoleAssistant, DeclineMessage)
	s.setState(StateChatting)
	return s.state, nil
}

// annotate applies reviewer decisions to the reply and appends history
// entries. Informational items are marked approved on the wire and yield a
// status entry; actionable items yield an approval entry only when approved,
// guarded against reprocessing the same tool-call id.
func (s *Session) annotate(reply *briefing.Reply, decisions map[string]Decision) {
	for _, pending := range reply.Pending() {
		item := pending.Item

		if !item.Actionable() {
			// Already annotated on a previous pass over this reply, e.g. a
			// retried batch after a failed resubmission.
			if item.Approved != nil {
				continue
			}
			if item.Displayable() {
				s.recordStatus(item.StatusInfo)
			}
			reply.Update(pending.Index, true, "")
			continue
		}

		d, ok := decisions[pending.ID]
		if !ok || !d.Approved {
			continue
		}

		callID := item.ToolCall.CallID(pending.Index)
		if _, dup := s.processed[callID]; dup {
			s.logger.Warn("tool call already processed, skipping", "tool_call", callID)
			continue
		}

		reply.Update(pending.Index, true, d.Note)
		s.processed[callID] = struct{}{}
		s.recordApproval(item, callID, d.Note)
	}
}

// absorb folds a fresh agent reply into session state, re-running the
// transition rules. Status-only approval batches are auto-approved and
// resubmitted immediately, up to the auto-resume bound.
func (s *Session) absorb(ctx context.Context, reply *briefing.Reply) error {
	for range s.maxAutoResumes {
		if reply.HasApprovalInfo() && reply.HasDisplayableItems() {
			if reply.HasActionableItems() {
				s.current = reply
				s.setState(StateAwaitingApproval)
				return nil
			}

			// Every item is informational: auto-approve with no reviewer
			// interaction and resume straight away.
			s.annotate(reply, nil)
			next, err := s.roundTrip(ctx, reply.ForSubmission())
			if err != nil {
				s.setState(StateChatting)
				return err
			}
			reply = next
			continue
		}

		s.appendMessage(briefing.RoleAssistant, extractContent(reply.ForSubmission()))
		s.setState(StateChatting)
		return nil
	}

	s.setState(StateChatting)
	return fmt.Errorf("%w (%d rounds)", ErrAutoResumeLimit, s.maxAutoResumes)
}

// roundTrip performs one agent call and decodes the envelope. Callers hold
// the session lock for the duration, which is what serializes batches.
func (s *Session) roundTrip(ctx context.Context, payload any) (*briefing.Reply, error) {
	raw, err := s.agent.Send(ctx, payload)
	if err != nil {
		return nil, err
	}
	resp, err := briefing.DecodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	return briefing.NewReply(resp), nil
}

func (s *Session) appendMessage(role, content string) {
	s.transcript = append(s.transcript, briefing.Message{Role: role, Content: &content})
	s.notifier.broadcast(s.state)
}

func (s *Session) setState(next State) {
	s.state = next
	s.notifier.broadcast(next)
}

func (s *Session) touch() {
	s.activeMu.Lock()
	s.lastActive = s.now()
	s.activeMu.Unlock()
}

func (s *Session) recordStatus(statusInfo string) {
	if statusInfo == "" {
		statusInfo = "No status information available"
	}
	s.appendHistory(HistoryEntry{
		StatusInfo: statusInfo,
		Timestamp:  s.now(),
	})
}

func (s *Session) recordApproval(item briefing.ApprovalItem, callID, note string) {
	reviewer := ""
	if s.loggedIn {
		reviewer = s.reviewer
	}
	s.appendHistory(HistoryEntry{
		ToolCallID:   callID,
		Path:         item.Path(),
		FunctionName: item.ToolCall.Function.Name,
		Args:         item.ToolCall.Function.Arguments,
		JSONArgs:     item.ToolCall.Function.JSONArguments,
		Approved:     true,
		Reviewer:     reviewer,
		Timestamp:    s.now(),
		Note:         note,
	})
}

func (s *Session) appendHistory(entry HistoryEntry) {
	s.history = append(s.history, entry)
	if s.recorder != nil {
		s.recorder.Record(s.id, entry)
	}
}
