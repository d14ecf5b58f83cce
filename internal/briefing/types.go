// Package briefing defines the wire contract with the briefing agent backend
// and the HTTP client that speaks it. The backend is an opaque remote service:
// it performs multi-step work and pauses for human approval by returning a
// response whose flattened_approval_info array carries pending tool calls.
package briefing

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message roles used by the agent backend.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// ContinuationFinished is the continuation status marking a completed run.
const ContinuationFinished = "finished"

// AgentResponse is the unit returned by the backend on every call. On the
// wire it arrives wrapped in a single-element JSON array; DecodeEnvelope
// unwraps it. Optional fields are pointers so that absent and present-but-null
// stay distinguishable from zero values.
type AgentResponse struct {
	Messages              []Message      `json:"messages,omitempty"`
	FlattenedApprovalInfo []ApprovalItem `json:"flattened_approval_info,omitempty"`
	Continuation          *Continuation  `json:"continuation,omitempty"`

	// Content is a top-level fallback used when no assistant message
	// carries displayable content.
	Content *string `json:"content,omitempty"`
}

// Message is one entry in the conversation transcript.
type Message struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

// Text returns the message content, or "" when content is absent/null.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// Continuation indicates whether a multi-step run has more work pending.
type Continuation struct {
	Status string `json:"status"`
}

// ApprovalItem is one pending decision point surfaced by the agent.
// An item without a tool call is informational only: it carries a status
// notice and never requires a reviewer decision.
type ApprovalItem struct {
	Paths      []string          `json:"paths,omitempty"`
	ToolCall   *ToolCall         `json:"tool_call"`
	StatusInfo string            `json:"status_info,omitempty"`
	Approved   *bool             `json:"approved,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Actionable reports whether the item requires a reviewer decision.
func (it ApprovalItem) Actionable() bool {
	return it.ToolCall != nil
}

// Displayable reports whether the item carries anything worth surfacing:
// either a tool call or a non-empty status notice. Backends occasionally send
// placeholder arrays of fully empty items; those must not trigger approval mode.
func (it ApprovalItem) Displayable() bool {
	return it.ToolCall != nil || it.StatusInfo != ""
}

// Path joins the item's call path for display.
func (it ApprovalItem) Path() string {
	return strings.Join(it.Paths, " -> ")
}

// ToolCall is a structured request from the agent to invoke a named function
// with arguments, requiring human sign-off before the run continues.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Function ToolFunction `json:"function"`
}

// ToolFunction carries the function name plus both the raw argument string
// and its structured form, exactly as the backend emits them.
type ToolFunction struct {
	Name          string         `json:"name,omitempty"`
	Arguments     string         `json:"arguments,omitempty"`
	JSONArguments map[string]any `json:"json_arguments,omitempty"`
}

// CallID returns the tool call's identity, falling back to a positional
// placeholder when the backend omitted the id.
func (tc ToolCall) CallID(index int) string {
	if tc.ID != "" {
		return tc.ID
	}
	return fmt.Sprintf("unknown_%d", index)
}

// DecodeEnvelope parses a raw backend reply. The API contract is a JSON array
// wrapping exactly one response object, but a bare object is accepted too.
func DecodeEnvelope(raw json.RawMessage) (*AgentResponse, error) {
	var list []AgentResponse
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return nil, fmt.Errorf("briefing: empty response array")
		}
		return &list[0], nil
	}

	var resp AgentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("briefing: malformed response body: %w", err)
	}
	return &resp, nil
}
