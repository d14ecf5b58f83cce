package session

import "time"

// HistoryEntry is one append-only audit record. Entries come in two shapes:
// a full approval record for a reviewed tool call, or a status-only record
// for an informational item that required no decision. Entries are never
// mutated after creation.
type HistoryEntry struct {
	ToolCallID   string         `json:"tool_call_id,omitempty"`
	Path         string         `json:"path,omitempty"`
	FunctionName string         `json:"function_name,omitempty"`
	Args         string         `json:"function_args,omitempty"`
	JSONArgs     map[string]any `json:"json_args,omitempty"`
	Approved     bool           `json:"approved,omitempty"`
	Reviewer     string         `json:"reviewer_id,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Note         string         `json:"message,omitempty"`
	StatusInfo   string         `json:"status_info,omitempty"`
}

// IsStatus reports whether the entry is a status-only record.
func (e HistoryEntry) IsStatus() bool {
	return e.StatusInfo != "" && e.ToolCallID == ""
}

// Recorder receives history entries as they are appended, letting an audit
// sink archive decisions beyond the session's own in-memory log. A nil
// recorder is valid and means in-memory only.
type Recorder interface {
	Record(sessionID string, entry HistoryEntry)
}
