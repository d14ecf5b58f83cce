package briefing

import "fmt"

// PendingItem pairs an approval item with the stable local ID assigned at
// receipt time. Reviewer decisions reference these IDs, never positions in a
// filtered display list, so two structurally identical items stay unambiguous.
type PendingItem struct {
	ID    string
	Index int
	Item  ApprovalItem
}

// Reply wraps one decoded AgentResponse and owns all approval mutations on it.
// The object handed back by ForSubmission is the original structure with only
// approved/metadata fields added to touched items; the backend requires the
// full original shape echoed back to resume the run.
type Reply struct {
	resp *AgentResponse
	ids  []string
}

// NewReply wraps a decoded response and assigns each approval item its
// stable ID: the tool-call id when present, a positional placeholder otherwise.
func NewReply(resp *AgentResponse) *Reply {
	r := &Reply{resp: resp}
	for i, item := range resp.FlattenedApprovalInfo {
		if item.ToolCall != nil && item.ToolCall.ID != "" {
			r.ids = append(r.ids, item.ToolCall.ID)
		} else {
			r.ids = append(r.ids, fmt.Sprintf("item-%d", i))
		}
	}
	return r
}

// HasApprovalInfo reports whether the response carries any approval items.
func (r *Reply) HasApprovalInfo() bool {
	return len(r.resp.FlattenedApprovalInfo) > 0
}

// HasDisplayableItems reports whether at least one approval item carries a
// tool call or status notice. An approval list of fully empty placeholders
// does not count.
func (r *Reply) HasDisplayableItems() bool {
	for _, item := range r.resp.FlattenedApprovalInfo {
		if item.Displayable() {
			return true
		}
	}
	return false
}

// HasActionableItems reports whether any item requires a reviewer decision.
func (r *Reply) HasActionableItems() bool {
	for _, item := range r.resp.FlattenedApprovalInfo {
		if item.Actionable() {
			return true
		}
	}
	return false
}

// IsFinished reports whether the backend run is over: a nil continuation or
// a "finished" status both mean done.
func (r *Reply) IsFinished() bool {
	c := r.resp.Continuation
	return c == nil || c.Status == ContinuationFinished
}

// Pending returns the approval items with their stable IDs, in wire order.
func (r *Reply) Pending() []PendingItem {
	items := make([]PendingItem, 0, len(r.resp.FlattenedApprovalInfo))
	for i, item := range r.resp.FlattenedApprovalInfo {
		items = append(items, PendingItem{ID: r.ids[i], Index: i, Item: item})
	}
	return items
}

// IndexOf resolves a stable item ID back to its position in the wire array.
func (r *Reply) IndexOf(id string) (int, bool) {
	for i, known := range r.ids {
		if known == id {
			return i, true
		}
	}
	return 0, false
}

// Update records a reviewer decision on the item at index, attaching the
// optional free-text note as metadata. An out-of-range index is a silent
// no-op.
func (r *Reply) Update(index int, approved bool, note string) {
	if index < 0 || index >= len(r.resp.FlattenedApprovalInfo) {
		return
	}
	item := &r.resp.FlattenedApprovalInfo[index]
	item.Approved = &approved
	if note != "" {
		item.Metadata = map[string]string{"metadata": note}
	}
}

// ForSubmission returns the annotated response, ready to be the resume
// payload. Calling it repeatedly without intervening updates yields
// structurally identical output.
func (r *Reply) ForSubmission() *AgentResponse {
	return r.resp
}
