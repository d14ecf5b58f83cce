package console

import (
	"strings"
	"testing"
	"time"

	"github.com/briefgate/briefgate/internal/briefing"
	"github.com/briefgate/briefgate/internal/session"
)

func TestDescribeItem(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		item briefing.ApprovalItem
		want []string
	}{
		{
			name: "search request",
			item: briefing.ApprovalItem{
				ToolCall: &briefing.ToolCall{Function: briefing.ToolFunction{
					Name:          "search",
					JSONArguments: map[string]any{"query": "industry news this week"},
				}},
			},
			want: []string{"online search", "industry news this week"},
		},
		{
			name: "email request",
			item: briefing.ApprovalItem{
				ToolCall: &briefing.ToolCall{Function: briefing.ToolFunction{
					Name: "send_email",
					JSONArguments: map[string]any{
						"email_address": "team@example.com",
						"subject":       "Weekly Briefing",
						"email_content": "Here is the summary.",
					},
				}},
			},
			want: []string{"send an email", "team@example.com", "Weekly Briefing", "Here is the summary."},
		},
		{
			name: "unknown function falls back to arguments",
			item: briefing.ApprovalItem{
				ToolCall: &briefing.ToolCall{Function: briefing.ToolFunction{
					Name:          "create_calendar_event",
					JSONArguments: map[string]any{"title": "standup"},
				}},
			},
			want: []string{"create_calendar_event", "standup"},
		},
		{
			name: "missing function name",
			item: briefing.ApprovalItem{
				ToolCall: &briefing.ToolCall{Function: briefing.ToolFunction{}},
			},
			want: []string{"Unknown Function"},
		},
		{
			name: "status item",
			item: briefing.ApprovalItem{StatusInfo: "research complete"},
			want: []string{"Status update: research complete"},
		},
		{
			name: "status item without info",
			item: briefing.ApprovalItem{},
			want: []string{"No status information available"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := DescribeItem(tt.item)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("DescribeItem() = %q, missing %q", got, want)
				}
			}
		})
	}
}

func TestDescribeHistoryEntry(t *testing.T) {
	t.Parallel()

	entry := session.HistoryEntry{
		FunctionName: "search",
		Path:         "agent -> search",
		Approved:     true,
		Reviewer:     "dana",
		Note:         "fine",
		Timestamp:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	got := DescribeHistoryEntry(entry)
	for _, want := range []string{"Approved: search", "agent -> search", "dana", "fine", "2025-06-01"} {
		if !strings.Contains(got, want) {
			t.Errorf("DescribeHistoryEntry() = %q, missing %q", got, want)
		}
	}

	anon := DescribeHistoryEntry(session.HistoryEntry{FunctionName: "search", Approved: true})
	if !strings.Contains(anon, "Anonymous") {
		t.Errorf("anonymous entry = %q", anon)
	}

	status := DescribeHistoryEntry(session.HistoryEntry{StatusInfo: "archived"})
	if status != "Status update: archived" {
		t.Errorf("status entry = %q", status)
	}
}

func TestBuildDecisions(t *testing.T) {
	t.Parallel()

	pending := []briefing.PendingItem{
		{ID: "tc-0"},
		{ID: "tc-1"},
		{ID: "tc-2"},
	}
	decisions := buildDecisions(pending, []bool{true, false, true}, []string{"note zero", "", ""})

	if len(decisions) != 2 {
		t.Fatalf("decisions = %d, want 2", len(decisions))
	}
	if d := decisions["tc-0"]; !d.Approved || d.Note != "note zero" {
		t.Errorf("tc-0 = %+v", d)
	}
	if _, ok := decisions["tc-1"]; ok {
		t.Error("unapproved item must be omitted")
	}
	if d := decisions["tc-2"]; !d.Approved || d.Note != "" {
		t.Errorf("tc-2 = %+v", d)
	}
}
