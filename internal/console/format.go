package console

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/briefgate/briefgate/internal/briefing"
	"github.com/briefgate/briefgate/internal/session"
)

// DescribeItem renders one approval item for the terminal. Search and email
// requests get tailored wording; anything else falls back to the function
// name and raw arguments.
func DescribeItem(item briefing.ApprovalItem) string {
	if item.ToolCall == nil {
		status := item.StatusInfo
		if status == "" {
			status = "No status information available"
		}
		return "Status update: " + status
	}

	fn := item.ToolCall.Function
	args := fn.JSONArguments

	switch fn.Name {
	case "search":
		return fmt.Sprintf(
			"The briefing agent wants to perform an online search using the following query:\n  %s",
			stringArg(args, "query"))
	case "send_email":
		return fmt.Sprintf(
			"The briefing agent wants to send an email on your behalf with the following details:\n"+
				"  Recipient: %s\n  Subject: %s\n  Content:\n%s",
			stringArg(args, "email_address"),
			stringArg(args, "subject"),
			indent(stringArg(args, "email_content"), "    "))
	default:
		name := fn.Name
		if name == "" {
			name = "Unknown Function"
		}
		return fmt.Sprintf(
			"The briefing agent wants to call %s with arguments:\n%s",
			name, indent(formatArgs(fn), "  "))
	}
}

// DescribeHistoryEntry renders one history entry for the terminal.
func DescribeHistoryEntry(entry session.HistoryEntry) string {
	if entry.IsStatus() {
		return "Status update: " + entry.StatusInfo
	}

	verdict := "Disapproved"
	if entry.Approved {
		verdict = "Approved"
	}
	reviewer := entry.Reviewer
	if reviewer == "" {
		reviewer = "Anonymous"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", verdict, entry.FunctionName)
	if entry.Path != "" {
		fmt.Fprintf(&b, " (%s)", entry.Path)
	}
	fmt.Fprintf(&b, "\n  Reviewer: %s", reviewer)
	if entry.Note != "" {
		fmt.Fprintf(&b, "\n  Note: %s", entry.Note)
	}
	if !entry.Timestamp.IsZero() {
		fmt.Fprintf(&b, "\n  Timestamp: %s", entry.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

// buildDecisions assembles the decision batch from parallel form results.
// Unapproved items are omitted so they stay undecided on the wire.
func buildDecisions(pending []briefing.PendingItem, approved []bool, notes []string) map[string]session.Decision {
	decisions := make(map[string]session.Decision)
	for i, p := range pending {
		if i >= len(approved) || !approved[i] {
			continue
		}
		d := session.Decision{Approved: true}
		if i < len(notes) {
			d.Note = notes[i]
		}
		decisions[p.ID] = d
	}
	return decisions
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func formatArgs(fn briefing.ToolFunction) string {
	if len(fn.JSONArguments) > 0 {
		if raw, err := json.MarshalIndent(fn.JSONArguments, "", "  "); err == nil {
			return string(raw)
		}
	}
	if fn.Arguments != "" {
		return fn.Arguments
	}
	return "{}"
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
