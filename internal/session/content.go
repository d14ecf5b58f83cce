package session

import "github.com/briefgate/briefgate/internal/briefing"

// DefaultContent is shown when a response carries no displayable text at all.
const DefaultContent = "Request processed successfully."

// extractContent picks the text shown to the user for a response. The message
// sequence is scanned in reverse so the most recent assistant message with
// non-null content wins; a top-level content field is the second choice and a
// fixed default the last. Missing fields degrade through this chain rather
// than erroring.
func extractContent(resp *briefing.AgentResponse) string {
	for i := len(resp.Messages) - 1; i >= 0; i-- {
		msg := resp.Messages[i]
		if msg.Role == briefing.RoleAssistant && msg.Content != nil {
			return *msg.Content
		}
	}
	if resp.Content != nil && *resp.Content != "" {
		return *resp.Content
	}
	return DefaultContent
}
