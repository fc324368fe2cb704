package voice

import (
	"strings"

	"github.com/inbox-voice-lab/internal/mailapi"
)

// DefaultCommands is shown when neither the intent nor the help endpoint
// supplies a command list.
func DefaultCommands() []mailapi.CommandHelp {
	return []mailapi.CommandHelp{
		{Command: "load emails", Description: "Load or refresh your emails"},
		{Command: "mark all as read", Description: "Mark all emails as read"},
		{Command: "mark as read", Description: "Mark the current email as read"},
		{Command: "archive", Description: "Archive the current email"},
		{Command: "delete", Description: "Delete the current email"},
		{Command: "reply", Description: "Reply to the current email"},
		{Command: "compose email", Description: "Compose a new email"},
		{Command: "next page", Description: "Go to the next page of emails"},
		{Command: "previous page", Description: "Go to the previous page of emails"},
		{Command: "generate reply", Description: "Generate an AI reply for the current email"},
		{Command: "save draft", Description: "Save the current draft"},
		{Command: "schedule meeting", Description: "Schedule a meeting"},
		{Command: "toggle theme", Description: "Toggle between dark and light theme"},
		{Command: "help", Description: "Show available commands"},
	}
}

// SpokenSummary enumerates the command phrases of cmds, in order:
// "Available voice commands: a, b, and c."
func SpokenSummary(cmds []mailapi.CommandHelp) string {
	phrases := make([]string, 0, len(cmds))
	for _, c := range cmds {
		if p := strings.TrimSpace(c.Command); p != "" {
			phrases = append(phrases, p)
		}
	}
	var list string
	switch len(phrases) {
	case 0:
		return "No voice commands are available."
	case 1:
		list = phrases[0]
	case 2:
		list = phrases[0] + " and " + phrases[1]
	default:
		list = strings.Join(phrases[:len(phrases)-1], ", ") + ", and " + phrases[len(phrases)-1]
	}
	return "Available voice commands: " + list + "."
}
