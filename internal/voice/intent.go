package voice

import (
	"strings"

	"github.com/inbox-voice-lab/internal/mailapi"
)

// Kind is the closed set of actions the backend classifier can return.
type Kind int

const (
	KindUnknown Kind = iota
	KindLoadEmails
	KindMarkAllAsRead
	KindMarkCurrentAsRead
	KindReplyCurrent
	KindComposeEmail
	KindNextPage
	KindPreviousPage
	KindGenerateReply
	KindSaveDraft
	KindScheduleMeeting
	KindToggleTheme
	KindHelp
	KindArchiveCurrent
	KindDeleteCurrent
)

var kindNames = [...]string{
	KindUnknown:           "unknown",
	KindLoadEmails:        "load_emails",
	KindMarkAllAsRead:     "mark_all_as_read",
	KindMarkCurrentAsRead: "mark_current_as_read",
	KindReplyCurrent:      "reply_current",
	KindComposeEmail:      "compose_email",
	KindNextPage:          "next_page",
	KindPreviousPage:      "previous_page",
	KindGenerateReply:     "generate_reply",
	KindSaveDraft:         "save_draft",
	KindScheduleMeeting:   "schedule_meeting",
	KindToggleTheme:       "toggle_theme",
	KindHelp:              "help",
	KindArchiveCurrent:    "archive_current",
	KindDeleteCurrent:     "delete_current",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// Phrase is the spoken form of k, e.g. "next page".
func (k Kind) Phrase() string {
	return strings.ReplaceAll(k.String(), "_", " ")
}

// AllKinds lists every Kind in declaration order.
func AllKinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range kindNames {
		out[i] = Kind(i)
	}
	return out
}

// ParseKind maps a backend action type to a Kind. Types outside the
// enumeration map to KindUnknown.
func ParseKind(s string) Kind {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range kindNames {
		if name == s {
			return Kind(i)
		}
	}
	return KindUnknown
}

// Intent is one classified utterance. It is consumed by a single Dispatch.
type Intent struct {
	Kind Kind
	// RawType is the type string exactly as the backend sent it.
	RawType     string
	Message     string
	VoiceOutput string
	Commands    []mailapi.CommandHelp
}

// IntentFromAction decodes the backend's action object.
func IntentFromAction(a mailapi.VoiceAction) Intent {
	return Intent{
		Kind:        ParseKind(a.Type),
		RawType:     a.Type,
		Message:     a.Message,
		VoiceOutput: a.VoiceOutput,
		Commands:    a.CommandsList,
	}
}
