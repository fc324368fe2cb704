package mailapi

import "encoding/json"

// ListKind selects which server-side list a page belongs to.
type ListKind string

const (
	KindEmails ListKind = "emails"
	KindDrafts ListKind = "drafts"
	// KindImportant is the unpaginated list of emails flagged important.
	KindImportant ListKind = "important"
)

// ListItem is the read-only projection of an email or draft used for
// rendering and for picking the target of "current email" actions.
type ListItem struct {
	ID          string `json:"id"`
	ThreadID    string `json:"threadId,omitempty"`
	Subject     string `json:"subject"`
	Snippet     string `json:"snippet"`
	From        string `json:"from_field"`
	To          string `json:"to,omitempty"`
	Date        string `json:"date"`
	BodyText    string `json:"body_text,omitempty"`
	IsImportant bool   `json:"is_important,omitempty"`
	Category    string `json:"category,omitempty"`
	Priority    int    `json:"priority,omitempty"`
}

// UnmarshalJSON accepts both "from_field" (serializer output) and "from".
func (i *ListItem) UnmarshalJSON(b []byte) error {
	type plain ListItem
	var aux struct {
		plain
		FromAlias string `json:"from"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*i = ListItem(aux.plain)
	if i.From == "" {
		i.From = aux.FromAlias
	}
	return nil
}

// ListPage is one page of emails or drafts.
type ListPage struct {
	Kind        ListKind   `json:"-"`
	Items       []ListItem `json:"-"`
	TotalPages  int        `json:"total_pages"`
	CurrentPage int        `json:"current_page"`
	PerPage     int        `json:"per_page"`
	Total       int        `json:"-"`
	HasNext     bool       `json:"has_next"`
	HasPrevious bool       `json:"has_previous"`
}

// CommandHelp describes one spoken command.
type CommandHelp struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// VoiceAction is the classified intent exactly as the backend sends it.
type VoiceAction struct {
	Type         string        `json:"type"`
	Message      string        `json:"message,omitempty"`
	VoiceOutput  string        `json:"voice_output,omitempty"`
	CommandsList []CommandHelp `json:"commands_list,omitempty"`
}

// CommandResult is a successful classification.
type CommandResult struct {
	Action  VoiceAction
	Command string
	Message string
}

// HelpResult is the backend's list of available voice commands.
type HelpResult struct {
	Commands    []CommandHelp
	VoiceOutput string
}

// Draft is the compose payload for SaveDraft.
type Draft struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ReplyRequest asks the backend's AI to draft a reply.
type ReplyRequest struct {
	EmailText string `json:"email_text"`
	MessageID string `json:"message_id,omitempty"`
	Subject   string `json:"subject,omitempty"`
	FromEmail string `json:"from_email,omitempty"`
}

// Reply is the AI-generated reply.
type Reply struct {
	Summary    string `json:"summary"`
	DraftReply string `json:"draft_reply"`
}

// Meeting describes a calendar event to create. Times use RFC 3339.
type Meeting struct {
	EmailID     string   `json:"email_id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Start       string   `json:"start_datetime"`
	End         string   `json:"end_datetime"`
	Attendees   []string `json:"attendees,omitempty"`
	Reminders   []int    `json:"reminders,omitempty"`
}

// MeetingResult identifies the created event.
type MeetingResult struct {
	EventID  string `json:"event_id"`
	HTMLLink string `json:"html_link"`
}

// envelope is the {ok, error, message} wrapper every endpoint returns.
type envelope struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message"`
}
