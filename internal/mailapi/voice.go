package mailapi

import (
	"context"
	"net/http"
)

// ClassifyCommand sends a spoken command to the backend intent classifier.
func (c *Client) ClassifyCommand(ctx context.Context, command string) (*CommandResult, error) {
	var out struct {
		Action  *VoiceAction `json:"action"`
		Command string       `json:"command"`
		Message string       `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/voice/command/", nil, map[string]string{"command": command}, &out); err != nil {
		return nil, err
	}
	if out.Action == nil || out.Action.Type == "" {
		return nil, malformed("/api/voice/command/", "missing action type")
	}
	return &CommandResult{Action: *out.Action, Command: out.Command, Message: out.Message}, nil
}

// VoiceHelp lists the commands the classifier understands.
func (c *Client) VoiceHelp(ctx context.Context) (*HelpResult, error) {
	var out struct {
		Commands    []CommandHelp `json:"commands"`
		VoiceOutput string        `json:"voice_output"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/voice/help/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &HelpResult{Commands: out.Commands, VoiceOutput: out.VoiceOutput}, nil
}
