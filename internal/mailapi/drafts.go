package mailapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ListDrafts returns one page of drafts.
func (c *Client) ListDrafts(ctx context.Context, page, perPage int) (*ListPage, error) {
	var out struct {
		ListPage
		Drafts      []ListItem `json:"drafts"`
		TotalDrafts int        `json:"total_drafts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/drafts/", pageQuery(page, perPage), nil, &out); err != nil {
		return nil, err
	}
	lp := out.ListPage
	lp.Kind = KindDrafts
	lp.Items = out.Drafts
	lp.Total = out.TotalDrafts
	return normalizePage(&lp), nil
}

// SaveDraft stores d as a new draft and returns its id.
func (c *Client) SaveDraft(ctx context.Context, d Draft) (string, error) {
	var out struct {
		DraftID string `json:"draft_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/drafts/save/", nil, d, &out); err != nil {
		return "", err
	}
	return out.DraftID, nil
}

func (c *Client) DeleteDraft(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/drafts/"+url.PathEscape(id)+"/delete/", nil, nil, nil)
}

// GenerateReply asks the backend to summarize an email and draft a reply.
func (c *Client) GenerateReply(ctx context.Context, r ReplyRequest) (*Reply, error) {
	if r.EmailText == "" {
		return nil, fmt.Errorf("generate reply: email text is required")
	}
	var out Reply
	if err := c.do(ctx, http.MethodPost, "/api/generate-reply/", nil, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ScheduleMeeting creates a calendar event.
func (c *Client) ScheduleMeeting(ctx context.Context, m Meeting) (*MeetingResult, error) {
	var out MeetingResult
	if err := c.do(ctx, http.MethodPost, "/api/schedule-meeting/", nil, m, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func malformed(path, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformed, path, reason)
}
