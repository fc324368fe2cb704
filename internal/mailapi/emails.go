package mailapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

func pageQuery(page, perPage int) url.Values {
	q := url.Values{}
	if page < 1 {
		page = 1
	}
	q.Set("page", strconv.Itoa(page))
	if perPage > 0 {
		q.Set("per_page", strconv.Itoa(perPage))
	}
	return q
}

// ListEmails returns one page of unread emails.
func (c *Client) ListEmails(ctx context.Context, page, perPage int) (*ListPage, error) {
	var out struct {
		ListPage
		Emails      []ListItem `json:"emails"`
		TotalEmails int        `json:"total_emails"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/emails/", pageQuery(page, perPage), nil, &out); err != nil {
		return nil, err
	}
	lp := out.ListPage
	lp.Kind = KindEmails
	lp.Items = out.Emails
	lp.Total = out.TotalEmails
	return normalizePage(&lp), nil
}

// List dispatches to ListEmails or ListDrafts.
func (c *Client) List(ctx context.Context, kind ListKind, page, perPage int) (*ListPage, error) {
	switch kind {
	case KindEmails:
		return c.ListEmails(ctx, page, perPage)
	case KindDrafts:
		return c.ListDrafts(ctx, page, perPage)
	case KindImportant:
		return c.ListImportant(ctx)
	default:
		return nil, fmt.Errorf("unknown list kind %q", kind)
	}
}

// ListImportant returns every email flagged important as a single page.
func (c *Client) ListImportant(ctx context.Context) (*ListPage, error) {
	var out struct {
		Emails []ListItem `json:"emails"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/emails/important/", nil, nil, &out); err != nil {
		return nil, err
	}
	for i := range out.Emails {
		out.Emails[i].IsImportant = true
	}
	lp := ListPage{
		Kind:        KindImportant,
		Items:       out.Emails,
		TotalPages:  1,
		CurrentPage: 1,
		PerPage:     len(out.Emails),
		Total:       len(out.Emails),
	}
	return normalizePage(&lp), nil
}

// normalizePage fills navigation flags for backends that only send counts.
func normalizePage(lp *ListPage) *ListPage {
	if lp.CurrentPage < 1 {
		lp.CurrentPage = 1
	}
	if lp.TotalPages < 0 {
		lp.TotalPages = 0
	}
	if !lp.HasNext && lp.CurrentPage < lp.TotalPages {
		lp.HasNext = true
	}
	if !lp.HasPrevious && lp.CurrentPage > 1 {
		lp.HasPrevious = true
	}
	return lp
}

func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/email/"+url.PathEscape(id)+"/mark-read/", nil, nil, nil)
}

// BulkMarkRead marks every id read and returns how many succeeded.
func (c *Client) BulkMarkRead(ctx context.Context, ids []string) (int, error) {
	var out struct {
		SuccessCount int `json:"success_count"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/emails/bulk-mark-read/", nil, map[string][]string{"email_ids": ids}, &out); err != nil {
		return 0, err
	}
	return out.SuccessCount, nil
}

func (c *Client) Archive(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/email/"+url.PathEscape(id)+"/archive/", nil, nil, nil)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/email/"+url.PathEscape(id)+"/delete/", nil, nil, nil)
}

// ToggleImportant flips the important flag of id and returns the new value.
func (c *Client) ToggleImportant(ctx context.Context, id string) (bool, error) {
	var out struct {
		IsImportant bool `json:"is_important"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/email/"+url.PathEscape(id)+"/toggle-important/", nil, nil, &out); err != nil {
		return false, err
	}
	return out.IsImportant, nil
}

// BulkArchive archives every id and returns how many succeeded.
func (c *Client) BulkArchive(ctx context.Context, ids []string) (int, error) {
	var out struct {
		SuccessCount int `json:"success_count"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/emails/bulk-archive/", nil, map[string][]string{"email_ids": ids}, &out); err != nil {
		return 0, err
	}
	return out.SuccessCount, nil
}
