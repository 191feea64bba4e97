package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/adamavenir/frayfeed/internal/types"
)

type pageResponse struct {
	Messages []types.MessageRecord `json:"messages"`
}

// SendRequest is the body of a send call. ClientID echoes the temp id so the
// server can make retries idempotent.
type SendRequest struct {
	Content  string `json:"content"`
	ParentID string `json:"parent_id,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

type summaryRequest struct {
	ParentIDs []string `json:"parent_ids"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// FetchPage returns one page of channel history, oldest first.
func (c *Client) FetchPage(ctx context.Context, q types.PageQuery) ([]types.MessageRecord, error) {
	if q.ChannelID == "" {
		return nil, fmt.Errorf("fetch page: channel required")
	}
	query := url.Values{}
	if q.ParentID != "" {
		query.Set("parent_id", q.ParentID)
	}
	if q.BeforeID != "" {
		query.Set("before", q.BeforeID)
	}
	if q.AfterID != "" {
		query.Set("after", q.AfterID)
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	var resp pageResponse
	if err := c.doJSON(ctx, http.MethodGet, channelPath(q.ChannelID), query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SendMessage posts content to channelID, optionally as a reply to parentID.
func (c *Client) SendMessage(ctx context.Context, channelID, content, parentID, clientID string) (types.MessageRecord, error) {
	var rec types.MessageRecord
	req := SendRequest{Content: content, ParentID: parentID, ClientID: clientID}
	if err := c.doJSON(ctx, http.MethodPost, channelPath(channelID), nil, req, &rec); err != nil {
		return types.MessageRecord{}, err
	}
	if rec.ID == "" {
		return types.MessageRecord{}, &APIError{Status: http.StatusOK, Code: "bad_response", Message: "response has no message id"}
	}
	if rec.ChannelID == "" {
		rec.ChannelID = channelID
	}
	return rec, nil
}

// DeleteMessage deletes id. A message that is already gone counts as deleted.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	var resp successResponse
	err := c.doJSON(ctx, http.MethodDelete, "/v1/messages/"+url.PathEscape(id), nil, nil, &resp)
	if errors.Is(err, ErrNotFound) {
		c.log.Debug("delete_already_gone", "id", id)
		return nil
	}
	return err
}

// ThreadSummaries batch-fetches summaries for parentIDs. Parents without a
// thread are omitted from the result.
func (c *Client) ThreadSummaries(ctx context.Context, parentIDs []string) (map[string]types.ThreadSummary, error) {
	out := make(map[string]types.ThreadSummary)
	if len(parentIDs) == 0 {
		return out, nil
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/threads/summary", nil, summaryRequest{ParentIDs: parentIDs}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead reports that id has been fully read.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	var resp successResponse
	return c.doJSON(ctx, http.MethodPost, "/v1/messages/"+url.PathEscape(id)+"/read", nil, nil, &resp)
}

func channelPath(channelID string) string {
	return "/v1/channels/" + url.PathEscape(channelID) + "/messages"
}
