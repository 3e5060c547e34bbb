package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("messaging API request failed with status %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// Client calls the /messages API on behalf of one bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the default client, e.g. to change the timeout.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.httpClient = httpClient
	return c
}

func (c *Client) Send(ctx context.Context, req SendRequest) (*Message, error) {
	var out struct {
		Message *Message `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/messages", nil, req, &out); err != nil {
		return nil, err
	}
	return out.Message, nil
}

func (c *Client) ConversationMessages(ctx context.Context, userID string) ([]*Message, error) {
	var out struct {
		Messages []*Message `json:"messages"`
	}
	err := c.do(ctx, http.MethodGet, "/messages", url.Values{"conversation": {userID}}, nil, &out)
	return out.Messages, err
}

func (c *Client) Conversations(ctx context.Context) ([]*Conversation, error) {
	var out struct {
		Conversations []*Conversation `json:"conversations"`
	}
	err := c.do(ctx, http.MethodGet, "/messages/conversations", nil, nil, &out)
	return out.Conversations, err
}

func (c *Client) Thread(ctx context.Context, threadID string) ([]*Message, error) {
	var out struct {
		Messages []*Message `json:"messages"`
	}
	err := c.do(ctx, http.MethodGet, "/messages/thread/"+url.PathEscape(threadID), nil, nil, &out)
	return out.Messages, err
}

func (c *Client) UnreadCount(ctx context.Context) (int64, error) {
	var out struct {
		Count int64 `json:"count"`
	}
	err := c.do(ctx, http.MethodGet, "/messages/unread-count", nil, nil, &out)
	return out.Count, err
}

func (c *Client) MessageableUsers(ctx context.Context, search string) ([]*User, error) {
	var query url.Values
	if search != "" {
		query = url.Values{"search": {search}}
	}

	var out struct {
		Users []*User `json:"users"`
	}
	err := c.do(ctx, http.MethodGet, "/messages/users", query, nil, &out)
	return out.Users, err
}

func (c *Client) MarkRead(ctx context.Context, messageID string) (*Message, error) {
	var out struct {
		Message *Message `json:"message"`
	}
	if err := c.do(ctx, http.MethodPut, "/messages/"+url.PathEscape(messageID)+"/read", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Message, nil
}

// MarkAllRead marks everything unread, or only messages from fromID.
func (c *Client) MarkAllRead(ctx context.Context, fromID string) (int, error) {
	var query url.Values
	if fromID != "" {
		query = url.Values{"from": {fromID}}
	}

	var out struct {
		Count int `json:"count"`
	}
	err := c.do(ctx, http.MethodPut, "/messages/mark-all-read", query, nil, &out)
	return out.Count, err
}

func (c *Client) Delete(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/messages/"+url.PathEscape(messageID), nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var envelope struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Code != "" {
			apiErr.Code = envelope.Code
			apiErr.Message = envelope.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
