// Package client is a small HTTP SDK for the slack-clone API. It performs
// exactly one request per call and never retries; callers decide with
// IsTransient.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/harryheman/slack-clone/internal/models"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// IsTransient reports whether err is worth retrying: a 5xx response or a
// transport failure. Cancellation is not transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Client talks to one server as one user.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// New returns a Client for baseURL, e.g. "http://localhost:8080". token is
// the bearer token sent with every API call.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchMessages returns one page of scope older than cursor. It implements
// pager.Fetcher.
func (c *Client) FetchMessages(ctx context.Context, scope models.Scope, cursor string, limit int) (*models.MessagePage, error) {
	q := scopeQuery(scope)
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var page models.MessagePage
	if err := c.do(ctx, http.MethodGet, "/api/v1/messages?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SendMessageInput is the body of a new message. Scope names a channel or
// conversation, or a parent message for a thread reply.
type SendMessageInput struct {
	Scope models.Scope
	Body  string
	Image *string
}

type sendMessageBody struct {
	ChannelID       string  `json:"channel_id,omitempty"`
	ConversationID  string  `json:"conversation_id,omitempty"`
	ParentMessageID string  `json:"parent_message_id,omitempty"`
	Body            string  `json:"body"`
	Image           *string `json:"image,omitempty"`
}

func (c *Client) SendMessage(ctx context.Context, in SendMessageInput) (*models.MessageView, error) {
	body := sendMessageBody{
		ChannelID:       formatID(in.Scope.ChannelID),
		ConversationID:  formatID(in.Scope.ConversationID),
		ParentMessageID: formatID(in.Scope.ParentMessageID),
		Body:            in.Body,
		Image:           in.Image,
	}
	var view models.MessageView
	if err := c.do(ctx, http.MethodPost, "/api/v1/messages", body, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// ToggleInput names the reaction to flip.
type ToggleInput struct {
	MessageID int64
	Value     string
}

// ToggleReaction adds the caller's reaction or removes it if present. Its
// shape matches mutation.Func.
func (c *Client) ToggleReaction(ctx context.Context, in ToggleInput) (models.ToggleResult, error) {
	var result models.ToggleResult
	path := "/api/v1/messages/" + strconv.FormatInt(in.MessageID, 10) + "/reactions"
	err := c.do(ctx, http.MethodPost, path, map[string]string{"value": in.Value}, &result)
	return result, err
}

// OpenConversation returns the direct conversation with another member of
// the workspace, creating it if needed.
func (c *Client) OpenConversation(ctx context.Context, workspaceID, memberID int64) (*models.Conversation, error) {
	var conv models.Conversation
	path := "/api/v1/workspaces/" + strconv.FormatInt(workspaceID, 10) + "/conversations"
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"member_id": formatID(memberID)}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// Health checks the unauthenticated /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Code: "HTTP_" + strconv.Itoa(resp.StatusCode), Message: http.StatusText(resp.StatusCode)}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

func scopeQuery(s models.Scope) url.Values {
	q := url.Values{}
	if s.ChannelID != 0 {
		q.Set("channel_id", formatID(s.ChannelID))
	}
	if s.ConversationID != 0 {
		q.Set("conversation_id", formatID(s.ConversationID))
	}
	if s.ParentMessageID != 0 {
		q.Set("parent_message_id", formatID(s.ParentMessageID))
	}
	return q
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
