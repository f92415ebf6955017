// Package backend is the client for the AnonymousWord backend, which owns the
// user directory and the relayed-message cross-reference records. The relay
// treats it as the single source of truth and never caches its responses.
package backend

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

	"anonword-relay/internal/domain"
)

// ErrNotFound is returned for 404 responses: unknown user, unclaimed link, or
// a message record that was never written.
var ErrNotFound = errors.New("backend: not found")

// ErrConflict is returned for 409 responses, which the directory uses for
// link collisions and rejected field values.
var ErrConflict = errors.New("backend: conflict")

// HTTPStatusError captures unexpected non-2xx responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("backend: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// UserPatch is a partial user update. Nil fields are left untouched by the
// directory; Link accepts the domain.LinkDeletedSentinel to drop a link.
type UserPatch struct {
	Link           *string `json:"link,omitempty"`
	WelcomeMessage *string `json:"welcomeMessage,omitempty"`
	Roles          *uint   `json:"roles,omitempty"`
}

// Client is a JSON HTTP client for the backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend: base URL must not be empty")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetUserByTelegramID resolves a user by chat identity.
func (c *Client) GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	return c.getUser(ctx, url.Values{"telegramId": {strconv.FormatInt(telegramID, 10)}})
}

// GetUserByLink resolves the owner of a shareable link.
func (c *Client) GetUserByLink(ctx context.Context, link string) (*domain.User, error) {
	return c.getUser(ctx, url.Values{"link": {link}})
}

func (c *Client) getUser(ctx context.Context, query url.Values) (*domain.User, error) {
	var user domain.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/user?"+query.Encode(), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser registers a user by telegram id. The directory assigns a random
// starter link; creating an existing user is the caller's bug, not guarded.
func (c *Client) CreateUser(ctx context.Context, telegramID int64) (*domain.User, error) {
	var user domain.User
	path := fmt.Sprintf("/api/user/%d", telegramID)
	if err := c.doJSON(ctx, http.MethodPut, path, struct{}{}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// PatchUser applies a partial update and returns the updated record.
func (c *Client) PatchUser(ctx context.Context, telegramID int64, patch UserPatch) (*domain.User, error) {
	var user domain.User
	path := fmt.Sprintf("/api/user/%d", telegramID)
	if err := c.doJSON(ctx, http.MethodPatch, path, patch, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetAuthor resolves the author behind a relayed message by the message id it
// received in the recipient's chat.
func (c *Client) GetAuthor(ctx context.Context, recipientChatMessageID int64) (*domain.User, error) {
	var user domain.User
	path := fmt.Sprintf("/api/user/author/%d", recipientChatMessageID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetAuthorFromStorage resolves the author behind a relayed message by its
// storage-channel message id.
func (c *Client) GetAuthorFromStorage(ctx context.Context, storageMessageID int64) (*domain.User, error) {
	var user domain.User
	path := fmt.Sprintf("/api/user/author_from_storage/%d", storageMessageID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetMessage looks up the record for a message the given recipient received.
func (c *Client) GetMessage(ctx context.Context, recipientID, recipientChatMessageID int64) (*domain.MessageRecord, error) {
	query := url.Values{
		"recipientId":            {strconv.FormatInt(recipientID, 10)},
		"recipientChatMessageId": {strconv.FormatInt(recipientChatMessageID, 10)},
	}
	var record domain.MessageRecord
	if err := c.doJSON(ctx, http.MethodGet, "/api/message?"+query.Encode(), nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// CreateMessage persists the cross-reference for one relayed message.
func (c *Client) CreateMessage(ctx context.Context, record domain.MessageRecord) error {
	return c.doJSON(ctx, http.MethodPost, "/api/message", record, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("backend: marshal %s %s request: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	fullURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return fmt.Errorf("backend: create %s %s request: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s %s failed: %w", method, path, err)
	}
	defer func() { _ = res.Body.Close() }()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case res.StatusCode == http.StatusConflict:
		return ErrConflict
	case res.StatusCode < 200 || res.StatusCode >= 300:
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, URL: fullURL, Body: string(buf)}
	}

	if out == nil {
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("backend: read %s %s response: %w", method, path, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("backend: decode %s %s response: %w", method, path, err)
	}
	return nil
}
