package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ParseModeMarkdown selects the legacy Markdown dialect for rendered text.
const ParseModeMarkdown = "Markdown"

// Getter resolves named JSON secrets, typically from SSM Parameter Store.
type Getter interface {
	GetJSONSecret(ctx context.Context, name string, out any) error
}

// tokenPayload is the expected JSON shape stored for the bot token.
type tokenPayload struct {
	Token string `json:"token"`
}

// apiResponse is the uniform Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// APIError is a Bot API level failure (ok=false envelope).
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s failed: %d %s", e.Method, e.Code, e.Description)
}

// HTTPStatusError captures non-2xx responses that did not carry the Bot API
// envelope, e.g. from the file download endpoint.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("telegram: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// IsReplyTargetGone reports whether err is the Bot API rejection for a
// threaded send whose reply target was deleted. Callers use it to fall back
// to a plain, non-threaded delivery.
func IsReplyTargetGone(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code != http.StatusBadRequest {
		return false
	}
	desc := strings.ToLower(apiErr.Description)
	return strings.Contains(desc, "not found") &&
		(strings.Contains(desc, "replied") || strings.Contains(desc, "reply"))
}

// Client is a focused Telegram Bot API client covering the transport
// primitives the relay consumes.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	tokenOnce sync.Once
	token     string
	tokenErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithToken sets the bot token directly, bypassing the paramstore lookup.
func WithToken(token string) Option {
	return func(c *Client) {
		c.tokenOnce.Do(func() { c.token = token })
	}
}

// NewClient creates a Client backed by the given secret Getter. The bot token
// is fetched on the first API call and reused for the process lifetime.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	c := &Client{
		baseURL:     "https://api.telegram.org",
		httpClient:  &http.Client{Timeout: 65 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.token == "" {
		if ps == nil {
			return nil, errors.New("telegram: secret getter must not be nil without a static token")
		}
		if c.paramPrefix == "" {
			return nil, errors.New("telegram: parameter prefix must not be empty")
		}
	}
	return c, nil
}

func (c *Client) resolveToken(ctx context.Context) (string, error) {
	c.tokenOnce.Do(func() {
		var tp tokenPayload
		if err := c.getter.GetJSONSecret(ctx, c.paramPrefix+"/telegram-bot-token", &tp); err != nil {
			c.tokenErr = fmt.Errorf("telegram: fetch bot token: %w", err)
			return
		}
		if tp.Token == "" {
			c.tokenErr = errors.New("telegram: bot token is empty")
			return
		}
		c.token = tp.Token
	})
	return c.token, c.tokenErr
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 65 * time.Second}
}

// invoke posts a JSON request to one Bot API method and decodes the result
// envelope into out when out is non-nil.
func (c *Client) invoke(ctx context.Context, method string, params, out any) error {
	token, err := c.resolveToken(ctx)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, token, method)

	var body io.Reader
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("telegram: marshal %s request: %w", method, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("telegram: create %s request: %w", method, err)
	}
	if params != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, method, out)
}

func (c *Client) do(req *http.Request, method string, out any) error {
	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s request failed: %w", method, err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("telegram: read %s response: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return &HTTPStatusError{StatusCode: res.StatusCode, URL: req.URL.Path, Body: string(raw)}
		}
		return fmt.Errorf("telegram: decode %s response: %w", method, err)
	}
	if !envelope.OK {
		return &APIError{Method: method, Code: envelope.ErrorCode, Description: envelope.Description}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("telegram: decode %s result: %w", method, err)
	}
	return nil
}

// GetMe returns the bot's own identity, used for deep links.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.invoke(ctx, "getMe", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

type getUpdatesRequest struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// GetUpdates long-polls for new updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]Update, error) {
	var updates []Update
	err := c.invoke(ctx, "getUpdates", getUpdatesRequest{
		Offset:         offset,
		Timeout:        timeoutSeconds,
		AllowedUpdates: []string{"message"},
	}, &updates)
	if err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessageParams shapes one sendMessage call.
type SendMessageParams struct {
	ChatID           int64  `json:"chat_id"`
	Text             string `json:"text"`
	ParseMode        string `json:"parse_mode,omitempty"`
	ReplyToMessageID int64  `json:"reply_to_message_id,omitempty"`
}

// SendMessage sends a text message and returns the sent message.
func (c *Client) SendMessage(ctx context.Context, p SendMessageParams) (*Message, error) {
	var msg Message
	if err := c.invoke(ctx, "sendMessage", p, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// CopyMessageParams shapes one copyMessage call. The copy carries no link to
// the original sender, which is what keeps relayed messages anonymous.
type CopyMessageParams struct {
	ChatID           int64 `json:"chat_id"`
	FromChatID       int64 `json:"from_chat_id"`
	MessageID        int64 `json:"message_id"`
	ReplyToMessageID int64 `json:"reply_to_message_id,omitempty"`
}

// CopyMessage copies a message into another chat and returns the new
// message's id in the target chat.
func (c *Client) CopyMessage(ctx context.Context, p CopyMessageParams) (int64, error) {
	var id MessageID
	if err := c.invoke(ctx, "copyMessage", p, &id); err != nil {
		return 0, err
	}
	return id.MessageID, nil
}

// GetChat fetches chat metadata, including the avatar file ids if present.
func (c *Client) GetChat(ctx context.Context, chatID int64) (*Chat, error) {
	var chat Chat
	err := c.invoke(ctx, "getChat", struct {
		ChatID int64 `json:"chat_id"`
	}{chatID}, &chat)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetFile resolves a file id to a downloadable path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	var file File
	err := c.invoke(ctx, "getFile", struct {
		FileID string `json:"file_id"`
	}{fileID}, &file)
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// DownloadFile fetches the raw bytes behind a getFile path.
func (c *Client) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	token, err := c.resolveToken(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, token, strings.TrimLeft(filePath, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram: create download request: %w", err)
	}

	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: download request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: req.URL.Path, Body: string(buf)}
	}

	// Avatars are the only downloads and small ones are capped well below this.
	data, err := io.ReadAll(io.LimitReader(res.Body, 20<<20))
	if err != nil {
		return nil, fmt.Errorf("telegram: read download body: %w", err)
	}
	return data, nil
}

type inputMediaPhoto struct {
	Type      string `json:"type"`
	Media     string `json:"media"`
	Caption   string `json:"caption,omitempty"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// SendMediaGroup sends the given photos as one album with the caption on the
// first item. Photos are uploaded inline via attach:// multipart parts.
func (c *Client) SendMediaGroup(ctx context.Context, chatID int64, caption, parseMode string, photos []InputPhoto) error {
	if len(photos) == 0 {
		return errors.New("telegram: media group needs at least one photo")
	}

	token, err := c.resolveToken(ctx)
	if err != nil {
		return err
	}

	media := make([]inputMediaPhoto, len(photos))
	for i, p := range photos {
		media[i] = inputMediaPhoto{Type: "photo", Media: "attach://" + p.Name}
		if i == 0 {
			media[i].Caption = caption
			media[i].ParseMode = parseMode
		}
	}
	mediaJSON, err := json.Marshal(media)
	if err != nil {
		return fmt.Errorf("telegram: marshal media group: %w", err)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("chat_id", fmt.Sprintf("%d", chatID)); err != nil {
		return fmt.Errorf("telegram: write media group form: %w", err)
	}
	if err := form.WriteField("media", string(mediaJSON)); err != nil {
		return fmt.Errorf("telegram: write media group form: %w", err)
	}
	for _, p := range photos {
		part, err := form.CreateFormFile(p.Name, p.Name)
		if err != nil {
			return fmt.Errorf("telegram: create media part %s: %w", p.Name, err)
		}
		if _, err := part.Write(p.Data); err != nil {
			return fmt.Errorf("telegram: write media part %s: %w", p.Name, err)
		}
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("telegram: finalize media group form: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMediaGroup", c.baseURL, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("telegram: create sendMediaGroup request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	return c.do(req, "sendMediaGroup", nil)
}

type chatPermissions struct {
	CanSendMessages bool `json:"can_send_messages"`
}

// RestrictChatMember revokes a member's send permission in the given chat.
func (c *Client) RestrictChatMember(ctx context.Context, chatID, userID int64) error {
	return c.invoke(ctx, "restrictChatMember", struct {
		ChatID      int64           `json:"chat_id"`
		UserID      int64           `json:"user_id"`
		Permissions chatPermissions `json:"permissions"`
	}{chatID, userID, chatPermissions{CanSendMessages: false}}, nil)
}
