package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// Client is a thin Bot API client. It only wraps the handful of methods the
// relay needs: send text, send file, forward (the re-host primitive), delete,
// answer callback, edit, and webhook registration.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a Bot API client. An empty baseURL selects the public
// API endpoint; tests point it at a local server.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultAPIBase
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		token:      token,
	}
}

// apiResponse is the Bot API's envelope around every method result.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// call POSTs params as JSON to the named Bot API method and unmarshals the
// result into out when out is non-nil.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode %s params: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	if !envelope.OK {
		return fmt.Errorf("%s rejected: %s", method, envelope.Description)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

// SendMessage sends a text message, optionally with an inline keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) (*Message, error) {
	params := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if markup != nil {
		params["reply_markup"] = markup
	}

	msg := &Message{}
	if err := c.call(ctx, "sendMessage", params, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// sendMethods maps each artifact kind to its Bot API method and payload field.
// APKs travel as documents.
var sendMethods = map[FileKind]struct {
	method string
	field  string
}{
	KindDocument: {"sendDocument", "document"},
	KindAPK:      {"sendDocument", "document"},
	KindVideo:    {"sendVideo", "video"},
	KindPhoto:    {"sendPhoto", "photo"},
	KindAudio:    {"sendAudio", "audio"},
	KindVoice:    {"sendVoice", "voice"},
}

// SendFile delivers a stored artifact by its platform file handle, using the
// send method that matches its kind.
func (c *Client) SendFile(ctx context.Context, chatID int64, att Attachment, caption string) (*Message, error) {
	m, ok := sendMethods[att.Kind]
	if !ok {
		return nil, fmt.Errorf("unsupported file kind %q", att.Kind)
	}

	params := map[string]any{
		"chat_id": chatID,
		m.field:   att.FileID,
	}
	if caption != "" {
		params["caption"] = caption
	}

	msg := &Message{}
	if err := c.call(ctx, m.method, params, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ForwardMessage forwards a message between chats. Forwarding an upload into
// the storage channel is how artifacts get re-hosted: the returned message
// carries the channel's own durable file handle.
func (c *Client) ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (*Message, error) {
	params := map[string]any{
		"chat_id":      toChatID,
		"from_chat_id": fromChatID,
		"message_id":   messageID,
	}

	msg := &Message{}
	if err := c.call(ctx, "forwardMessage", params, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// DeleteMessage removes a message from a chat.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

// AnswerCallbackQuery acknowledges an inline keyboard press.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	params := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		params["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", params, nil)
}

// EditMessageText replaces the text (and keyboard) of a previously sent message.
func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, markup *InlineKeyboardMarkup) error {
	params := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	if markup != nil {
		params["reply_markup"] = markup
	}
	return c.call(ctx, "editMessageText", params, nil)
}

// SetWebhook registers the public webhook URL with the platform.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	params := map[string]any{"url": url}
	if secret != "" {
		params["secret_token"] = secret
	}
	return c.call(ctx, "setWebhook", params, nil)
}
