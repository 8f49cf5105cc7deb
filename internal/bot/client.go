package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is a minimal Telegram Bot API client: one JSON POST per method
// call, no framework. The short-timeout http client covers sends; long
// polls run through pollc, which must outlive the getUpdates timeout.
type Client struct {
	token  string
	apiURL string
	httpc  *http.Client
	pollc  *http.Client
}

func NewClient(token string, pollTimeout time.Duration) *Client {
	return &Client{
		token:  token,
		apiURL: "https://api.telegram.org/bot" + token,
		httpc:  &http.Client{Timeout: 10 * time.Second},
		pollc:  &http.Client{Timeout: pollTimeout + 10*time.Second},
	}
}

// apiResponse is Telegram's standard envelope. ok=false carries the reason
// in description (e.g. "Forbidden: bot was blocked by the user").
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

func (c *Client) call(ctx context.Context, httpc *http.Client, method string, payload any) (json.RawMessage, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: marshal: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/"+method, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("telegram %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return nil, fmt.Errorf("telegram %s: decode (%s): %w", method, resp.Status, err)
	}
	if !api.OK {
		return nil, fmt.Errorf("telegram %s: %s", method, api.Description)
	}
	return api.Result, nil
}

func (c *Client) send(ctx context.Context, method string, payload any) error {
	_, err := c.call(ctx, c.httpc, method, payload)
	return err
}

// GetMe returns the bot's own account, used for building share links.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	raw, err := c.call(ctx, c.httpc, "getMe", map[string]any{})
	if err != nil {
		return nil, err
	}
	var me User
	if err := json.Unmarshal(raw, &me); err != nil {
		return nil, fmt.Errorf("telegram getMe: %w", err)
	}
	return &me, nil
}

func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	return c.send(ctx, "setMyCommands", map[string]any{"commands": commands})
}

func (c *Client) SetWebhook(ctx context.Context, url string) error {
	return c.send(ctx, "setWebhook", map[string]any{"url": url})
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.send(ctx, "deleteWebhook", map[string]any{})
}

// GetUpdates long-polls for new updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	raw, err := c.call(ctx, c.pollc, "getUpdates", map[string]any{
		"offset":  offset,
		"timeout": int(timeout.Seconds()),
	})
	if err != nil {
		return nil, err
	}
	var updates []Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("telegram getUpdates: %w", err)
	}
	return updates, nil
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, replyMarkup any) error {
	data := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if replyMarkup != nil {
		data["reply_markup"] = replyMarkup
	}
	return c.send(ctx, "sendMessage", data)
}

// SendPhoto accepts either a Telegram file_id or a public URL in photo.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, photo, caption string, replyMarkup any) error {
	return c.sendMedia(ctx, "sendPhoto", "photo", chatID, photo, caption, replyMarkup)
}

func (c *Client) SendVideo(ctx context.Context, chatID int64, fileID, caption string, replyMarkup any) error {
	return c.sendMedia(ctx, "sendVideo", "video", chatID, fileID, caption, replyMarkup)
}

func (c *Client) SendDocument(ctx context.Context, chatID int64, fileID, caption string, replyMarkup any) error {
	return c.sendMedia(ctx, "sendDocument", "document", chatID, fileID, caption, replyMarkup)
}

func (c *Client) SendAudio(ctx context.Context, chatID int64, fileID, caption string, replyMarkup any) error {
	return c.sendMedia(ctx, "sendAudio", "audio", chatID, fileID, caption, replyMarkup)
}

func (c *Client) SendVoice(ctx context.Context, chatID int64, fileID, caption string, replyMarkup any) error {
	return c.sendMedia(ctx, "sendVoice", "voice", chatID, fileID, caption, replyMarkup)
}

// SendVideoNote has no caption channel in the Bot API.
func (c *Client) SendVideoNote(ctx context.Context, chatID int64, fileID string, replyMarkup any) error {
	return c.sendMedia(ctx, "sendVideoNote", "video_note", chatID, fileID, "", replyMarkup)
}

// SendSticker has no caption channel in the Bot API.
func (c *Client) SendSticker(ctx context.Context, chatID int64, fileID string, replyMarkup any) error {
	return c.sendMedia(ctx, "sendSticker", "sticker", chatID, fileID, "", replyMarkup)
}

func (c *Client) SendPoll(ctx context.Context, chatID int64, question string, options []string, isAnonymous bool, pollType string, allowsMultiple bool, replyMarkup any) error {
	data := map[string]any{
		"chat_id":                 chatID,
		"question":                question,
		"options":                 options,
		"is_anonymous":            isAnonymous,
		"allows_multiple_answers": allowsMultiple,
	}
	if pollType != "" {
		data["type"] = pollType
	}
	if replyMarkup != nil {
		data["reply_markup"] = replyMarkup
	}
	return c.send(ctx, "sendPoll", data)
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	data := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		data["text"] = text
	}
	return c.send(ctx, "answerCallbackQuery", data)
}

func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string, replyMarkup any) error {
	data := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	if replyMarkup != nil {
		data["reply_markup"] = replyMarkup
	}
	return c.send(ctx, "editMessageText", data)
}

func (c *Client) sendMedia(ctx context.Context, method, field string, chatID int64, fileID, caption string, replyMarkup any) error {
	data := map[string]any{
		"chat_id": chatID,
		field:     fileID,
	}
	if caption != "" {
		data["caption"] = caption
	}
	if replyMarkup != nil {
		data["reply_markup"] = replyMarkup
	}
	return c.send(ctx, method, data)
}
