package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/leonid-shevtsov/telegold"
	"github.com/yuin/goldmark"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Telegram Bot API root.
	DefaultBaseURL = "https://api.telegram.org"

	// maxMessageSize leaves margin under Telegram's 4096-char limit.
	maxMessageSize = 4000

	// maxCaptionSize is Telegram's caption limit.
	maxCaptionSize = 1024
)

// Client talks to the Telegram Bot API for a single bot.
type Client struct {
	BaseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a Telegram client. Outgoing calls are rate limited to stay
// under Telegram's ~30 messages/second bot ceiling.
func New(token string) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(25), 5),
	}
}

// InlineButton is one button of an inline keyboard. Exactly one of Callback
// and URL should be set.
type InlineButton struct {
	Text     string
	Callback string
	URL      string
}

// Keyboard builds an inline keyboard with one button per row.
func Keyboard(buttons ...InlineButton) [][]InlineButton {
	rows := make([][]InlineButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []InlineButton{b})
	}
	return rows
}

// KeyboardRow builds an inline keyboard with all buttons on one row.
func KeyboardRow(buttons ...InlineButton) [][]InlineButton {
	return [][]InlineButton{buttons}
}

func keyboardMarkup(rows [][]InlineButton) map[string]interface{} {
	keyboard := make([][]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		out := make([]map[string]interface{}, 0, len(row))
		for _, b := range row {
			button := map[string]interface{}{"text": b.Text}
			if b.URL != "" {
				button["url"] = b.URL
			} else {
				button["callback_data"] = b.Callback
			}
			out = append(out, button)
		}
		keyboard = append(keyboard, out)
	}
	return map[string]interface{}{"inline_keyboard": keyboard}
}

// markdownConverter renders standard Markdown as Telegram-compatible HTML.
var markdownConverter = goldmark.New(goldmark.WithRenderer(telegold.NewRenderer()))

// ToTelegramHTML converts Markdown to Telegram HTML, returning the input
// unchanged when conversion fails.
func ToTelegramHTML(text string) string {
	var buf bytes.Buffer
	if err := markdownConverter.Convert([]byte(text), &buf); err != nil {
		slog.Warn("markdown conversion failed", "error", err)
		return text
	}
	return strings.TrimSpace(buf.String())
}

func (c *Client) call(ctx context.Context, method string, payload interface{}) (map[string]interface{}, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.BaseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	var result map[string]interface{}
	json.Unmarshal(respBody, &result)

	if ok, _ := result["ok"].(bool); !ok {
		description, _ := result["description"].(string)
		return nil, fmt.Errorf("telegram API error: %s", description)
	}
	return result, nil
}

// SendMessage sends Markdown text as Telegram HTML, chunking when it
// exceeds the message size limit and falling back to plain text when
// Telegram rejects the HTML entities. keyboard may be nil; when chunked,
// the keyboard is attached to the last chunk only.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, keyboard [][]InlineButton) (int64, error) {
	chunks := splitIntoChunks(text, maxMessageSize)

	var lastMessageID int64
	for i, chunk := range chunks {
		var kb [][]InlineButton
		if i == len(chunks)-1 {
			kb = keyboard
		}
		id, err := c.sendChunk(ctx, chatID, chunk, kb)
		if err != nil {
			return 0, fmt.Errorf("failed to send chunk %d/%d: %w", i+1, len(chunks), err)
		}
		lastMessageID = id
	}
	return lastMessageID, nil
}

func (c *Client) sendChunk(ctx context.Context, chatID int64, text string, keyboard [][]InlineButton) (int64, error) {
	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       ToTelegramHTML(text),
		"parse_mode": "HTML",
	}
	if len(keyboard) > 0 {
		payload["reply_markup"] = keyboardMarkup(keyboard)
	}

	result, err := c.call(ctx, "sendMessage", payload)
	if err != nil && strings.Contains(err.Error(), "can't parse entities") {
		slog.Warn("HTML parsing failed, retrying as plain text", "chat_id", chatID)
		payload["text"] = StripMarkdown(text)
		delete(payload, "parse_mode")
		result, err = c.call(ctx, "sendMessage", payload)
	}
	if err != nil {
		return 0, err
	}
	return messageID(result), nil
}

// EditMessage replaces the text (and keyboard) of a previously sent message.
// Used for in-place progress updates while a note is being processed.
func (c *Client) EditMessage(ctx context.Context, chatID, messageID int64, text string, keyboard [][]InlineButton) error {
	payload := map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       ToTelegramHTML(text),
		"parse_mode": "HTML",
	}
	if len(keyboard) > 0 {
		payload["reply_markup"] = keyboardMarkup(keyboard)
	}

	_, err := c.call(ctx, "editMessageText", payload)
	if err != nil && strings.Contains(err.Error(), "can't parse entities") {
		payload["text"] = StripMarkdown(text)
		delete(payload, "parse_mode")
		_, err = c.call(ctx, "editMessageText", payload)
	}
	// Editing to identical content is not an error worth surfacing.
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}

// AnswerCallback acknowledges a callback query so the client stops showing
// the loading spinner. text is an optional toast.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	payload := map[string]interface{}{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
	}
	_, err := c.call(ctx, "answerCallbackQuery", payload)
	return err
}

// SendChatAction shows a transient status like "typing" or "upload_document".
func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) {
	if _, err := c.call(ctx, "sendChatAction", map[string]interface{}{
		"chat_id": chatID,
		"action":  action,
	}); err != nil {
		slog.Debug("chat action failed", "action", action, "error", err)
	}
}

// FileURL resolves a file_id to its download URL.
func (c *Client) FileURL(ctx context.Context, fileID string) (string, error) {
	result, err := c.call(ctx, "getFile", map[string]interface{}{"file_id": fileID})
	if err != nil {
		return "", err
	}

	inner, _ := result["result"].(map[string]interface{})
	filePath, _ := inner["file_path"].(string)
	if filePath == "" {
		return "", fmt.Errorf("telegram: file not found")
	}
	return fmt.Sprintf("%s/file/bot%s/%s", c.BaseURL, c.token, filePath), nil
}

// DownloadFile fetches a file's bytes by file_id.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := c.FileURL(ctx, fileID)
	if err != nil {
		return nil, err
	}

	downloadCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(downloadCtx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram: file download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	slog.Debug("downloaded telegram file", "file_id", fileID, "bytes", len(data))
	return data, nil
}

// SendDocument uploads a file to the chat as a document attachment.
func (c *Client) SendDocument(ctx context.Context, chatID int64, fileData []byte, filename, caption string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	writer.WriteField("chat_id", fmt.Sprintf("%d", chatID))
	if caption != "" {
		if len(caption) > maxCaptionSize {
			caption = caption[:maxCaptionSize-3] + "..."
		}
		writer.WriteField("caption", caption)
	}

	part, err := writer.CreateFormFile("document", filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	part.Write(fileData)
	writer.Close()

	url := fmt.Sprintf("%s/bot%s/sendDocument", c.BaseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API error: %s", string(body))
	}
	return nil
}

func messageID(result map[string]interface{}) int64 {
	inner, _ := result["result"].(map[string]interface{})
	id, _ := inner["message_id"].(float64)
	return int64(id)
}

var (
	codeBlockPattern = regexp.MustCompile("```[a-zA-Z]*\\n([\\s\\S]*?)```")
	headerPattern    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	linkPattern      = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
)

// StripMarkdown removes Markdown formatting for the plain text fallback.
func StripMarkdown(text string) string {
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "__", "")
	text = codeBlockPattern.ReplaceAllString(text, "$1")
	text = strings.ReplaceAll(text, "`", "")
	text = strings.ReplaceAll(text, "~~", "")
	text = headerPattern.ReplaceAllString(text, "")
	text = linkPattern.ReplaceAllString(text, "$1 ($2)")
	return text
}

// splitIntoChunks splits a long message preferring paragraph, line, sentence
// and finally word boundaries.
func splitIntoChunks(text string, maxSize int) []string {
	if len(text) <= maxSize {
		return []string{text}
	}

	var chunks []string
	remaining := text
	for len(remaining) > 0 {
		if len(remaining) <= maxSize {
			chunks = append(chunks, remaining)
			break
		}

		chunk := remaining[:maxSize]
		breakPoint := maxSize
		if idx := strings.LastIndex(chunk, "\n\n"); idx > maxSize/2 {
			breakPoint = idx + 2
		} else if idx := strings.LastIndex(chunk, "\n"); idx > maxSize/2 {
			breakPoint = idx + 1
		} else if idx := strings.LastIndex(chunk, ". "); idx > maxSize/2 {
			breakPoint = idx + 2
		} else if idx := strings.LastIndex(chunk, " "); idx > maxSize/2 {
			breakPoint = idx + 1
		}

		chunks = append(chunks, strings.TrimSpace(remaining[:breakPoint]))
		remaining = strings.TrimSpace(remaining[breakPoint:])
	}
	return chunks
}
