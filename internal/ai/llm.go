package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"memobot/internal/models"
)

// DefaultBaseURL points at the DeepSeek OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.deepseek.com"

// LLM is a client for an OpenAI-compatible chat completions API.
type LLM struct {
	BaseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewLLM creates a chat completions client.
func NewLLM(apiKey, baseURL, model string) *LLM {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &LLM{
		BaseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// complete runs one chat completion. jsonMode forces a JSON object response.
func (l *LLM) complete(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	payload := map[string]interface{}{
		"model": l.model,
		"messages": []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	if jsonMode {
		payload["response_format"] = map[string]interface{}{"type": "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.BaseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+l.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse llm response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}

const formatSystemPrompt = `You are a note-taking assistant. Turn the user's raw message into a structured note.

Respond with a JSON object with exactly these fields:
- "main_title": a short descriptive title (max 60 chars)
- "category": one of: %s
- "formatted_body": the note body as clean Markdown. Use "- " bullets for lists, **bold** for emphasis. Keep every URL from the input on its own line.
- "events": an array of calendar events mentioned in the message, each {"title": string, "datetime_iso": ISO 8601 datetime with timezone}. Empty array when none.

Today is %s. The user's timezone is %s. Resolve relative dates ("tomorrow at 3pm") against today.`

// FormatNote asks the model to structure raw text into a note draft with
// any calendar events it mentions.
func (l *LLM) FormatNote(ctx context.Context, text string, categories []string, now time.Time, timezone string) (*models.NoteDraft, error) {
	system := fmt.Sprintf(formatSystemPrompt,
		strings.Join(categories, ", "), now.Format("Monday, 2 January 2006 15:04"), timezone)

	content, err := l.complete(ctx, system, text, true)
	if err != nil {
		return nil, err
	}

	var draft models.NoteDraft
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &draft); err != nil {
		return nil, fmt.Errorf("llm returned malformed note JSON: %w", err)
	}
	if draft.Title == "" {
		return nil, fmt.Errorf("llm returned note without a title")
	}
	if draft.FormattedBody == "" {
		draft.FormattedBody = text
	}
	return &draft, nil
}

// SummarizeSearch produces a short answer to the user's query from matching
// note contents.
func (l *LLM) SummarizeSearch(ctx context.Context, query string, notes []string) (string, error) {
	system := "You answer questions from the user's personal notes. Be concise. " +
		"Answer in Markdown using only the notes provided; say so when the notes do not contain the answer."
	user := fmt.Sprintf("Question: %s\n\nNotes:\n%s", query, strings.Join(notes, "\n---\n"))
	return l.complete(ctx, system, user, false)
}

// Polish merges new text into an existing note body and returns the
// rewritten body as Markdown.
func (l *LLM) Polish(ctx context.Context, existing, addition string) (string, error) {
	system := "You maintain the user's personal notes. Merge the addition into the existing note, " +
		"deduplicate, keep the structure tidy. Respond with only the rewritten note body as Markdown."
	user := fmt.Sprintf("Existing note:\n%s\n\nAddition:\n%s", existing, addition)
	return l.complete(ctx, system, user, false)
}

// DailyInsight generates a one-line motivational note for the daily
// briefing. Falls back to a static line on any error so briefings never
// fail on the garnish.
func (l *LLM) DailyInsight(ctx context.Context) string {
	content, err := l.complete(ctx,
		"You write a single short motivational sentence for a daily productivity briefing. No quotes, no emoji.",
		"Write today's line.", false)
	if err != nil || strings.TrimSpace(content) == "" {
		return "Small steps add up."
	}
	return strings.TrimSpace(content)
}

// stripCodeFence removes a surrounding markdown code fence, which some
// models wrap around JSON even in JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
