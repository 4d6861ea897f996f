package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"memobot/internal/bot"
	"memobot/internal/config"
	"memobot/internal/logging"
	"memobot/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// updateTimeout bounds one update's processing. Generous because a voice
// note runs transcription, formatting and several store writes in sequence.
const updateTimeout = 3 * time.Minute

// WebhookHandler receives Telegram and tracker webhooks.
type WebhookHandler struct {
	cfg *config.Config
	bot *bot.Bot
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(cfg *config.Config, b *bot.Bot) *WebhookHandler {
	return &WebhookHandler{cfg: cfg, bot: b}
}

// Telegram handles POST /webhook/telegram/:secret. It always returns 200
// once the secret checks out so Telegram never retries an update the bot
// has already seen.
func (h *WebhookHandler) Telegram(c *fiber.Ctx) error {
	if h.cfg.TelegramWebhookSecret != "" && c.Params("secret") != h.cfg.TelegramWebhookSecret {
		slog.Warn("telegram webhook called with bad secret")
		return c.SendStatus(fiber.StatusNotFound)
	}

	var update models.TelegramUpdate
	if err := c.BodyParser(&update); err != nil {
		slog.Error("failed to parse telegram update", "error", err)
		return c.SendStatus(fiber.StatusOK)
	}

	// Updates from long polling restarts can share update ids; a request
	// id keeps log lines attributable either way.
	requestID := uuid.NewString()
	var chatID int64
	if update.Message != nil && update.Message.Chat != nil {
		chatID = update.Message.Chat.ID
	}
	logging.WithUpdate(requestID, chatID).Debug("telegram update received", "update_id", update.UpdateID)

	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()
	h.bot.HandleUpdate(ctx, &update)

	return c.SendStatus(fiber.StatusOK)
}

// clickupEvent is the slice of the ClickUp webhook payload the bot reads.
type clickupEvent struct {
	Event        string `json:"event"`
	TaskID       string `json:"task_id"`
	HistoryItems []struct {
		Field string `json:"field"`
		After struct {
			Status string `json:"status"`
			Type   string `json:"type"`
		} `json:"after"`
	} `json:"history_items"`
}

// ClickUp handles POST /webhook/clickup. Signature verification uses the
// HMAC-SHA256 of the raw body against the webhook secret.
func (h *WebhookHandler) ClickUp(c *fiber.Ctx) error {
	body := c.Body()

	if h.cfg.ClickUpWebhookSecret != "" {
		mac := hmac.New(sha256.New, []byte(h.cfg.ClickUpWebhookSecret))
		mac.Write(body)
		expected := hex.EncodeToString(mac.Sum(nil))
		if !hmac.Equal([]byte(expected), []byte(c.Get("X-Signature"))) {
			slog.Warn("clickup webhook signature mismatch")
			return c.SendStatus(fiber.StatusUnauthorized)
		}
	}

	var event clickupEvent
	if err := json.Unmarshal(body, &event); err != nil {
		slog.Error("failed to parse clickup event", "error", err)
		return c.SendStatus(fiber.StatusOK)
	}

	if event.Event == "taskStatusUpdated" && event.TaskID != "" && isDone(event) {
		ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
		defer cancel()
		h.bot.HandleTaskCompleted(ctx, event.TaskID)
	}

	return c.SendStatus(fiber.StatusOK)
}

// ClickUpPing answers the verification GET ClickUp issues when a webhook
// endpoint is registered.
func (h *WebhookHandler) ClickUpPing(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusOK)
}

func isDone(event clickupEvent) bool {
	for _, item := range event.HistoryItems {
		if item.Field != "status" {
			continue
		}
		if item.After.Type == "closed" || item.After.Type == "done" {
			return true
		}
		switch item.After.Status {
		case "complete", "completed", "done", "closed":
			return true
		}
	}
	return false
}
