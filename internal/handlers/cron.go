package handlers

import (
	"context"
	"time"

	"memobot/internal/bot"
	"memobot/internal/config"

	"github.com/gofiber/fiber/v2"
)

// CronHandler exposes the scheduled jobs as HTTP endpoints, for deployments
// where an external scheduler drives them instead of the in-process one.
type CronHandler struct {
	cfg *config.Config
	bot *bot.Bot
}

// NewCronHandler creates a cron handler.
func NewCronHandler(cfg *config.Config, b *bot.Bot) *CronHandler {
	return &CronHandler{cfg: cfg, bot: b}
}

// Reminders handles GET /cron/reminders. Meant to be hit every few minutes.
func (h *CronHandler) Reminders(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sent := h.bot.SendReminders(ctx, time.Now())
	return c.JSON(fiber.Map{"status": "ok", "reminders_sent": sent})
}

// digestWindow matches the clock hour against the briefing kind: morning
// before 14:00 local, evening after. ?force=morning|evening overrides.
func (h *CronHandler) digestKind(c *fiber.Ctx) string {
	if force := c.Query("force"); force == "morning" || force == "evening" {
		return force
	}
	if time.Now().In(h.cfg.Location()).Hour() < 14 {
		return "morning"
	}
	return "evening"
}

// Digest handles GET /cron/digest.
func (h *CronHandler) Digest(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	kind := h.digestKind(c)
	if kind == "morning" {
		h.bot.SendMorningBriefing(ctx)
	} else {
		h.bot.SendEveningBriefing(ctx)
	}
	return c.JSON(fiber.Map{"status": "ok", "digest": kind})
}
