package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"memobot/internal/clickup"
	"memobot/internal/models"
)

// taskXP maps task priority to the XP paid out when the tracker reports
// the task done.
var taskXP = map[string]int{
	"urgent": 50,
	"high":   30,
	"normal": 15,
	"low":    10,
}

// XPForPriority returns the XP payout for completing a task of the given
// priority. Unprioritized tasks still pay a little.
func XPForPriority(priority string) int {
	if xp, ok := taskXP[strings.ToLower(priority)]; ok {
		return xp
	}
	return 5
}

// HandleTaskCompleted awards XP for a completed tracker task and tells the
// user. Called from the tracker webhook.
func (b *Bot) HandleTaskCompleted(ctx context.Context, taskID string) {
	if b.tasks == nil {
		return
	}

	task, err := b.tasks.GetTask(ctx, taskID)
	if err != nil {
		slog.Error("failed to load completed task", "task_id", taskID, "error", err)
		b.metrics.ExternalError("clickup")
		return
	}

	xp := XPForPriority(task.Priority)
	levelUp := b.awardXP(ctx, xp)

	text := fmt.Sprintf("✅ **%s** done! +%d XP", task.Name, xp)
	if levelUp != "" {
		text += "\n\n" + levelUp
	}
	b.reply(ctx, b.cfg.AllowedTelegramID, text, nil)
}

// SendMorningBriefing sends the day's plan: today's events, the task
// digest and a one-line insight.
func (b *Bot) SendMorningBriefing(ctx context.Context) {
	loc := b.cfg.Location()
	now := time.Now().In(loc)

	var out strings.Builder
	out.WriteString(fmt.Sprintf("☀️ **Good morning!** %s\n", now.Format("Monday, 2 January")))

	if events := b.eventsBetween(ctx, startOfDay(now), startOfDay(now).Add(24*time.Hour)); len(events) > 0 {
		out.WriteString("\n**Today**\n")
		for _, ev := range events {
			out.WriteString(formatEventLine(ev, loc) + "\n")
		}
	}

	if digest := b.taskDigest(ctx, now); digest != "" {
		out.WriteString("\n" + digest + "\n")
	}

	out.WriteString("\n_" + b.llm.DailyInsight(ctx) + "_")
	b.reply(ctx, b.cfg.AllowedTelegramID, out.String(), nil)
}

// SendEveningBriefing previews tomorrow and restates what is still open.
func (b *Bot) SendEveningBriefing(ctx context.Context) {
	loc := b.cfg.Location()
	now := time.Now().In(loc)
	tomorrow := startOfDay(now).Add(24 * time.Hour)

	var out strings.Builder
	out.WriteString("🌙 **Evening wrap-up**\n")

	if events := b.eventsBetween(ctx, tomorrow, tomorrow.Add(24*time.Hour)); len(events) > 0 {
		out.WriteString("\n**Tomorrow**\n")
		for _, ev := range events {
			out.WriteString(formatEventLine(ev, loc) + "\n")
		}
	}

	if digest := b.taskDigest(ctx, now); digest != "" {
		out.WriteString("\n" + digest)
	}

	b.reply(ctx, b.cfg.AllowedTelegramID, strings.TrimRight(out.String(), "\n"), nil)
}

// reminderSlack widens the reminder window so a check that runs on a cron
// tick still catches events whose lead time fell between ticks.
const reminderSlack = 2 * time.Minute

// SendReminders messages the user about events starting roughly their
// configured lead time from now. Meant to run every few minutes.
func (b *Bot) SendReminders(ctx context.Context, now time.Time) int {
	if b.cal == nil {
		return 0
	}

	minutes, err := b.settings.ReminderMinutes(ctx, b.userID)
	if err != nil {
		slog.Warn("failed to read reminder setting", "error", err)
		minutes = models.DefaultReminderMinutes
	}
	if minutes == 0 {
		return 0
	}

	lead := time.Duration(minutes) * time.Minute
	from := now.Add(lead - reminderSlack)
	to := now.Add(lead + reminderSlack)

	events := b.eventsBetween(ctx, from, to)
	loc := b.cfg.Location()
	for _, ev := range events {
		b.reply(ctx, b.cfg.AllowedTelegramID,
			fmt.Sprintf("⏰ **%s** starts at %s", ev.Title, ev.Start.In(loc).Format("15:04")), nil)
	}
	return len(events)
}

func (b *Bot) eventsBetween(ctx context.Context, from, to time.Time) []models.CalendarEvent {
	if b.cal == nil {
		return nil
	}
	events, err := b.cal.ListEvents(ctx, from, to)
	if err != nil {
		slog.Error("failed to list events", "error", err)
		b.metrics.ExternalError("calendar")
		return nil
	}
	return events
}

func (b *Bot) taskDigest(ctx context.Context, now time.Time) string {
	if b.tasks == nil {
		return ""
	}
	tasks, err := b.tasks.ListMyTasks(ctx)
	if err != nil {
		slog.Error("task fetch failed for briefing", "error", err)
		b.metrics.ExternalError("clickup")
		return ""
	}
	hidden, err := b.settings.HiddenTasks(ctx, b.userID)
	if err != nil {
		slog.Warn("failed to read hidden tasks", "error", err)
	}
	return clickup.FormatDigest(clickup.FilterHidden(tasks, hidden), now, 5)
}

func formatEventLine(ev models.CalendarEvent, loc *time.Location) string {
	if ev.AllDay {
		return "🗓 " + ev.Title + " (all day)"
	}
	return fmt.Sprintf("🗓 %s — %s", ev.Start.In(loc).Format("15:04"), ev.Title)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
