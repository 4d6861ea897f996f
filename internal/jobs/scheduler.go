package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"memobot/internal/bot"
	"memobot/internal/config"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"
)

// Scheduler runs the reminder check and the daily briefings in process,
// for deployments without an external cron hitting the /cron endpoints.
type Scheduler struct {
	cfg       *config.Config
	bot       *bot.Bot
	scheduler gocron.Scheduler
}

// New validates the cron expressions and builds the scheduler. Validation
// up front turns a typo in an env var into a startup failure instead of a
// briefing that silently never fires.
func New(cfg *config.Config, b *bot.Bot) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(cfg.MorningCron); err != nil {
		return nil, fmt.Errorf("invalid MORNING_DIGEST_CRON %q: %w", cfg.MorningCron, err)
	}
	if _, err := parser.Parse(cfg.EveningCron); err != nil {
		return nil, fmt.Errorf("invalid EVENING_DIGEST_CRON %q: %w", cfg.EveningCron, err)
	}

	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(cfg.Location()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Scheduler{cfg: cfg, bot: b, scheduler: scheduler}, nil
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			s.bot.SendReminders(ctx, time.Now())
		}),
		gocron.WithName("event-reminders"),
	); err != nil {
		return fmt.Errorf("failed to register reminder job: %w", err)
	}

	if _, err := s.scheduler.NewJob(
		gocron.CronJob(s.cfg.MorningCron, false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			s.bot.SendMorningBriefing(ctx)
		}),
		gocron.WithName("morning-briefing"),
	); err != nil {
		return fmt.Errorf("failed to register morning briefing: %w", err)
	}

	if _, err := s.scheduler.NewJob(
		gocron.CronJob(s.cfg.EveningCron, false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			s.bot.SendEveningBriefing(ctx)
		}),
		gocron.WithName("evening-briefing"),
	); err != nil {
		return fmt.Errorf("failed to register evening briefing: %w", err)
	}

	s.scheduler.Start()
	slog.Info("scheduler started",
		"morning_cron", s.cfg.MorningCron, "evening_cron", s.cfg.EveningCron)
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *Scheduler) Stop() {
	if err := s.scheduler.Shutdown(); err != nil {
		slog.Warn("scheduler shutdown failed", "error", err)
	}
}
