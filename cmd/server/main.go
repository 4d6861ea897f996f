package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memobot/internal/ai"
	"memobot/internal/bot"
	"memobot/internal/calendar"
	"memobot/internal/clickup"
	"memobot/internal/config"
	"memobot/internal/handlers"
	"memobot/internal/jobs"
	"memobot/internal/logging"
	"memobot/internal/metrics"
	"memobot/internal/notion"
	"memobot/internal/scrape"
	"memobot/internal/store"
	"memobot/internal/telegram"
	"memobot/internal/vector"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	logging.Init()

	log.Println("🚀 Starting memobot...")

	if err := godotenv.Load(); err == nil {
		log.Println("✅ .env file loaded")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Printf("📋 Configuration loaded (Port: %s, timezone: %s)", cfg.Port, cfg.Timezone)

	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		log.Fatalf("❌ Failed to load rules: %v", err)
	}
	watcher, err := rules.Watch()
	if err != nil {
		log.Printf("⚠️ Rules hot reload disabled: %v", err)
	}
	if watcher != nil {
		defer watcher.Close()
		log.Printf("📜 Watching rules file: %s", cfg.RulesFile)
	}

	m := metrics.Init()

	// Core services
	notionClient := notion.New(cfg.NotionToken)
	tg := telegram.New(cfg.TelegramToken)
	notes := store.NewNotesStore(notionClient, cfg.NotesDatabaseID)
	actionLog := store.NewActionLog(notionClient, cfg.LogDatabaseID)
	states := store.NewStateStore(notionClient, cfg.LogDatabaseID)
	settings := store.NewSettingsStore(notionClient, cfg.LogDatabaseID)
	llm := ai.NewLLM(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)

	// Optional integrations
	deps := bot.Deps{Scraper: scrape.New()}

	if cfg.AssemblyAIAPIKey != "" {
		deps.Transcriber = ai.NewTranscriber(cfg.AssemblyAIAPIKey)
		log.Println("🎙️ Voice transcription enabled")
	}
	if cfg.VectorEnabled() {
		deps.Embedder = ai.NewEmbedder(cfg.OpenAIAPIKey)
		deps.Index = vector.NewIndex(cfg.PineconeAPIKey, cfg.PineconeHost)
		log.Println("🧭 Semantic search enabled")
	}
	if cfg.CalendarEnabled() {
		cal, err := calendar.New(cfg.GoogleCredentialsJSON, cfg.GoogleCalendarID, cfg.Timezone)
		if err != nil {
			log.Fatalf("❌ Calendar configuration invalid: %v", err)
		}
		deps.Calendar = cal
		log.Println("📅 Calendar integration enabled")
	}
	if cfg.ClickUpEnabled() {
		deps.Tasks = clickup.New(cfg.ClickUpToken, cfg.ClickUpTeamID, cfg.ClickUpUserID)
		log.Println("✅ Task tracker integration enabled")
	}

	memoBot := bot.New(cfg, rules, tg, notes, actionLog, states, settings, llm, m, deps)

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName:      "memobot v1.0",
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    20 * 1024 * 1024, // Telegram photo/document payloads
	})
	app.Use(recover.New())
	app.Use(logger.New())

	prometheus := fiberprometheus.New("memobot")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics at /metrics")

	webhooks := handlers.NewWebhookHandler(cfg, memoBot)
	crons := handlers.NewCronHandler(cfg, memoBot)
	health := handlers.NewHealthHandler()

	app.Post("/webhook/telegram/:secret", webhooks.Telegram)
	app.Post("/webhook/clickup", webhooks.ClickUp)
	app.Get("/webhook/clickup", webhooks.ClickUpPing)
	app.Get("/cron/reminders", crons.Reminders)
	app.Get("/cron/digest", crons.Digest)
	app.Get("/health", health.Handle)

	// In-process scheduler, alternative to external crons on /cron/*.
	var scheduler *jobs.Scheduler
	if cfg.EnableScheduler {
		scheduler, err = jobs.New(cfg, memoBot)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		if err := scheduler.Start(); err != nil {
			log.Fatalf("❌ Failed to start scheduler: %v", err)
		}
		log.Println("🕐 In-process scheduler enabled")
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down...")
		if scheduler != nil {
			scheduler.Stop()
		}
		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
