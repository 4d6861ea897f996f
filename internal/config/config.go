package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration, sourced from environment variables.
type Config struct {
	Port string

	// Telegram
	TelegramToken         string
	TelegramWebhookSecret string
	AllowedTelegramID     int64

	// Notion: NotesDatabaseID holds user notes, LogDatabaseID holds the
	// action log, conversational state and the settings page.
	NotionToken     string
	NotesDatabaseID string
	LogDatabaseID   string

	// LLM (OpenAI-compatible chat completions)
	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string

	// OpenAI (embeddings + briefing insight)
	OpenAIAPIKey string

	// Speech-to-text
	AssemblyAIAPIKey string

	// Vector search
	PineconeAPIKey string
	PineconeHost   string

	// Google Calendar (service account). Empty credentials disable
	// calendar features entirely.
	GoogleCredentialsJSON string
	GoogleCalendarID      string

	// ClickUp
	ClickUpToken         string
	ClickUpTeamID        string
	ClickUpUserID        string
	ClickUpWebhookSecret string

	// User preferences
	Timezone               string
	DefaultReminderMinutes int

	// Scheduler (in-process cron alternative to the /cron endpoints)
	EnableScheduler bool
	MorningCron     string
	EveningCron     string

	// Path to the categories/levels rules file (hot-reloaded)
	RulesFile string
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "3001"),

		TelegramToken:         getEnv("TELEGRAM_TOKEN", ""),
		TelegramWebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
		AllowedTelegramID:     getInt64Env("ALLOWED_TELEGRAM_ID", 0),

		NotionToken:     getEnv("NOTION_TOKEN", ""),
		NotesDatabaseID: getEnv("NOTION_DATABASE_ID", ""),
		LogDatabaseID:   getEnv("NOTION_LOG_DB_ID", ""),

		LLMAPIKey:  getEnv("LLM_API_KEY", ""),
		LLMBaseURL: getEnv("LLM_BASE_URL", "https://api.deepseek.com"),
		LLMModel:   getEnv("LLM_MODEL", "deepseek-chat"),

		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		AssemblyAIAPIKey: getEnv("ASSEMBLYAI_API_KEY", ""),

		PineconeAPIKey: getEnv("PINECONE_API_KEY", ""),
		PineconeHost:   getEnv("PINECONE_HOST", ""),

		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),
		GoogleCalendarID:      getEnv("GOOGLE_CALENDAR_ID", ""),

		ClickUpToken:         getEnv("CLICKUP_API_TOKEN", ""),
		ClickUpTeamID:        getEnv("CLICKUP_TEAM_ID", ""),
		ClickUpUserID:        getEnv("CLICKUP_USER_ID", ""),
		ClickUpWebhookSecret: getEnv("CLICKUP_WEBHOOK_SECRET", ""),

		Timezone:               getEnv("USER_TIMEZONE", "Europe/Kyiv"),
		DefaultReminderMinutes: getIntEnv("DEFAULT_REMINDER_MINUTES", 15),

		EnableScheduler: getBoolEnv("ENABLE_SCHEDULER", false),
		MorningCron:     getEnv("MORNING_DIGEST_CRON", "0 8 * * *"),
		EveningCron:     getEnv("EVENING_DIGEST_CRON", "0 20 * * *"),

		RulesFile: getEnv("RULES_FILE", "rules.yaml"),
	}
}

// Validate fails fast when a required variable is absent. Optional
// integrations (calendar, ClickUp, vector search, speech-to-text) are
// feature-gated on their own variables and not required here.
func (c *Config) Validate() error {
	var missing []string
	if c.TelegramToken == "" {
		missing = append(missing, "TELEGRAM_TOKEN")
	}
	if c.AllowedTelegramID == 0 {
		missing = append(missing, "ALLOWED_TELEGRAM_ID")
	}
	if c.NotionToken == "" {
		missing = append(missing, "NOTION_TOKEN")
	}
	if c.NotesDatabaseID == "" {
		missing = append(missing, "NOTION_DATABASE_ID")
	}
	if c.LogDatabaseID == "" {
		missing = append(missing, "NOTION_LOG_DB_ID")
	}
	if c.LLMAPIKey == "" {
		missing = append(missing, "LLM_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// CalendarEnabled reports whether calendar features are configured.
func (c *Config) CalendarEnabled() bool {
	return c.GoogleCredentialsJSON != "" && c.GoogleCalendarID != ""
}

// VectorEnabled reports whether semantic search is configured.
func (c *Config) VectorEnabled() bool {
	return c.OpenAIAPIKey != "" && c.PineconeAPIKey != "" && c.PineconeHost != ""
}

// ClickUpEnabled reports whether task-tracker features are configured.
func (c *Config) ClickUpEnabled() bool {
	return c.ClickUpToken != "" && c.ClickUpTeamID != "" && c.ClickUpUserID != ""
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
