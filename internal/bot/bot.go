package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"memobot/internal/ai"
	"memobot/internal/calendar"
	"memobot/internal/clickup"
	"memobot/internal/config"
	"memobot/internal/metrics"
	"memobot/internal/models"
	"memobot/internal/scrape"
	"memobot/internal/store"
	"memobot/internal/telegram"
	"memobot/internal/vector"
)

// Bot wires every service into the update-handling pipeline. Optional
// integrations (calendar, clickup, transcriber, embedder+index) may be nil;
// the features they back degrade gracefully.
type Bot struct {
	cfg      *config.Config
	rules    *config.RuleStore
	tg       *telegram.Client
	notes    *store.NotesStore
	log      *store.ActionLog
	states   *store.StateStore
	settings *store.SettingsStore
	llm      *ai.LLM
	metrics  *metrics.Metrics

	transcriber *ai.Transcriber
	embedder    *ai.Embedder
	index       *vector.Index
	cal         *calendar.Client
	tasks       *clickup.Client
	scraper     *scrape.Scraper

	userID string // AllowedTelegramID as a string, the store key
}

// Deps carries the optional integrations for New.
type Deps struct {
	Transcriber *ai.Transcriber
	Embedder    *ai.Embedder
	Index       *vector.Index
	Calendar    *calendar.Client
	Tasks       *clickup.Client
	Scraper     *scrape.Scraper
}

// New assembles the bot.
func New(cfg *config.Config, rules *config.RuleStore, tg *telegram.Client,
	notes *store.NotesStore, actionLog *store.ActionLog, states *store.StateStore,
	settings *store.SettingsStore, llm *ai.LLM, m *metrics.Metrics, deps Deps) *Bot {
	return &Bot{
		cfg:         cfg,
		rules:       rules,
		tg:          tg,
		notes:       notes,
		log:         actionLog,
		states:      states,
		settings:    settings,
		llm:         llm,
		metrics:     m,
		transcriber: deps.Transcriber,
		embedder:    deps.Embedder,
		index:       deps.Index,
		cal:         deps.Calendar,
		tasks:       deps.Tasks,
		scraper:     deps.Scraper,
		userID:      fmt.Sprintf("%d", cfg.AllowedTelegramID),
	}
}

// HandleUpdate processes one Telegram update end to end. Errors are
// reported to the user and logged, never returned: the webhook always
// acknowledges.
func (b *Bot) HandleUpdate(ctx context.Context, update *models.TelegramUpdate) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.ProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *models.TelegramMessage) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	if !b.allowed(msg.From.ID) {
		slog.Warn("rejected message from unknown user", "user_id", msg.From.ID)
		return
	}
	chatID := msg.Chat.ID

	b.count(kindOf(msg))

	// Commands run regardless of pending state and leave it untouched,
	// except /cancel which clears it.
	if strings.HasPrefix(msg.Text, "/") {
		b.handleCommand(ctx, chatID, msg.Text)
		return
	}

	// A pending state claims the next plain message.
	state, err := b.states.Get(ctx, b.userID)
	if err != nil {
		slog.Error("state lookup failed", "error", err)
		b.metrics.ExternalError("notion")
		// Fall through: treat the message as a new note rather than drop it.
	}
	if state != nil {
		b.handleStateReply(ctx, chatID, msg, state)
		return
	}

	b.captureNote(ctx, chatID, msg)
}

func (b *Bot) allowed(userID int64) bool {
	return userID == b.cfg.AllowedTelegramID
}

func (b *Bot) count(kind string) {
	if b.metrics != nil {
		b.metrics.UpdatesReceived.WithLabelValues(kind).Inc()
	}
}

func kindOf(msg *models.TelegramMessage) string {
	switch {
	case strings.HasPrefix(msg.Text, "/"):
		return "command"
	case msg.Voice != nil:
		return "voice"
	case len(msg.Photo) > 0:
		return "photo"
	case msg.Document != nil:
		return "document"
	default:
		return "text"
	}
}

// reply sends a message and logs delivery failures instead of propagating
// them; there is nothing useful to do when the reply itself fails.
func (b *Bot) reply(ctx context.Context, chatID int64, text string, keyboard [][]telegram.InlineButton) int64 {
	id, err := b.tg.SendMessage(ctx, chatID, text, keyboard)
	if err != nil {
		slog.Error("failed to send reply", "chat_id", chatID, "error", err)
		b.metrics.ExternalError("telegram")
	}
	return id
}

func (b *Bot) edit(ctx context.Context, chatID, messageID int64, text string, keyboard [][]telegram.InlineButton) {
	// No status message to edit when the initial send failed; send fresh
	// so the outcome still reaches the user.
	if messageID == 0 {
		b.reply(ctx, chatID, text, keyboard)
		return
	}
	if err := b.tg.EditMessage(ctx, chatID, messageID, text, keyboard); err != nil {
		slog.Error("failed to edit message", "chat_id", chatID, "error", err)
		b.metrics.ExternalError("telegram")
	}
}

// handleStateReply interprets a plain message under a consumed pending state.
func (b *Bot) handleStateReply(ctx context.Context, chatID int64, msg *models.TelegramMessage, state *models.ConversationState) {
	text := strings.TrimSpace(msg.Text)

	switch state.Tag {
	case models.StateAwaitingSearch:
		if text == "" {
			b.reply(ctx, chatID, "An empty query won't find much. Search cancelled.", nil)
			return
		}
		b.runSearch(ctx, chatID, text)

	case models.StateAwaitingRename:
		if text == "" {
			b.reply(ctx, chatID, "A title can't be empty. Rename cancelled.", nil)
			return
		}
		if err := b.notes.Rename(ctx, state.NoteID, text); err != nil {
			slog.Error("rename failed", "note_id", state.NoteID, "error", err)
			b.metrics.ExternalError("notion")
			b.reply(ctx, chatID, "Couldn't rename the note: "+err.Error(), nil)
			return
		}
		b.reply(ctx, chatID, fmt.Sprintf("✏️ Renamed to **%s**.", text), nil)

	case models.StateAwaitingAddText:
		if text == "" {
			b.reply(ctx, chatID, "Nothing to add. Cancelled.", nil)
			return
		}
		// Offer plain append vs polish; the text rides along in the state.
		if err := b.states.Set(ctx, b.userID, models.StatePendingEdit, state.NoteID, text); err != nil {
			slog.Error("failed to store pending edit", "error", err)
			b.metrics.ExternalError("notion")
			b.reply(ctx, chatID, "Couldn't stage the edit, try again.", nil)
			return
		}
		b.reply(ctx, chatID, "How should I add it?", telegram.KeyboardRow(
			telegram.InlineButton{Text: "➕ Append as-is", Callback: "edit_append_" + state.NoteID},
			telegram.InlineButton{Text: "✨ Merge & polish", Callback: "edit_polish_" + state.NoteID},
		))

	default:
		slog.Warn("dropping unknown state tag", "tag", state.Tag)
		b.captureNote(ctx, chatID, msg)
	}
}
