package bot

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"memobot/internal/models"
	"memobot/internal/notion"
	"memobot/internal/scrape"
	"memobot/internal/telegram"
)

// noteXP is awarded for every captured note. Task completions pay out by
// priority, see taskXP.
const noteXP = 5

var urlOnlyPattern = regexp.MustCompile(`^https?://\S+$`)

// captureNote runs the full inbound pipeline: resolve the message to text,
// format it with the LLM, create the note, create any extracted calendar
// events, log each side effect for undo, index for semantic search and
// award XP. The user watches progress through in-place edits of a single
// status message.
func (b *Bot) captureNote(ctx context.Context, chatID int64, msg *models.TelegramMessage) {
	statusID := b.reply(ctx, chatID, "⏳ Processing…", nil)

	text, extraBlocks, err := b.resolveInput(ctx, chatID, statusID, msg)
	if err != nil {
		b.edit(ctx, chatID, statusID, "❌ "+err.Error(), nil)
		return
	}
	if strings.TrimSpace(text) == "" && len(extraBlocks) == 0 {
		b.edit(ctx, chatID, statusID, "❌ There's nothing to save in that message.", nil)
		return
	}

	b.edit(ctx, chatID, statusID, "🧠 Formatting…", nil)
	draft := b.formatDraft(ctx, text)

	rules := b.rules.Current()
	category := rules.Normalize(draft.Category)
	icon := rules.Icon(category)

	b.edit(ctx, chatID, statusID, "💾 Saving…", nil)
	noteID, err := b.notes.CreateNote(ctx, draft.Title, category, icon, draft.FormattedBody, extraBlocks)
	if err != nil {
		slog.Error("note creation failed", "error", err)
		b.metrics.ExternalError("notion")
		b.edit(ctx, chatID, statusID, "❌ Couldn't save the note: "+err.Error(), nil)
		return
	}
	b.log.Record(ctx, models.RecordedAction{NoteID: noteID})
	if b.metrics != nil {
		b.metrics.NotesCreated.Inc()
	}

	eventLines := b.createEvents(ctx, noteID, draft.Title, draft.Events)

	b.indexNote(ctx, noteID, draft.Title+"\n"+draft.FormattedBody)

	levelUp := b.awardXP(ctx, noteXP)

	var out strings.Builder
	fmt.Fprintf(&out, "%s **%s**\n_%s_ · +%d XP", icon, draft.Title, category, noteXP)
	for _, line := range eventLines {
		out.WriteString("\n" + line)
	}
	if levelUp != "" {
		out.WriteString("\n\n" + levelUp)
	}

	b.edit(ctx, chatID, statusID, out.String(), telegram.Keyboard(
		telegram.InlineButton{Text: "↩️ Undo", Callback: "undo_last_action"},
	))
}

// resolveInput turns the message into raw text plus extra leading blocks
// for the note body (a photo, a bookmark).
func (b *Bot) resolveInput(ctx context.Context, chatID, statusID int64, msg *models.TelegramMessage) (string, []notion.Block, error) {
	switch {
	case msg.Voice != nil:
		if b.transcriber == nil {
			return "", nil, fmt.Errorf("voice notes are not configured")
		}
		b.edit(ctx, chatID, statusID, "🎙️ Transcribing…", nil)
		audio, err := b.tg.DownloadFile(ctx, msg.Voice.FileID)
		if err != nil {
			b.metrics.ExternalError("telegram")
			return "", nil, fmt.Errorf("couldn't download the voice message")
		}
		text, err := b.transcriber.Transcribe(ctx, audio)
		if err != nil {
			slog.Error("transcription failed", "error", err)
			b.metrics.ExternalError("transcribe")
			return "", nil, fmt.Errorf("couldn't transcribe the voice message")
		}
		return text, nil, nil

	case len(msg.Photo) > 0:
		// The largest size is last. The file URL is embedded as an
		// external image; Telegram keeps it valid long enough for Notion
		// to mirror it.
		fileID := msg.Photo[len(msg.Photo)-1].FileID
		photoURL, err := b.tg.FileURL(ctx, fileID)
		if err != nil {
			b.metrics.ExternalError("telegram")
			return "", nil, fmt.Errorf("couldn't fetch the photo")
		}
		caption := msg.Caption
		if caption == "" {
			caption = "Photo note"
		}
		return caption, []notion.Block{notion.ImageBlock(photoURL)}, nil

	case msg.Document != nil && strings.Contains(msg.Document.MimeType, "pdf"):
		b.edit(ctx, chatID, statusID, "📄 Reading PDF…", nil)
		data, err := b.tg.DownloadFile(ctx, msg.Document.FileID)
		if err != nil {
			b.metrics.ExternalError("telegram")
			return "", nil, fmt.Errorf("couldn't download the document")
		}
		text, err := scrape.PDFText(data)
		if err != nil {
			return "", nil, err
		}
		if msg.Caption != "" {
			text = msg.Caption + "\n\n" + text
		}
		return text, nil, nil

	case msg.Document != nil:
		return "", nil, fmt.Errorf("only PDF documents are supported")

	case urlOnlyPattern.MatchString(strings.TrimSpace(msg.Text)):
		return b.resolveLink(ctx, chatID, statusID, strings.TrimSpace(msg.Text)), nil, nil

	default:
		return msg.Text, nil, nil
	}
}

// resolveLink enriches a bare URL with the page's extracted content. On any
// scrape failure the URL alone still becomes a note.
func (b *Bot) resolveLink(ctx context.Context, chatID, statusID int64, rawURL string) string {
	if b.scraper == nil {
		return rawURL
	}
	b.edit(ctx, chatID, statusID, "🔗 Fetching link…", nil)

	extract, err := b.scraper.Fetch(ctx, rawURL, 4000)
	if err != nil {
		slog.Warn("link fetch failed, saving bare URL", "url", rawURL, "error", err)
		return rawURL
	}

	var out strings.Builder
	out.WriteString(rawURL + "\n")
	if extract.Title != "" {
		out.WriteString("\n**" + extract.Title + "**\n")
	}
	out.WriteString("\n" + extract.Content)
	return out.String()
}

// formatDraft asks the LLM to structure the text; on failure the raw text
// still becomes a note under the default category.
func (b *Bot) formatDraft(ctx context.Context, text string) *models.NoteDraft {
	rules := b.rules.Current()
	categories := make([]string, 0, len(rules.Categories))
	for name := range rules.Categories {
		categories = append(categories, name)
	}

	draft, err := b.llm.FormatNote(ctx, text, categories, time.Now().In(b.cfg.Location()), b.cfg.Timezone)
	if err != nil {
		slog.Warn("llm formatting failed, saving raw text", "error", err)
		b.metrics.ExternalError("llm")
		return &models.NoteDraft{
			Title:         fallbackTitle(text),
			Category:      rules.DefaultCategory,
			FormattedBody: text,
		}
	}
	return draft
}

func fallbackTitle(text string) string {
	line := strings.TrimSpace(text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	runes := []rune(line)
	if len(runes) > 60 {
		line = string(runes[:57]) + "…"
	}
	if line == "" {
		line = "Untitled note"
	}
	return line
}

// createEvents creates the calendar events extracted from the note, each
// logged as its own undo entry. Every event's description carries the note
// title and a link back to the note. Returns one result line per event.
func (b *Bot) createEvents(ctx context.Context, noteID, noteTitle string, events []models.EventDraft) []string {
	if b.cal == nil || len(events) == 0 {
		return nil
	}

	description := "📝 " + noteTitle
	if note, err := b.notes.Note(ctx, noteID); err == nil && note.URL != "" {
		description += "\n" + note.URL
	}

	reminderMinutes, err := b.settings.ReminderMinutes(ctx, b.userID)
	if err != nil {
		slog.Warn("failed to read reminder setting, using default", "error", err)
		reminderMinutes = models.DefaultReminderMinutes
	}

	var lines []string
	for _, ev := range events {
		if !ev.Valid() {
			continue
		}
		start, err := time.Parse(time.RFC3339, ev.StartISO)
		if err != nil {
			// Second chance for timestamps missing a zone offset.
			start, err = time.ParseInLocation("2006-01-02T15:04:05", ev.StartISO, b.cfg.Location())
		}
		if err != nil {
			slog.Warn("skipping event with unparseable start", "start", ev.StartISO)
			continue
		}

		eventID, err := b.cal.CreateEvent(ctx, ev.Title, description, start, reminderMinutes)
		if err != nil {
			slog.Error("event creation failed", "title", ev.Title, "error", err)
			b.metrics.ExternalError("calendar")
			lines = append(lines, fmt.Sprintf("⚠️ Couldn't schedule \"%s\"", ev.Title))
			continue
		}
		b.log.Record(ctx, models.RecordedAction{EventID: eventID, CalendarID: b.cal.CalendarID()})
		if b.metrics != nil {
			b.metrics.EventsCreated.Inc()
		}
		lines = append(lines, fmt.Sprintf("📅 %s — %s", ev.Title, start.In(b.cfg.Location()).Format("Mon 2 Jan 15:04")))
	}
	return lines
}

// indexNote embeds and upserts the note for semantic search. Best effort.
func (b *Bot) indexNote(ctx context.Context, noteID, text string) {
	if b.embedder == nil || b.index == nil {
		return
	}
	vec, err := b.embedder.Embed(ctx, text)
	if err != nil {
		slog.Warn("embedding failed", "note_id", noteID, "error", err)
		b.metrics.ExternalError("vector")
		return
	}
	if err := b.index.Upsert(ctx, noteID, vec); err != nil {
		slog.Warn("vector upsert failed", "note_id", noteID, "error", err)
		b.metrics.ExternalError("vector")
	}
}

// awardXP adds XP to the settings blob and returns a level-up announcement
// when the ladder position changed, "" otherwise.
func (b *Bot) awardXP(ctx context.Context, xp int) string {
	before, err := b.settings.Get(ctx, b.userID)
	if err != nil {
		slog.Warn("xp read failed", "error", err)
		return ""
	}
	rules := b.rules.Current()
	_, newIndex, _ := rules.LevelFor(before.XP + xp)

	updated, err := b.settings.AddXP(ctx, b.userID, xp, newIndex)
	if err != nil {
		slog.Warn("xp update failed", "error", err)
		b.metrics.ExternalError("notion")
		return ""
	}

	_, oldIndex, _ := rules.LevelFor(before.XP)
	if newIndex > oldIndex {
		title, _, _ := rules.LevelFor(updated.XP)
		return fmt.Sprintf("🎉 **Level up!** You are now %s", title)
	}
	return ""
}
