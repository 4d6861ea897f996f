package bot

import (
	"context"
	"log/slog"
	"strings"

	"memobot/internal/models"
	"memobot/internal/telegram"
)

// handleCallback dispatches inline button presses. Every branch answers
// the callback so the client spinner stops even on failure.
func (b *Bot) handleCallback(ctx context.Context, cb *models.CallbackQuery) {
	if cb.From == nil || !b.allowed(cb.From.ID) {
		b.tg.AnswerCallback(ctx, cb.ID, "")
		return
	}
	if cb.Message == nil || cb.Message.Chat == nil {
		b.tg.AnswerCallback(ctx, cb.ID, "")
		return
	}
	chatID := cb.Message.Chat.ID
	b.count("callback")

	switch {
	case cb.Data == "undo_last_action":
		b.tg.AnswerCallback(ctx, cb.ID, "")
		b.undoLast(ctx, chatID)

	case strings.HasPrefix(cb.Data, "pick_note_"):
		noteID := strings.TrimPrefix(cb.Data, "pick_note_")
		b.tg.AnswerCallback(ctx, cb.ID, "")
		b.showNoteMenu(ctx, chatID, cb.Message.MessageID, noteID)

	case strings.HasPrefix(cb.Data, "delete_note_"):
		noteID := strings.TrimPrefix(cb.Data, "delete_note_")
		if err := b.notes.Archive(ctx, noteID); err != nil {
			slog.Error("note deletion failed", "note_id", noteID, "error", err)
			b.metrics.ExternalError("notion")
			b.tg.AnswerCallback(ctx, cb.ID, "Deletion failed")
			return
		}
		b.tg.AnswerCallback(ctx, cb.ID, "Deleted")
		b.edit(ctx, chatID, cb.Message.MessageID, "🗑 Note deleted.", nil)

	case strings.HasPrefix(cb.Data, "rename_note_"):
		noteID := strings.TrimPrefix(cb.Data, "rename_note_")
		if err := b.states.Set(ctx, b.userID, models.StateAwaitingRename, noteID, ""); err != nil {
			slog.Error("failed to set rename state", "error", err)
			b.metrics.ExternalError("notion")
			b.tg.AnswerCallback(ctx, cb.ID, "Something went wrong")
			return
		}
		b.tg.AnswerCallback(ctx, cb.ID, "")
		b.reply(ctx, chatID, "✏️ Send the new title.", nil)

	case strings.HasPrefix(cb.Data, "append_note_"):
		noteID := strings.TrimPrefix(cb.Data, "append_note_")
		if err := b.states.Set(ctx, b.userID, models.StateAwaitingAddText, noteID, ""); err != nil {
			slog.Error("failed to set append state", "error", err)
			b.metrics.ExternalError("notion")
			b.tg.AnswerCallback(ctx, cb.ID, "Something went wrong")
			return
		}
		b.tg.AnswerCallback(ctx, cb.ID, "")
		b.reply(ctx, chatID, "➕ Send the text to add.", nil)

	case strings.HasPrefix(cb.Data, "edit_append_"):
		b.tg.AnswerCallback(ctx, cb.ID, "")
		b.applyEdit(ctx, chatID, cb.Message.MessageID, strings.TrimPrefix(cb.Data, "edit_append_"), false)

	case strings.HasPrefix(cb.Data, "edit_polish_"):
		b.tg.AnswerCallback(ctx, cb.ID, "")
		b.applyEdit(ctx, chatID, cb.Message.MessageID, strings.TrimPrefix(cb.Data, "edit_polish_"), true)

	default:
		slog.Warn("unknown callback", "data", cb.Data)
		b.tg.AnswerCallback(ctx, cb.ID, "")
	}
}

func (b *Bot) showNoteMenu(ctx context.Context, chatID, messageID int64, noteID string) {
	note, err := b.notes.Note(ctx, noteID)
	if err != nil {
		slog.Error("failed to load note", "note_id", noteID, "error", err)
		b.metrics.ExternalError("notion")
		b.edit(ctx, chatID, messageID, "Couldn't load that note.", nil)
		return
	}

	b.edit(ctx, chatID, messageID, "**"+note.Title+"** — what should I do?", telegram.Keyboard(
		telegram.InlineButton{Text: "➕ Add text", Callback: "append_note_" + noteID},
		telegram.InlineButton{Text: "✏️ Rename", Callback: "rename_note_" + noteID},
		telegram.InlineButton{Text: "🗑 Delete", Callback: "delete_note_" + noteID},
		telegram.InlineButton{Text: "🔗 Open in Notion", URL: note.URL},
	))
}

// applyEdit finishes the staged add-text flow. The staged text rides in the
// pending_edit state; polish rewrites the whole body through the LLM,
// otherwise the text is appended verbatim.
func (b *Bot) applyEdit(ctx context.Context, chatID, messageID int64, noteID string, polish bool) {
	state, err := b.states.Get(ctx, b.userID)
	if err != nil {
		slog.Error("failed to read pending edit", "error", err)
		b.metrics.ExternalError("notion")
		b.edit(ctx, chatID, messageID, "Couldn't read the staged edit, start over with /edit.", nil)
		return
	}
	if state == nil || state.Tag != models.StatePendingEdit || state.NoteID != noteID || state.PendingText == "" {
		b.edit(ctx, chatID, messageID, "That edit has expired, start over with /edit.", nil)
		return
	}

	if !polish {
		if err := b.notes.AppendText(ctx, noteID, state.PendingText); err != nil {
			slog.Error("append failed", "note_id", noteID, "error", err)
			b.metrics.ExternalError("notion")
			b.edit(ctx, chatID, messageID, "Couldn't update the note: "+err.Error(), nil)
			return
		}
		b.edit(ctx, chatID, messageID, "➕ Added.", nil)
		return
	}

	b.edit(ctx, chatID, messageID, "✨ Polishing…", nil)

	existing, err := b.notes.Content(ctx, noteID)
	if err != nil {
		slog.Error("failed to read note body", "note_id", noteID, "error", err)
		b.metrics.ExternalError("notion")
		b.edit(ctx, chatID, messageID, "Couldn't read the note: "+err.Error(), nil)
		return
	}

	merged, err := b.llm.Polish(ctx, existing, state.PendingText)
	if err != nil {
		slog.Warn("polish failed, appending instead", "error", err)
		b.metrics.ExternalError("llm")
		if err := b.notes.AppendText(ctx, noteID, state.PendingText); err != nil {
			b.edit(ctx, chatID, messageID, "Couldn't update the note: "+err.Error(), nil)
			return
		}
		b.edit(ctx, chatID, messageID, "➕ Added (polish unavailable).", nil)
		return
	}

	if err := b.notes.ReplaceBody(ctx, noteID, merged); err != nil {
		slog.Error("body replacement failed", "note_id", noteID, "error", err)
		b.metrics.ExternalError("notion")
		b.edit(ctx, chatID, messageID, "Couldn't update the note: "+err.Error(), nil)
		return
	}
	b.edit(ctx, chatID, messageID, "✨ Merged and polished.", nil)
}
