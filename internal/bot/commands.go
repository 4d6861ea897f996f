package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"memobot/internal/clickup"
	"memobot/internal/export"
	"memobot/internal/models"
	"memobot/internal/telegram"
)

const helpText = `I turn whatever you send me into structured notes.

Send text, a voice message, a photo, a PDF or a link and I'll file it, schedule any events it mentions and keep it searchable.

**Commands**
/notes — latest notes
/search — ask your notes a question
/edit — modify a recent note
/undo — revert the last saved action
/tasks — task briefing
/level — your XP and level
/remind — event reminder lead time
/hide, /unhide — manage tasks in briefings
/export — download notes as a spreadsheet
/index_all — rebuild the search index
/cancel — abort a pending prompt`

func (b *Bot) handleCommand(ctx context.Context, chatID int64, text string) {
	command, args := splitCommand(text)

	switch command {
	case "/start":
		b.reply(ctx, chatID, "👋 Ready when you are.\n\n"+helpText, nil)

	case "/help":
		b.reply(ctx, chatID, helpText, nil)

	case "/cancel":
		b.states.Clear(ctx, b.userID)
		b.reply(ctx, chatID, "Cancelled.", nil)

	case "/notes":
		b.listNotes(ctx, chatID)

	case "/search":
		if args != "" {
			b.runSearch(ctx, chatID, args)
			return
		}
		if err := b.states.Set(ctx, b.userID, models.StateAwaitingSearch, "", ""); err != nil {
			slog.Error("failed to set search state", "error", err)
			b.metrics.ExternalError("notion")
			b.reply(ctx, chatID, "Something went wrong, try /search again.", nil)
			return
		}
		b.reply(ctx, chatID, "🔍 What are you looking for?", nil)

	case "/edit":
		b.pickNoteForEdit(ctx, chatID)

	case "/undo":
		b.undoLast(ctx, chatID)

	case "/tasks":
		b.sendTasks(ctx, chatID)

	case "/level":
		b.sendLevel(ctx, chatID)

	case "/remind":
		b.handleRemind(ctx, chatID, args)

	case "/hide":
		b.setTaskHidden(ctx, chatID, args, true)

	case "/unhide":
		b.setTaskHidden(ctx, chatID, args, false)

	case "/export":
		b.exportNotes(ctx, chatID)

	case "/index_all":
		b.reindexNotes(ctx, chatID)

	default:
		b.reply(ctx, chatID, "Unknown command. Try /help.", nil)
	}
}

func splitCommand(text string) (command, args string) {
	parts := strings.SplitN(strings.TrimSpace(text), " ", 2)
	command = strings.ToLower(parts[0])
	// Strip the @botname suffix of group-style commands.
	if i := strings.IndexByte(command, '@'); i >= 0 {
		command = command[:i]
	}
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}
	return command, args
}

func (b *Bot) listNotes(ctx context.Context, chatID int64) {
	notes, err := b.notes.Latest(ctx, 10)
	if err != nil {
		slog.Error("failed to list notes", "error", err)
		b.metrics.ExternalError("notion")
		b.reply(ctx, chatID, "Couldn't load your notes: "+err.Error(), nil)
		return
	}
	if len(notes) == 0 {
		b.reply(ctx, chatID, "No notes yet. Send me something!", nil)
		return
	}

	var out strings.Builder
	out.WriteString("🗂 **Latest notes**\n")
	for _, n := range notes {
		icon := n.Icon
		if icon == "" {
			icon = "📄"
		}
		fmt.Fprintf(&out, "\n%s [%s](%s) · %s", icon, n.Title, n.URL, n.CreatedAt.In(b.cfg.Location()).Format("2 Jan"))
	}
	b.reply(ctx, chatID, out.String(), nil)
}

// runSearch answers a query from the notes: substring matches from the
// content mirror plus, when configured, semantic neighbours from the
// vector index, summarized by the LLM.
func (b *Bot) runSearch(ctx context.Context, chatID int64, query string) {
	statusID := b.reply(ctx, chatID, "🔍 Searching…", nil)

	matches, err := b.notes.SearchContent(ctx, query, 5)
	if err != nil {
		slog.Error("search failed", "error", err)
		b.metrics.ExternalError("notion")
		b.edit(ctx, chatID, statusID, "Search failed: "+err.Error(), nil)
		return
	}

	seen := make(map[string]bool, len(matches))
	for _, n := range matches {
		seen[n.ID] = true
	}

	// Semantic pass widens recall beyond literal substrings.
	if b.embedder != nil && b.index != nil {
		if vec, err := b.embedder.Embed(ctx, query); err == nil {
			ids, err := b.index.Query(ctx, vec, 3)
			if err != nil {
				slog.Warn("vector query failed", "error", err)
				b.metrics.ExternalError("vector")
			}
			for _, id := range ids {
				if seen[id] {
					continue
				}
				if page, err := b.notes.Note(ctx, id); err == nil {
					matches = append(matches, *page)
					seen[id] = true
				}
			}
		}
	}

	if len(matches) == 0 {
		b.edit(ctx, chatID, statusID, fmt.Sprintf("Nothing found for \"%s\".", query), nil)
		return
	}

	contents := make([]string, 0, len(matches))
	for _, n := range matches {
		body, err := b.notes.Content(ctx, n.ID)
		if err != nil || body == "" {
			body = n.Content
		}
		contents = append(contents, fmt.Sprintf("## %s\n%s", n.Title, body))
	}

	answer, err := b.llm.SummarizeSearch(ctx, query, contents)
	if err != nil {
		slog.Warn("search summarization failed, listing matches", "error", err)
		b.metrics.ExternalError("llm")
		answer = "Here's what matched:"
	}

	var out strings.Builder
	out.WriteString(answer + "\n")
	for _, n := range matches {
		fmt.Fprintf(&out, "\n• [%s](%s)", n.Title, n.URL)
	}
	b.edit(ctx, chatID, statusID, out.String(), nil)
}

// pickNoteForEdit lists recent notes as buttons; picking one opens the
// per-note action menu.
func (b *Bot) pickNoteForEdit(ctx context.Context, chatID int64) {
	notes, err := b.notes.Latest(ctx, 5)
	if err != nil {
		slog.Error("failed to list notes for edit", "error", err)
		b.metrics.ExternalError("notion")
		b.reply(ctx, chatID, "Couldn't load your notes: "+err.Error(), nil)
		return
	}
	if len(notes) == 0 {
		b.reply(ctx, chatID, "No notes to edit yet.", nil)
		return
	}

	buttons := make([]telegram.InlineButton, 0, len(notes))
	for _, n := range notes {
		label := n.Title
		if n.Icon != "" {
			label = n.Icon + " " + label
		}
		buttons = append(buttons, telegram.InlineButton{Text: label, Callback: "pick_note_" + n.ID})
	}
	b.reply(ctx, chatID, "Which note?", telegram.Keyboard(buttons...))
}

// undoLast pops the newest log entry and reverses it: calendar events are
// deleted, notes are archived. One pop per call; a note with two events
// takes three /undo taps, events first.
func (b *Bot) undoLast(ctx context.Context, chatID int64) {
	action, err := b.log.PopLatest(ctx)
	if err != nil {
		slog.Error("undo failed", "error", err)
		b.metrics.ExternalError("notion")
		b.reply(ctx, chatID, "Undo failed: "+err.Error(), nil)
		return
	}
	if action == nil {
		b.reply(ctx, chatID, "Nothing to undo.", nil)
		return
	}

	var undone []string
	if action.EventID != "" {
		if b.cal == nil {
			b.reply(ctx, chatID, "That action created a calendar event, but the calendar is not configured anymore.", nil)
			return
		}
		if err := b.cal.DeleteEvent(ctx, action.CalendarID, action.EventID); err != nil {
			slog.Error("event deletion failed", "event_id", action.EventID, "error", err)
			b.metrics.ExternalError("calendar")
			b.reply(ctx, chatID, "Couldn't delete the calendar event: "+err.Error(), nil)
			return
		}
		undone = append(undone, "calendar event")
	}
	if action.NoteID != "" {
		if err := b.notes.Archive(ctx, action.NoteID); err != nil {
			slog.Error("note archive failed", "note_id", action.NoteID, "error", err)
			b.metrics.ExternalError("notion")
			b.reply(ctx, chatID, "Couldn't archive the note: "+err.Error(), nil)
			return
		}
		undone = append(undone, "note")
	}

	if b.metrics != nil {
		b.metrics.UndoOperations.Inc()
	}
	b.reply(ctx, chatID, "↩️ Undone: "+strings.Join(undone, " and ")+". Tap /undo again to step further back.", nil)
}

func (b *Bot) sendTasks(ctx context.Context, chatID int64) {
	if b.tasks == nil {
		b.reply(ctx, chatID, "Task tracking is not configured.", nil)
		return
	}
	tasks, err := b.tasks.ListMyTasks(ctx)
	if err != nil {
		slog.Error("task fetch failed", "error", err)
		b.metrics.ExternalError("clickup")
		b.reply(ctx, chatID, "Couldn't fetch your tasks: "+err.Error(), nil)
		return
	}

	hidden, err := b.settings.HiddenTasks(ctx, b.userID)
	if err != nil {
		slog.Warn("failed to read hidden tasks", "error", err)
	}
	tasks = clickup.FilterHidden(tasks, hidden)

	b.reply(ctx, chatID, clickup.FormatDigest(tasks, time.Now().In(b.cfg.Location()), 10), nil)
}

func (b *Bot) sendLevel(ctx context.Context, chatID int64) {
	settings, err := b.settings.Get(ctx, b.userID)
	if err != nil {
		slog.Error("failed to read settings", "error", err)
		b.metrics.ExternalError("notion")
		b.reply(ctx, chatID, "Couldn't load your progress: "+err.Error(), nil)
		return
	}

	rules := b.rules.Current()
	title, _, next := rules.LevelFor(settings.XP)

	var out strings.Builder
	fmt.Fprintf(&out, "%s\n**%d XP**", title, settings.XP)
	if next > 0 {
		fmt.Fprintf(&out, " · %d to the next level", next-settings.XP)
	} else {
		out.WriteString(" · top of the ladder 👑")
	}
	b.reply(ctx, chatID, out.String(), nil)
}

func (b *Bot) handleRemind(ctx context.Context, chatID int64, args string) {
	if args == "" {
		minutes, err := b.settings.ReminderMinutes(ctx, b.userID)
		if err != nil {
			slog.Error("failed to read reminder setting", "error", err)
			b.metrics.ExternalError("notion")
			b.reply(ctx, chatID, "Couldn't load the reminder setting: "+err.Error(), nil)
			return
		}
		if minutes == 0 {
			b.reply(ctx, chatID, "Reminders are off. `/remind 15` turns them back on.", nil)
			return
		}
		b.reply(ctx, chatID, fmt.Sprintf("Reminders fire **%d minutes** before an event. `/remind <minutes>` changes it, `/remind 0` disables.", minutes), nil)
		return
	}

	minutes, err := strconv.Atoi(args)
	if err != nil || minutes < 0 {
		b.reply(ctx, chatID, "Give me a number of minutes, e.g. `/remind 30`.", nil)
		return
	}
	if err := b.settings.SetReminderMinutes(ctx, b.userID, minutes); err != nil {
		slog.Error("failed to set reminder minutes", "error", err)
		b.metrics.ExternalError("notion")
		b.reply(ctx, chatID, "Couldn't save the setting: "+err.Error(), nil)
		return
	}
	if minutes == 0 {
		b.reply(ctx, chatID, "🔕 Reminders disabled.", nil)
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("🔔 Reminders set to %d minutes before events.", minutes), nil)
}

func (b *Bot) setTaskHidden(ctx context.Context, chatID int64, taskID string, hide bool) {
	if taskID == "" {
		b.reply(ctx, chatID, "Give me a task id, e.g. `/hide abc123`.", nil)
		return
	}

	var err error
	if hide {
		err = b.settings.AddHiddenTask(ctx, b.userID, taskID)
	} else {
		err = b.settings.RemoveHiddenTask(ctx, b.userID, taskID)
	}
	if err != nil {
		slog.Error("failed to update hidden tasks", "error", err)
		b.metrics.ExternalError("notion")
		b.reply(ctx, chatID, "Couldn't update the setting: "+err.Error(), nil)
		return
	}

	if hide {
		b.reply(ctx, chatID, "🙈 Task hidden from briefings.", nil)
	} else {
		b.reply(ctx, chatID, "👀 Task back in briefings.", nil)
	}
}

func (b *Bot) exportNotes(ctx context.Context, chatID int64) {
	b.tg.SendChatAction(ctx, chatID, "upload_document")

	notes, err := b.notes.Latest(ctx, 100)
	if err != nil {
		slog.Error("export fetch failed", "error", err)
		b.metrics.ExternalError("notion")
		b.reply(ctx, chatID, "Couldn't load your notes: "+err.Error(), nil)
		return
	}
	if len(notes) == 0 {
		b.reply(ctx, chatID, "Nothing to export yet.", nil)
		return
	}

	workbook, err := export.NotesWorkbook(notes)
	if err != nil {
		slog.Error("export rendering failed", "error", err)
		b.reply(ctx, chatID, "Couldn't build the export: "+err.Error(), nil)
		return
	}

	now := time.Now().In(b.cfg.Location())
	caption := fmt.Sprintf("%d notes as of %s", len(notes), now.Format("2 Jan 2006"))
	if err := b.tg.SendDocument(ctx, chatID, workbook, export.Filename(now), caption); err != nil {
		slog.Error("export upload failed", "error", err)
		b.metrics.ExternalError("telegram")
		b.reply(ctx, chatID, "Couldn't send the export: "+err.Error(), nil)
	}
}

// reindexNotes rebuilds the vector index from the latest notes.
func (b *Bot) reindexNotes(ctx context.Context, chatID int64) {
	if b.embedder == nil || b.index == nil {
		b.reply(ctx, chatID, "Semantic search is not configured.", nil)
		return
	}

	statusID := b.reply(ctx, chatID, "🧭 Reindexing…", nil)
	notes, err := b.notes.Latest(ctx, 100)
	if err != nil {
		slog.Error("reindex fetch failed", "error", err)
		b.metrics.ExternalError("notion")
		b.edit(ctx, chatID, statusID, "Couldn't load your notes: "+err.Error(), nil)
		return
	}

	indexed := 0
	for _, n := range notes {
		body, err := b.notes.Content(ctx, n.ID)
		if err != nil {
			body = n.Content
		}
		vec, err := b.embedder.Embed(ctx, n.Title+"\n"+body)
		if err != nil {
			slog.Warn("embedding failed during reindex", "note_id", n.ID, "error", err)
			b.metrics.ExternalError("vector")
			continue
		}
		if err := b.index.Upsert(ctx, n.ID, vec); err != nil {
			slog.Warn("upsert failed during reindex", "note_id", n.ID, "error", err)
			b.metrics.ExternalError("vector")
			continue
		}
		indexed++
	}
	b.edit(ctx, chatID, statusID, fmt.Sprintf("🧭 Indexed %d of %d notes.", indexed, len(notes)), nil)
}
