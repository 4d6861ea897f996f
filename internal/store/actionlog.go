package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"memobot/internal/models"
	"memobot/internal/notion"
)

// Log database property names. Action log entries, conversational state and
// the settings page share one database and are distinguished only by which
// properties are populated.
const (
	propUserID     = "UserID"
	propState      = "State"
	propPageID     = "PageID"
	propEventID    = "EventID"
	propCalendarID = "CalendarID"
	propPending    = "Pending"
)

// ActionLog is an append-only record of reversible side effects, consumed
// newest-first by undo. It lives in the shared log database.
type ActionLog struct {
	client     *notion.Client
	databaseID string
}

// NewActionLog creates an action log over the given database.
func NewActionLog(client *notion.Client, databaseID string) *ActionLog {
	return &ActionLog{client: client, databaseID: databaseID}
}

// Record appends one log entry for a single side effect. Call it once per
// independent effect: a note creation and each calendar event get their own
// entries. Logging failures are non-fatal — the side effect stands, it just
// becomes non-undoable — so Record never returns an error.
func (l *ActionLog) Record(ctx context.Context, action models.RecordedAction) {
	if action.Empty() {
		return
	}

	properties := map[string]interface{}{
		propTitle: notion.TitleProperty(fmt.Sprintf("Action at %s", time.Now().UTC().Format(time.RFC3339))),
	}
	if action.NoteID != "" {
		properties[propPageID] = notion.RichTextProperty(action.NoteID)
	}
	if action.EventID != "" {
		properties[propEventID] = notion.RichTextProperty(action.EventID)
		properties[propCalendarID] = notion.RichTextProperty(action.CalendarID)
	}

	if _, err := l.client.CreatePage(ctx, l.databaseID, properties, nil, ""); err != nil {
		slog.Error("action log write failed, effect is not undoable",
			"note_id", action.NoteID, "event_id", action.EventID, "error", err)
	}
}

// PopLatest returns and removes the single most recent log entry, or nil
// when the log is empty. Repeated calls walk backwards through history one
// side effect at a time; a multi-effect user action is reversed one /undo
// per effect.
//
// The query path is eventually consistent, so an entry recorded immediately
// before the pop can in principle be missed; in practice the user taps undo
// well after the write has settled.
func (l *ActionLog) PopLatest(ctx context.Context) (*models.RecordedAction, error) {
	// State entries and the settings page share this database; select only
	// pages that carry undo ids and no state tag.
	filter := map[string]interface{}{
		"and": []map[string]interface{}{
			{"property": propState, "select": map[string]interface{}{"is_empty": true}},
			{"or": []map[string]interface{}{
				{"property": propPageID, "rich_text": map[string]interface{}{"is_not_empty": true}},
				{"property": propEventID, "rich_text": map[string]interface{}{"is_not_empty": true}},
			}},
		},
	}

	pages, err := l.client.QueryDatabase(ctx, l.databaseID, filter, notion.SortNewestFirst(), 1)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, nil
	}

	entry := pages[0]
	action := &models.RecordedAction{
		NoteID:     entry.RichText(propPageID),
		EventID:    entry.RichText(propEventID),
		CalendarID: entry.RichText(propCalendarID),
	}

	if err := l.client.ArchivePage(ctx, entry.ID()); err != nil {
		return nil, fmt.Errorf("failed to consume log entry: %w", err)
	}
	return action, nil
}
