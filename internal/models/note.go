package models

import "time"

// Note is one user-authored memo as stored in the notes database.
type Note struct {
	ID        string
	Title     string
	Category  string
	Icon      string
	Content   string // plain-text mirror of the body
	CreatedAt time.Time
	URL       string
}

// NoteDraft is the AI formatter's output for an inbound message: a title,
// a category from the configured set, the formatted Markdown body and any
// calendar events detected in the text.
type NoteDraft struct {
	Title         string       `json:"main_title"`
	Category      string       `json:"category"`
	FormattedBody string       `json:"formatted_body"`
	Events        []EventDraft `json:"events"`
}

// EventDraft is a calendar event the AI extracted from a note.
type EventDraft struct {
	Title    string `json:"title"`
	StartISO string `json:"datetime_iso"`
}

// Valid reports whether the draft event carries enough to create a
// calendar entry.
func (e EventDraft) Valid() bool {
	return e.Title != "" && e.StartISO != ""
}
