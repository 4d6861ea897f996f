package models

// RecordedAction is one undo-able side effect: a created note, a created
// calendar event, or both. CalendarID travels with EventID because event
// deletion needs both.
type RecordedAction struct {
	NoteID     string
	EventID    string
	CalendarID string
}

// Empty reports whether the action carries nothing reversible.
func (a RecordedAction) Empty() bool {
	return a.NoteID == "" && a.EventID == ""
}
