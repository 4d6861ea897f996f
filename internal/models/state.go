package models

// StateTag names what the next message from the user should be interpreted as.
type StateTag string

const (
	StateAwaitingAddText StateTag = "awaiting_add_text"
	StateAwaitingRename  StateTag = "awaiting_rename"
	StateAwaitingSearch  StateTag = "awaiting_search"
	StatePendingEdit     StateTag = "pending_edit"
)

// ConversationState is a one-shot marker recording what kind of reply the
// bot expects next. Reading it consumes it.
type ConversationState struct {
	UserID      string
	Tag         StateTag
	NoteID      string
	PendingText string // only populated for pending_edit
}
