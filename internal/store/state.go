package store

import (
	"context"
	"fmt"

	"memobot/internal/models"
	"memobot/internal/notion"
)

// StateStore holds the per-user conversational state: a single pending
// "what am I waiting for from this user" slot with read-once semantics.
//
// Set does not clear earlier entries. If two Sets happen before a Get, both
// entries exist; Get always takes the newest and consumes it, so the older
// one stays latent in the database, unreachable but present. Accepted for a
// single-user bot; a multi-user deployment would want compare-and-delete
// semantics instead (see DESIGN.md).
type StateStore struct {
	client     *notion.Client
	databaseID string
}

// NewStateStore creates a conversational state store over the log database.
func NewStateStore(client *notion.Client, databaseID string) *StateStore {
	return &StateStore{client: client, databaseID: databaseID}
}

// Set records that the next message from the user should be interpreted
// under the given tag. noteID is the target note; pendingText carries the
// unconfirmed text for pending_edit.
func (s *StateStore) Set(ctx context.Context, userID string, tag models.StateTag, noteID, pendingText string) error {
	properties := map[string]interface{}{
		propTitle:  notion.TitleProperty(fmt.Sprintf("State for %s: %s", userID, tag)),
		propUserID: notion.RichTextProperty(userID),
		propState:  notion.SelectProperty(string(tag)),
	}
	if noteID != "" {
		properties[propPageID] = notion.RichTextProperty(noteID)
	}
	if pendingText != "" {
		properties[propPending] = notion.RichTextProperty(pendingText)
	}

	_, err := s.client.CreatePage(ctx, s.databaseID, properties, nil, "")
	return err
}

// Get returns the user's pending state and consumes it, or nil when there
// is none. Reading is destructive by design: it is what prevents the same
// reply from being processed twice.
func (s *StateStore) Get(ctx context.Context, userID string) (*models.ConversationState, error) {
	filter := map[string]interface{}{
		"and": []map[string]interface{}{
			{"property": propUserID, "rich_text": map[string]interface{}{"equals": userID}},
			{"property": propState, "select": map[string]interface{}{"is_not_empty": true}},
		},
	}

	pages, err := s.client.QueryDatabase(ctx, s.databaseID, filter, notion.SortNewestFirst(), 1)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, nil
	}

	page := pages[0]
	state := &models.ConversationState{
		UserID:      userID,
		Tag:         models.StateTag(page.Select(propState)),
		NoteID:      page.RichText(propPageID),
		PendingText: page.RichText(propPending),
	}

	if err := s.client.ArchivePage(ctx, page.ID()); err != nil {
		return nil, fmt.Errorf("failed to consume state entry: %w", err)
	}
	return state, nil
}

// Clear drops any pending state for the user. It is just a Get whose
// result is discarded; abandoned states that are never the newest entry
// stay latent (harmless, see type comment).
func (s *StateStore) Clear(ctx context.Context, userID string) {
	_, _ = s.Get(ctx, userID)
}
