package store

import (
	"context"
	"encoding/json"
	"fmt"

	"memobot/internal/models"
	"memobot/internal/notion"

	cache "github.com/patrickmn/go-cache"
)

// SettingsStore keeps one persistent settings page per user in the log
// database, holding a JSON blob inside a single code block.
//
// The page is located by an exact-title query, which is eventually
// consistent; once found, the id is cached and every subsequent read uses
// the strongly consistent get-by-id path. That is the whole reason settings
// live on a dedicated page rather than in log entries: reads here must be
// read-after-write reliable.
//
// Mutations are read-modify-write of the full blob (the store has no
// partial-update primitive for nested JSON), so two near-simultaneous
// writes race and the last one wins. Acceptable for a single-user bot.
type SettingsStore struct {
	client     *notion.Client
	databaseID string
	// Page ids never change and pages are never renamed, so entries
	// never expire.
	pageIDs *cache.Cache
}

// NewSettingsStore creates a settings store over the log database.
func NewSettingsStore(client *notion.Client, databaseID string) *SettingsStore {
	return &SettingsStore{
		client:     client,
		databaseID: databaseID,
		pageIDs:    cache.New(cache.NoExpiration, 0),
	}
}

func settingsTitle(userID string) string {
	return "user-settings:" + userID
}

// findPageID resolves the settings page id for a user, "" when the page
// does not exist yet. The title query is eventually consistent, so the id
// is cached on first hit.
func (s *SettingsStore) findPageID(ctx context.Context, userID string) (string, error) {
	if cached, found := s.pageIDs.Get(userID); found {
		return cached.(string), nil
	}

	filter := map[string]interface{}{
		"property": propTitle,
		"title":    map[string]interface{}{"equals": settingsTitle(userID)},
	}
	pages, err := s.client.QueryDatabase(ctx, s.databaseID, filter, nil, 1)
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return "", nil
	}

	id := pages[0].ID()
	s.pageIDs.Set(userID, id, cache.NoExpiration)
	return id, nil
}

// read resolves the page, fetches its blocks through the strong path and
// parses the settings blob. Returns empty ids and defaults when the page
// or the blob block is absent.
func (s *SettingsStore) read(ctx context.Context, userID string) (pageID, blockID string, settings models.UserSettings, err error) {
	settings = models.DefaultSettings()

	pageID, err = s.findPageID(ctx, userID)
	if err != nil || pageID == "" {
		return pageID, "", settings, err
	}

	blocks, err := s.client.GetBlockChildren(ctx, pageID)
	if err != nil {
		return pageID, "", settings, err
	}

	for _, block := range blocks {
		if block.Type() != "code" {
			continue
		}
		blockID = block.ID()
		// Decode over the defaults: absent fields keep their default,
		// an explicit zero (reminders disabled) survives.
		if jsonErr := json.Unmarshal([]byte(block.PlainText()), &settings); jsonErr != nil {
			return pageID, blockID, models.DefaultSettings(), fmt.Errorf("corrupt settings blob: %w", jsonErr)
		}
		break
	}
	return pageID, blockID, settings, nil
}

// Get returns the user's settings, defaults when no settings page exists.
func (s *SettingsStore) Get(ctx context.Context, userID string) (models.UserSettings, error) {
	_, _, settings, err := s.read(ctx, userID)
	return settings, err
}

// Write persists the full settings blob: overwrite the existing block,
// else append a block to the existing page, else create the page from
// scratch with the blob pre-populated.
func (s *SettingsStore) Write(ctx context.Context, userID string, settings models.UserSettings) error {
	blob, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	pageID, blockID, _, err := s.read(ctx, userID)
	// A failed read must not fall through to append or create: that would
	// stack a second blob block on the page (reads only ever see the first
	// one) or mint a duplicate page. Overwriting a known block is the one
	// move that stays safe, and doubles as the repair path for a corrupt
	// blob.
	if err != nil && blockID == "" {
		return err
	}

	switch {
	case blockID != "":
		return s.client.UpdateBlock(ctx, blockID, map[string]interface{}{
			"code": map[string]interface{}{
				"language": "json",
				"rich_text": []map[string]interface{}{
					{"type": "text", "text": map[string]interface{}{"content": string(blob)}},
				},
			},
		})
	case pageID != "":
		return s.client.AppendBlockChildren(ctx, pageID, []notion.Block{
			notion.CodeBlock(string(blob), "json"),
		})
	default:
		properties := map[string]interface{}{
			propTitle: notion.TitleProperty(settingsTitle(userID)),
		}
		id, err := s.client.CreatePage(ctx, s.databaseID, properties,
			[]notion.Block{notion.CodeBlock(string(blob), "json")}, "⚙️")
		if err != nil {
			return err
		}
		s.pageIDs.Set(userID, id, cache.NoExpiration)
		return nil
	}
}

// update runs one read-modify-write cycle.
func (s *SettingsStore) update(ctx context.Context, userID string, mutate func(*models.UserSettings)) error {
	_, _, settings, err := s.read(ctx, userID)
	if err != nil {
		return err
	}
	mutate(&settings)
	return s.Write(ctx, userID, settings)
}

// ReminderMinutes returns the reminder lead time (0 means disabled).
func (s *SettingsStore) ReminderMinutes(ctx context.Context, userID string) (int, error) {
	settings, err := s.Get(ctx, userID)
	return settings.ReminderMinutes, err
}

// SetReminderMinutes sets the reminder lead time.
func (s *SettingsStore) SetReminderMinutes(ctx context.Context, userID string, minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("reminder minutes must be >= 0")
	}
	return s.update(ctx, userID, func(u *models.UserSettings) {
		u.ReminderMinutes = minutes
	})
}

// HiddenTasks returns the hidden task-id list.
func (s *SettingsStore) HiddenTasks(ctx context.Context, userID string) ([]string, error) {
	settings, err := s.Get(ctx, userID)
	return settings.HiddenTasks, err
}

// AddHiddenTask hides a task id; already-hidden ids are left unchanged.
func (s *SettingsStore) AddHiddenTask(ctx context.Context, userID, taskID string) error {
	return s.update(ctx, userID, func(u *models.UserSettings) {
		if !u.IsHidden(taskID) {
			u.HiddenTasks = append(u.HiddenTasks, taskID)
		}
	})
}

// RemoveHiddenTask unhides a task id.
func (s *SettingsStore) RemoveHiddenTask(ctx context.Context, userID, taskID string) error {
	return s.update(ctx, userID, func(u *models.UserSettings) {
		filtered := u.HiddenTasks[:0]
		for _, id := range u.HiddenTasks {
			if id != taskID {
				filtered = append(filtered, id)
			}
		}
		u.HiddenTasks = filtered
	})
}

// AddXP adds XP and stores the recomputed level index. Returns the updated
// settings.
func (s *SettingsStore) AddXP(ctx context.Context, userID string, xp, level int) (models.UserSettings, error) {
	var result models.UserSettings
	err := s.update(ctx, userID, func(u *models.UserSettings) {
		u.XP += xp
		u.Level = level
		result = *u
	})
	return result, err
}
