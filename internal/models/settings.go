package models

// DefaultReminderMinutes applies when the user has no settings page yet.
// Zero means reminders are disabled.
const DefaultReminderMinutes = 15

// UserSettings is the per-user settings blob stored inside one code block
// of the settings page. Mutations are full read-modify-write cycles: the
// backing store cannot patch nested JSON.
type UserSettings struct {
	ReminderMinutes int      `json:"reminder_minutes"`
	HiddenTasks     []string `json:"hidden_tasks,omitempty"`
	XP              int      `json:"xp"`
	Level           int      `json:"level"`
}

// DefaultSettings returns the settings applied for a user with no
// settings page.
func DefaultSettings() UserSettings {
	return UserSettings{
		ReminderMinutes: DefaultReminderMinutes,
		Level:           1,
	}
}

// IsHidden reports whether a task id is on the hidden list.
func (s UserSettings) IsHidden(taskID string) bool {
	for _, id := range s.HiddenTasks {
		if id == taskID {
			return true
		}
	}
	return false
}
