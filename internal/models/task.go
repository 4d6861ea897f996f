package models

import "time"

// Task is one assigned task from the tracker.
type Task struct {
	ID       string
	Name     string
	Status   string
	Priority string // "urgent", "high", "normal", "low" or "none"
	DueDate  *time.Time
	Tags     []string
	URL      string
}

// Overdue reports whether the task's due date has passed (date precision).
func (t Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && daysUntil(now, *t.DueDate) < 0
}

// DueToday reports whether the task is due on the current date.
func (t Task) DueToday(now time.Time) bool {
	return t.DueDate != nil && daysUntil(now, *t.DueDate) == 0
}

func daysUntil(now, due time.Time) int {
	ny, nm, nd := now.Date()
	dy, dm, dd := due.Date()
	nowDate := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	dueDate := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	return int(dueDate.Sub(nowDate).Hours() / 24)
}
