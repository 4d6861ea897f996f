package clickup

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"memobot/internal/models"
)

// priorityRank orders tasks most urgent first; unknown priorities sink.
var priorityRank = map[string]int{
	"urgent": 0,
	"high":   1,
	"normal": 2,
	"low":    3,
}

func rank(priority string) int {
	if r, ok := priorityRank[strings.ToLower(priority)]; ok {
		return r
	}
	return 4
}

var priorityMarker = map[string]string{
	"urgent": "🔴",
	"high":   "🟠",
	"normal": "🔵",
	"low":    "⚪",
}

// Marker returns the emoji for a task priority.
func Marker(priority string) string {
	if m, ok := priorityMarker[strings.ToLower(priority)]; ok {
		return m
	}
	return "▫️"
}

// FilterHidden drops tasks the user has hidden from briefings.
func FilterHidden(tasks []models.Task, hidden []string) []models.Task {
	if len(hidden) == 0 {
		return tasks
	}
	hiddenSet := make(map[string]struct{}, len(hidden))
	for _, id := range hidden {
		hiddenSet[id] = struct{}{}
	}

	kept := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if _, ok := hiddenSet[t.ID]; !ok {
			kept = append(kept, t)
		}
	}
	return kept
}

// SortByPriority orders tasks urgent first, ties broken by due date
// (earlier first, undated last).
func SortByPriority(tasks []models.Task) {
	sort.SliceStable(tasks, func(a, b int) bool {
		if ra, rb := rank(tasks[a].Priority), rank(tasks[b].Priority); ra != rb {
			return ra < rb
		}
		da, db := tasks[a].DueDate, tasks[b].DueDate
		switch {
		case da == nil:
			return false
		case db == nil:
			return true
		default:
			return da.Before(*db)
		}
	})
}

// FormatDigest renders a task briefing as Markdown: overdue and due-today
// tasks get called out, the rest are listed by priority.
func FormatDigest(tasks []models.Task, now time.Time, limit int) string {
	if len(tasks) == 0 {
		return "No open tasks. Clean slate! 🎉"
	}

	SortByPriority(tasks)

	var overdue, today, rest []models.Task
	for _, t := range tasks {
		switch {
		case t.Overdue(now):
			overdue = append(overdue, t)
		case t.DueToday(now):
			today = append(today, t)
		default:
			rest = append(rest, t)
		}
	}

	var b strings.Builder
	writeSection := func(header string, section []models.Task) {
		if len(section) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(header + "\n")
		for _, t := range section {
			line := fmt.Sprintf("%s %s", Marker(t.Priority), t.Name)
			if t.DueDate != nil {
				line += fmt.Sprintf(" (due %s)", t.DueDate.Format("Mon 2 Jan"))
			}
			b.WriteString(line + "\n")
		}
	}

	writeSection("⚠️ **Overdue**", overdue)
	writeSection("📅 **Due today**", today)
	if limit > 0 && len(rest) > limit {
		writeSection(fmt.Sprintf("📋 **Up next** (top %d of %d)", limit, len(rest)), rest[:limit])
	} else {
		writeSection("📋 **Up next**", rest)
	}

	return strings.TrimRight(b.String(), "\n")
}
