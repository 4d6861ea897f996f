package models

import (
	"testing"
	"time"
)

func TestTaskDueDateBuckets(t *testing.T) {
	// Late evening, so hour arithmetic alone would misclassify tomorrow.
	now := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)

	due := func(ts time.Time) Task { return Task{DueDate: &ts} }

	yesterday := due(time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC))
	if !yesterday.Overdue(now) || yesterday.DueToday(now) {
		t.Error("yesterday should be overdue")
	}

	earlierToday := due(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	if earlierToday.Overdue(now) || !earlierToday.DueToday(now) {
		t.Error("earlier today is due today, not overdue")
	}

	tomorrowMorning := due(time.Date(2026, 3, 11, 1, 0, 0, 0, time.UTC))
	if tomorrowMorning.Overdue(now) || tomorrowMorning.DueToday(now) {
		t.Error("tomorrow is neither overdue nor due today")
	}

	undated := Task{}
	if undated.Overdue(now) || undated.DueToday(now) {
		t.Error("undated task should never be flagged")
	}
}

func TestRecordedActionEmpty(t *testing.T) {
	if !(RecordedAction{}).Empty() {
		t.Error("zero action should be empty")
	}
	if (RecordedAction{NoteID: "n"}).Empty() {
		t.Error("note action should not be empty")
	}
	if (RecordedAction{EventID: "e", CalendarID: "c"}).Empty() {
		t.Error("event action should not be empty")
	}
	if !(RecordedAction{CalendarID: "c"}).Empty() {
		t.Error("a calendar id alone is not reversible")
	}
}
