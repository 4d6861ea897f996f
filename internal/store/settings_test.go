package store

import (
	"context"
	"testing"

	"memobot/internal/models"
	"memobot/internal/notion"
)

func TestSettingsDefaultsWithoutPage(t *testing.T) {
	client, _ := newTestClient(t)
	settings := NewSettingsStore(client, "db-log")

	got, err := settings.Get(context.Background(), "42")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ReminderMinutes != models.DefaultReminderMinutes {
		t.Fatalf("expected default reminder %d, got %d", models.DefaultReminderMinutes, got.ReminderMinutes)
	}
	if got.XP != 0 || got.Level != 1 {
		t.Fatalf("expected fresh progress, got %+v", got)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	client, _ := newTestClient(t)
	settings := NewSettingsStore(client, "db-log")
	ctx := context.Background()

	want := models.UserSettings{
		ReminderMinutes: 30,
		HiddenTasks:     []string{"task-1"},
		XP:              120,
		Level:           2,
	}
	if err := settings.Write(ctx, "42", want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := settings.Get(ctx, "42")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ReminderMinutes != 30 || got.XP != 120 || got.Level != 2 {
		t.Fatalf("round trip lost data: %+v", got)
	}
	if len(got.HiddenTasks) != 1 || got.HiddenTasks[0] != "task-1" {
		t.Fatalf("hidden tasks lost: %+v", got.HiddenTasks)
	}
}

func TestSettingsSecondWriteUpdatesInPlace(t *testing.T) {
	client, fake := newTestClient(t)
	settings := NewSettingsStore(client, "db-log")
	ctx := context.Background()

	settings.Write(ctx, "42", models.UserSettings{ReminderMinutes: 10, Level: 1})
	settings.Write(ctx, "42", models.UserSettings{ReminderMinutes: 45, Level: 1})

	if len(fake.pages) != 1 {
		t.Fatalf("expected one settings page, got %d", len(fake.pages))
	}
	got, _ := settings.Get(ctx, "42")
	if got.ReminderMinutes != 45 {
		t.Fatalf("second write did not land: %+v", got)
	}
}

func TestSettingsWriteAbortsWhenBlockReadFails(t *testing.T) {
	client, fake := newTestClient(t)
	settings := NewSettingsStore(client, "db-log")
	ctx := context.Background()

	if err := settings.Write(ctx, "42", models.UserSettings{ReminderMinutes: 10, Level: 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var pageID string
	for id := range fake.pages {
		pageID = id
	}
	if got := len(fake.blocks[pageID]); got != 1 {
		t.Fatalf("setup expected one blob block, got %d", got)
	}

	// A transient block-fetch failure must surface, not fall through to
	// appending a second blob the reader would never see.
	fake.failBlockFetches = 1
	if err := settings.Write(ctx, "42", models.UserSettings{ReminderMinutes: 45, Level: 1}); err == nil {
		t.Fatal("expected the write to fail")
	}
	if got := len(fake.blocks[pageID]); got != 1 {
		t.Fatalf("failed write duplicated the blob block: %d blocks", got)
	}

	got, err := settings.Get(ctx, "42")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ReminderMinutes != 10 {
		t.Fatalf("settings changed despite the failed write: %+v", got)
	}
}

func TestSettingsWriteRepairsCorruptBlob(t *testing.T) {
	client, fake := newTestClient(t)
	settings := NewSettingsStore(client, "db-log")
	ctx := context.Background()

	if err := settings.Write(ctx, "42", models.UserSettings{ReminderMinutes: 10, Level: 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var pageID string
	for id := range fake.pages {
		pageID = id
	}
	blockID := fake.blocks[pageID][0].ID()
	corrupt := notion.CodeBlock("not json", "json")
	corrupt["id"] = blockID
	fake.blocks[pageID][0] = corrupt

	if _, err := settings.Get(ctx, "42"); err == nil {
		t.Fatal("expected Get to report the corrupt blob")
	}

	if err := settings.Write(ctx, "42", models.UserSettings{ReminderMinutes: 25, Level: 1}); err != nil {
		t.Fatalf("Write over corrupt blob: %v", err)
	}
	if got := len(fake.blocks[pageID]); got != 1 {
		t.Fatalf("repair duplicated the blob block: %d blocks", got)
	}
	got, err := settings.Get(ctx, "42")
	if err != nil {
		t.Fatalf("Get after repair: %v", err)
	}
	if got.ReminderMinutes != 25 {
		t.Fatalf("repair did not land: %+v", got)
	}
}

func TestSettingsTwoWritersShareOnePage(t *testing.T) {
	client, fake := newTestClient(t)
	first := NewSettingsStore(client, "db-log")
	second := NewSettingsStore(client, "db-log")
	ctx := context.Background()

	if _, err := first.AddXP(ctx, "42", 50, 1); err != nil {
		t.Fatalf("AddXP: %v", err)
	}
	// The second store starts with a cold page-id cache, as after a
	// restart. It must find the existing page by title instead of
	// creating a duplicate.
	if err := second.AddHiddenTask(ctx, "42", "task-9"); err != nil {
		t.Fatalf("AddHiddenTask: %v", err)
	}

	if len(fake.pages) != 1 {
		t.Fatalf("expected one settings page, got %d", len(fake.pages))
	}

	got, err := first.Get(ctx, "42")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.XP != 50 {
		t.Fatalf("first writer's XP lost: %+v", got)
	}
	if len(got.HiddenTasks) != 1 || got.HiddenTasks[0] != "task-9" {
		t.Fatalf("second writer's mutation lost: %+v", got)
	}
}

func TestSettingsZeroReminderSurvives(t *testing.T) {
	client, _ := newTestClient(t)
	settings := NewSettingsStore(client, "db-log")
	ctx := context.Background()

	if err := settings.SetReminderMinutes(ctx, "42", 0); err != nil {
		t.Fatalf("SetReminderMinutes: %v", err)
	}

	// An explicit zero means reminders are off; it must not decode back
	// into the default.
	minutes, err := settings.ReminderMinutes(ctx, "42")
	if err != nil {
		t.Fatalf("ReminderMinutes: %v", err)
	}
	if minutes != 0 {
		t.Fatalf("zero reminder was replaced by %d", minutes)
	}
}

func TestSettingsRejectNegativeReminder(t *testing.T) {
	client, _ := newTestClient(t)
	settings := NewSettingsStore(client, "db-log")

	if err := settings.SetReminderMinutes(context.Background(), "42", -5); err == nil {
		t.Fatal("expected an error for negative minutes")
	}
}

func TestHiddenTasksDeduplicate(t *testing.T) {
	client, _ := newTestClient(t)
	settings := NewSettingsStore(client, "db-log")
	ctx := context.Background()

	settings.AddHiddenTask(ctx, "42", "task-1")
	settings.AddHiddenTask(ctx, "42", "task-1")
	settings.AddHiddenTask(ctx, "42", "task-2")

	hidden, err := settings.HiddenTasks(ctx, "42")
	if err != nil {
		t.Fatalf("HiddenTasks: %v", err)
	}
	if len(hidden) != 2 {
		t.Fatalf("expected 2 hidden tasks, got %v", hidden)
	}

	settings.RemoveHiddenTask(ctx, "42", "task-1")
	hidden, _ = settings.HiddenTasks(ctx, "42")
	if len(hidden) != 1 || hidden[0] != "task-2" {
		t.Fatalf("removal failed: %v", hidden)
	}
}

func TestAddXPAccumulates(t *testing.T) {
	client, _ := newTestClient(t)
	settings := NewSettingsStore(client, "db-log")
	ctx := context.Background()

	if _, err := settings.AddXP(ctx, "42", 50, 1); err != nil {
		t.Fatalf("AddXP: %v", err)
	}
	updated, err := settings.AddXP(ctx, "42", 60, 2)
	if err != nil {
		t.Fatalf("AddXP: %v", err)
	}
	if updated.XP != 110 || updated.Level != 2 {
		t.Fatalf("expected 110 XP at level 2, got %+v", updated)
	}
}
