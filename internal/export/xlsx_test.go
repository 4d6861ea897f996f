package export

import (
	"bytes"
	"testing"
	"time"

	"memobot/internal/models"

	"github.com/xuri/excelize/v2"
)

func TestNotesWorkbookRoundTrip(t *testing.T) {
	notes := []models.Note{
		{
			ID:        "n1",
			Title:     "Groceries",
			Category:  "Purchase",
			Content:   "milk, eggs",
			CreatedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
			URL:       "https://docs.example/n1",
		},
		{
			ID:       "n2",
			Title:    "Idea",
			Category: "Idea",
		},
	}

	data, err := NotesWorkbook(notes)
	if err != nil {
		t.Fatalf("NotesWorkbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("workbook does not reopen: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Notes")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[0][1] != "Title" {
		t.Errorf("header row wrong: %v", rows[0])
	}
	if rows[1][1] != "Groceries" || rows[1][2] != "Purchase" {
		t.Errorf("first note row wrong: %v", rows[1])
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	if got := Filename(now); got != "notes-2026-02-01.xlsx" {
		t.Fatalf("got %q", got)
	}
}
