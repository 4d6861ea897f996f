package export

import (
	"fmt"
	"time"

	"memobot/internal/models"

	"github.com/xuri/excelize/v2"
)

// NotesWorkbook renders notes into an xlsx workbook for /export.
func NotesWorkbook(notes []models.Note) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Notes"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Created", "Title", "Category", "Content", "URL"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		f.SetRowStyle(sheet, 1, 1, headerStyle)
	}

	for row, note := range notes {
		values := []interface{}{
			note.CreatedAt.Format(time.RFC3339),
			note.Title,
			note.Category,
			note.Content,
			note.URL,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	f.SetColWidth(sheet, "A", "A", 22)
	f.SetColWidth(sheet, "B", "B", 40)
	f.SetColWidth(sheet, "D", "D", 60)
	f.SetColWidth(sheet, "E", "E", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename returns a dated export filename.
func Filename(now time.Time) string {
	return fmt.Sprintf("notes-%s.xlsx", now.Format("2006-01-02"))
}
