package scrape

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxPDFChars caps the extracted text so huge documents do not blow up the
// downstream formatting prompt.
const maxPDFChars = 12000

// PDFText extracts plain text from a PDF attachment.
func PDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var b strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
		if b.Len() > maxPDFChars {
			break
		}
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("PDF contains no extractable text")
	}
	if len(out) > maxPDFChars {
		out = out[:maxPDFChars] + "…"
	}
	return out, nil
}
