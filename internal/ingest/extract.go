package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"rsc.io/pdf"

	appLog "lockin/internal/log"
)

// ParseError describes a failed document extraction. Its message is
// multi-line and human readable; extraction is never retried.
type ParseError struct {
	Filename string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("could not read schedule from %q:\n%s", e.Filename, e.Reason)
	if e.Err != nil {
		msg += "\n" + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Extraction is the raw material handed to the schedule parser. Exactly
// one of Rows, Pages or Text is populated, mirroring the three input
// shapes: spreadsheet rows, page-oriented document text, or plain text.
type Extraction struct {
	Rows  [][]string
	Pages []string
	Text  string
}

// Extract pulls schedule-bearing content out of an uploaded file based on
// its extension. Corrupt or unsupported files yield a *ParseError.
func Extract(filename string, data []byte) (Extraction, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return extractPDF(filename, data)
	case ".csv":
		return extractCSV(filename, data)
	case ".txt", ".text", "":
		return Extraction{Text: string(data)}, nil
	default:
		return Extraction{}, &ParseError{
			Filename: filename,
			Reason:   "unsupported file type; upload a .pdf, .csv or .txt schedule",
		}
	}
}

// extractPDF concatenates the text of every page. rsc.io/pdf panics on
// some malformed documents, so the whole read is fenced with recover and
// surfaced as a ParseError.
func extractPDF(filename string, data []byte) (ext Extraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			appLog.Warn("pdf extraction panicked", nil, "file", filename, "panic", r)
			ext = Extraction{}
			err = &ParseError{
				Filename: filename,
				Reason:   "the PDF could not be decoded; it may be corrupt or image-only",
				Err:      fmt.Errorf("pdf reader: %v", r),
			}
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Extraction{}, &ParseError{
			Filename: filename,
			Reason:   "the PDF could not be opened",
			Err:      err,
		}
	}

	total := doc.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		p := doc.Page(i)
		if p.V.IsNull() {
			continue
		}
		content := p.Content()
		parts := make([]string, 0, len(content.Text))
		for _, text := range content.Text {
			if strings.TrimSpace(text.S) == "" {
				continue
			}
			parts = append(parts, text.S)
		}
		pages = append(pages, strings.Join(parts, " "))
	}

	appLog.Debug("pdf extracted", "file", filename, "pages", len(pages))
	return Extraction{Pages: pages}, nil
}

func extractCSV(filename string, data []byte) (Extraction, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return Extraction{}, &ParseError{
			Filename: filename,
			Reason:   "the spreadsheet could not be read as CSV",
			Err:      err,
		}
	}

	appLog.Debug("csv extracted", "file", filename, "rows", len(rows))
	return Extraction{Rows: rows}, nil
}
