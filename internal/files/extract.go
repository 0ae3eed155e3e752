package files

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported attachment format")
	ErrNoText            = errors.New("attachment has no extractable text")
)

// Format is the extraction path chosen for a file.
type Format string

const (
	FormatText    Format = "text"
	FormatCSV     Format = "csv"
	FormatTSV     Format = "tsv"
	FormatPDF     Format = "pdf"
	FormatXLSX    Format = "xlsx"
	FormatUnknown Format = ""
)

const xlsxMime = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var textMimes = []string{
	"application/json",
	"application/xml",
	"application/yaml",
	"application/x-yaml",
	"application/markdown",
}

var textExts = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".json": true, ".xml": true,
	".yaml": true, ".yml": true, ".html": true, ".htm": true,
}

// DetectFormat picks the extraction path from the declared MIME type, then
// the file extension, then the content itself.
func DetectFormat(f File) Format {
	if mt, _, err := mime.ParseMediaType(f.MimeType); err == nil {
		if format := formatForMime(mt); format != FormatUnknown {
			return format
		}
	}
	switch ext := strings.ToLower(filepath.Ext(f.Name)); {
	case ext == ".pdf":
		return FormatPDF
	case ext == ".csv":
		return FormatCSV
	case ext == ".tsv":
		return FormatTSV
	case ext == ".xlsx" || ext == ".xlsm":
		return FormatXLSX
	case textExts[ext]:
		return FormatText
	}
	for m := mimetype.Detect(f.Content); m != nil; m = m.Parent() {
		if format := formatForMime(m.String()); format != FormatUnknown {
			return format
		}
	}
	return FormatUnknown
}

func formatForMime(value string) Format {
	mt, _, err := mime.ParseMediaType(value)
	if err != nil {
		return FormatUnknown
	}
	switch {
	case mt == "application/pdf":
		return FormatPDF
	case mt == "text/csv":
		return FormatCSV
	case mt == "text/tab-separated-values":
		return FormatTSV
	case mt == xlsxMime:
		return FormatXLSX
	case strings.HasPrefix(mt, "text/"):
		return FormatText
	}
	for _, t := range textMimes {
		if mt == t {
			return FormatText
		}
	}
	return FormatUnknown
}

// ExtractText returns the readable text of f. Tables come back as one
// " | "-separated line per row; spreadsheets get a "Sheet: <name>" heading
// per sheet.
func ExtractText(f File) (string, error) {
	var (
		text string
		err  error
	)
	switch DetectFormat(f) {
	case FormatText:
		text = strings.ToValidUTF8(string(f.Content), "")
	case FormatCSV:
		text, err = extractDelimited(f.Content, ',')
	case FormatTSV:
		text, err = extractDelimited(f.Content, '\t')
	case FormatPDF:
		text, err = extractPDF(f.Content)
	case FormatXLSX:
		text, err = extractXLSX(f.Content)
	default:
		return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, f.Name, mimetype.Detect(f.Content).String())
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", f.Name, err)
	}
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrNoText, f.Name)
	}
	return text, nil
}

func extractDelimited(data []byte, comma rune) (string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\ufeff"))))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	// with a tab delimiter this would swallow empty fields
	r.TrimLeadingSpace = comma != '\t'
	records, err := r.ReadAll()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	writeRows(&b, records)
	return b.String(), nil
}

func extractXLSX(data []byte) (string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer book.Close()

	var b strings.Builder
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&b, "Sheet: %s\n", sheet)
		writeRows(&b, rows)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// extractPDF reads the plain text of every page. The reader panics on some
// malformed files; that is reported as an error.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := doc.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(out), ""), nil
}

func writeRows(b *strings.Builder, rows [][]string) {
	for _, row := range rows {
		cells := make([]string, 0, len(row))
		empty := true
		for _, c := range row {
			c = strings.TrimSpace(c)
			if c != "" {
				empty = false
			}
			cells = append(cells, c)
		}
		if empty {
			continue
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteByte('\n')
	}
}
