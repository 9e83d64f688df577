package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// CommentPrefix starts the preamble lines that carry the dataset title and
// summary. Readers configured with csv.Reader.Comment = '#' skip them.
const CommentPrefix = "# "

// CSVExporter renders a Dataset as a commented preamble followed by one
// header row and one record per row.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV bytes for the dataset. Missing row cells are written empty.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writePreamble(buf, data)

	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	record := make([]string, len(data.Headers))
	for n, row := range data.Rows {
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", n+1, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func writePreamble(buf *bytes.Buffer, data Dataset) {
	lines := make([]string, 0, len(data.Summary)+1)
	if title := strings.TrimSpace(data.Title); title != "" {
		lines = append(lines, title)
	}
	lines = append(lines, data.Summary...)
	for _, line := range lines {
		// Embedded newlines would end the comment early.
		line = strings.ReplaceAll(strings.ReplaceAll(line, "\r", " "), "\n", " ")
		buf.WriteString(CommentPrefix)
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
}
