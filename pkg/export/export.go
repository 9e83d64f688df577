// Package export renders tabular datasets as CSV or PDF documents.
package export

import (
	"fmt"
	"strings"
)

// Format names a supported export encoding.
type Format string

// Supported formats.
const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// Dataset defines tabular export content.
type Dataset struct {
	Title   string
	Summary []string
	Headers []string
	Rows    []map[string]string
}

// Document is a rendered export ready to stream to a client.
type Document struct {
	Format      Format
	ContentType string
	Filename    string
	Body        []byte
}

// ParseFormat normalises a user supplied format; empty selects CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// Render encodes data in the requested format; basename has no extension.
func Render(format Format, basename string, data Dataset) (*Document, error) {
	var (
		body        []byte
		err         error
		contentType string
	)
	switch format {
	case FormatCSV:
		body, err = NewCSVExporter().Render(data)
		contentType = "text/csv"
	case FormatPDF:
		body, err = NewPDFExporter().Render(data, data.Title)
		contentType = "application/pdf"
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return &Document{
		Format:      format,
		ContentType: contentType,
		Filename:    fmt.Sprintf("%s.%s", basename, format),
		Body:        body,
	}, nil
}
