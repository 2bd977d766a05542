package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVWriter streams rows as CSV. The header is written on the first row.
type CSVWriter struct {
	writer  *csv.Writer
	headers []string
	started bool
}

// NewCSVWriter builds a streaming CSV writer over w.
func NewCSVWriter(w io.Writer, headers []string) (*CSVWriter, error) {
	if len(headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	return &CSVWriter{writer: csv.NewWriter(w), headers: headers}, nil
}

// WriteRow appends one record. values must follow the header order.
func (e *CSVWriter) WriteRow(values []string) error {
	if len(values) != len(e.headers) {
		return fmt.Errorf("csv row has %d values, want %d", len(values), len(e.headers))
	}
	if err := e.WriteHeader(); err != nil {
		return err
	}
	if err := e.writer.Write(values); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

// WriteHeader writes the header line once. WriteRow calls it implicitly.
func (e *CSVWriter) WriteHeader() error {
	if e.started {
		return nil
	}
	e.started = true
	if err := e.writer.Write(e.headers); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}
	return nil
}

// Flush pushes buffered rows to the underlying writer.
func (e *CSVWriter) Flush() error {
	e.writer.Flush()
	if err := e.writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
