package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXWriter streams rows into a single-sheet workbook. The workbook is
// written to the destination on Close.
type XLSXWriter struct {
	file    *excelize.File
	stream  *excelize.StreamWriter
	headers []string
	row     int
	dst     io.Writer
}

// NewXLSXWriter prepares a workbook with a bold header row on sheet.
func NewXLSXWriter(w io.Writer, sheet string, headers []string) (*XLSXWriter, error) {
	if len(headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	stream, err := f.NewStreamWriter(sheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open sheet stream: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	if err := stream.SetColWidth(1, len(headers), 16); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("column width: %w", err)
	}

	cells := make([]interface{}, len(headers))
	for i, header := range headers {
		cells[i] = excelize.Cell{StyleID: style, Value: header}
	}
	if err := stream.SetRow("A1", cells); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write xlsx headers: %w", err)
	}
	return &XLSXWriter{file: f, stream: stream, headers: headers, row: 1, dst: w}, nil
}

// WriteRow appends one record. values must follow the header order.
func (e *XLSXWriter) WriteRow(values []string) error {
	if len(values) != len(e.headers) {
		return fmt.Errorf("xlsx row has %d values, want %d", len(values), len(e.headers))
	}
	e.row++
	cell, err := excelize.CoordinatesToCellName(1, e.row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, value := range values {
		cells[i] = value
	}
	if err := e.stream.SetRow(cell, cells); err != nil {
		return fmt.Errorf("write xlsx row: %w", err)
	}
	return nil
}

// Close finishes the sheet and writes the workbook.
func (e *XLSXWriter) Close() error {
	defer e.file.Close()
	if err := e.stream.Flush(); err != nil {
		return fmt.Errorf("flush xlsx: %w", err)
	}
	if _, err := e.file.WriteTo(e.dst); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// Discard releases the workbook without writing it.
func (e *XLSXWriter) Discard() error {
	return e.file.Close()
}
