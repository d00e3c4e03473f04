package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"dividapgfn/internal/datasource/file"
)

// RowWriter receives the header and then the rows of one projection.
type RowWriter interface {
	WriteHeader(cols []Column) error
	WriteRow(vals []Value) error
	Close() error
}

// CSVWriter writes ';'-style delimited text in file.Charset. Text fields are
// always quoted with embedded quotes doubled; numbers are quoted only when
// the formatted value contains the separator.
type CSVWriter struct {
	f   *os.File
	enc io.WriteCloser
	w   *bufio.Writer
	sep string
	nf  NumberFormat
}

// NewCSVWriter creates path. Runes outside file.Charset are written as the
// charset's replacement byte.
func NewCSVWriter(path string, sep rune, nf NumberFormat) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("export: create %s: %w", path, err)
	}
	enc := transform.NewWriter(f, encoding.ReplaceUnsupported(file.Charset.NewEncoder()))
	return &CSVWriter{f: f, enc: enc, w: bufio.NewWriterSize(enc, 64*1024), sep: string(sep), nf: nf}, nil
}

func (c *CSVWriter) WriteHeader(cols []Column) error {
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	_, err := c.w.WriteString(strings.Join(names, c.sep) + "\n")
	return err
}

func (c *CSVWriter) WriteRow(vals []Value) error {
	for i, v := range vals {
		if i > 0 {
			if _, err := c.w.WriteString(c.sep); err != nil {
				return err
			}
		}
		if _, err := c.w.WriteString(c.field(v)); err != nil {
			return err
		}
	}
	return c.w.WriteByte('\n')
}

func (c *CSVWriter) field(v Value) string {
	if v.Kind == Text {
		return `"` + strings.ReplaceAll(v.Text, `"`, `""`) + `"`
	}
	if !v.Valid {
		return ""
	}
	s := c.nf.Format(v.Num)
	if strings.Contains(s, c.sep) {
		return `"` + s + `"`
	}
	return s
}

// Close flushes the buffer and the encoder and closes the file.
func (c *CSVWriter) Close() error {
	err := c.w.Flush()
	if cerr := c.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := c.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// XLSXWriter writes one sheet through the excelize stream writer. Numbers
// become numeric cells when the cell text equals the decimal, otherwise
// exact text cells.
type XLSXWriter struct {
	path string
	f    *excelize.File
	sw   *excelize.StreamWriter
	row  int
}

// NewXLSXWriter prepares a workbook with one sheet named sheet.
func NewXLSXWriter(path, sheet string) (*XLSXWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("export: sheet %s: %w", sheet, err)
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("export: stream writer %s: %w", path, err)
	}
	return &XLSXWriter{path: path, f: f, sw: sw, row: 1}, nil
}

func (x *XLSXWriter) WriteHeader(cols []Column) error {
	cells := make([]any, len(cols))
	for i, c := range cols {
		cells[i] = c.Name
	}
	return x.next(cells)
}

func (x *XLSXWriter) WriteRow(vals []Value) error {
	cells := make([]any, len(vals))
	for i, v := range vals {
		switch {
		case !v.Valid:
			cells[i] = nil
		case v.Kind == Text:
			cells[i] = v.Text
		default:
			cells[i] = numberCell(v.Num)
		}
	}
	return x.next(cells)
}

// numberCell returns d as a float64 when excelize writes it back as the
// same literal, which holds up to 15 significant digits. Longer values stay
// text.
func numberCell(d decimal.Decimal) any {
	f := d.InexactFloat64()
	if strconv.FormatFloat(f, 'f', -1, 64) == d.String() {
		return f
	}
	return d.String()
}

func (x *XLSXWriter) next(cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	if err := x.sw.SetRow(cell, cells); err != nil {
		return fmt.Errorf("export: %s row %d: %w", x.path, x.row, err)
	}
	x.row++
	return nil
}

// Close flushes the stream and saves the workbook.
func (x *XLSXWriter) Close() error {
	err := x.sw.Flush()
	if err == nil {
		err = x.f.SaveAs(x.path)
	}
	if cerr := x.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("export: save %s: %w", x.path, err)
	}
	return nil
}

// multiWriter fans rows out to several writers.
type multiWriter []RowWriter

func (m multiWriter) WriteHeader(cols []Column) error {
	for _, w := range m {
		if err := w.WriteHeader(cols); err != nil {
			return err
		}
	}
	return nil
}

func (m multiWriter) WriteRow(vals []Value) error {
	for _, w := range m {
		if err := w.WriteRow(vals); err != nil {
			return err
		}
	}
	return nil
}

func (m multiWriter) Close() error {
	var first error
	for _, w := range m {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
