package pgfn

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"dividapgfn/internal/record"
)

const maxLineBytes = 1 << 20

// LineError locates a parse failure inside a source file.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *LineError) Unwrap() error { return e.Err }

// Reader yields the records of one decoded source file. The first line is the
// header and is never parsed.
type Reader struct {
	sc     *bufio.Scanner
	cat    record.SourceCategory
	line   int
	header bool
	err    error
}

// NewReader wraps r, which must already be decoded to UTF-8.
func NewReader(r io.Reader, c record.SourceCategory) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{sc: sc, cat: c}
}

// Next returns the next record, io.EOF at the end of input, or a *LineError.
// After an error every further call returns the same error.
func (r *Reader) Next() (record.DebtRecord, error) {
	if r.err != nil {
		return record.DebtRecord{}, r.err
	}
	if !r.header {
		r.header = true
		if !r.scan() {
			return record.DebtRecord{}, r.err
		}
	}
	if !r.scan() {
		return record.DebtRecord{}, r.err
	}
	rec, err := Parse(strings.TrimSuffix(r.sc.Text(), "\r"), r.cat)
	if err != nil {
		r.err = &LineError{Line: r.line, Err: err}
		return record.DebtRecord{}, r.err
	}
	return rec, nil
}

// Line is the 1-based number of the last line read, header included.
func (r *Reader) Line() int { return r.line }

func (r *Reader) scan() bool {
	if r.sc.Scan() {
		r.line++
		return true
	}
	if err := r.sc.Err(); err != nil {
		r.err = &LineError{Line: r.line + 1, Err: err}
	} else {
		r.err = io.EOF
	}
	return false
}
