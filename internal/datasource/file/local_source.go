package file

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/encoding/charmap"

	"dividapgfn/internal/datasource"
)

// Charset is the single-byte encoding of every PGFN extract, candidate query
// and export file.
var Charset = charmap.ISO8859_1

// Local is a filesystem data source that opens files from the local disk.
type Local struct{ path string }

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound path.
func (l *Local) Path() string { return l.path }

// Open opens the configured path for reading. A canceled ctx short-circuits
// before touching the filesystem; filesystem errors keep os.ErrNotExist and
// friends reachable through errors.Is.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}

// Decoded is an open source file read as UTF-8 text. It hashes the raw bytes
// as they are consumed.
type Decoded struct {
	io.Reader
	raw  io.Closer
	hash *xxh3.Hasher
	n    int64
}

var _ datasource.Source = (*Local)(nil)

// OpenDecoded opens the path and decodes it from Charset.
func (l *Local) OpenDecoded(ctx context.Context) (*Decoded, error) {
	return Decode(ctx, l)
}

// Decode opens src and decodes it from Charset.
func Decode(ctx context.Context, src datasource.Source) (*Decoded, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	d := &Decoded{raw: rc, hash: xxh3.New()}
	tee := io.TeeReader(rc, countingWriter{d})
	d.Reader = Charset.NewDecoder().Reader(tee)
	return d, nil
}

// Sum64 is the xxh3 hash of the raw bytes read so far.
func (d *Decoded) Sum64() uint64 { return d.hash.Sum64() }

// Size is the number of raw bytes read so far.
func (d *Decoded) Size() int64 { return d.n }

// Close closes the underlying file.
func (d *Decoded) Close() error { return d.raw.Close() }

type countingWriter struct{ d *Decoded }

func (w countingWriter) Write(p []byte) (int, error) {
	w.d.n += int64(len(p))
	return w.d.hash.Write(p)
}

// ReadText reads a whole Charset-encoded file as a string.
func ReadText(ctx context.Context, path string) (string, error) {
	d, err := NewLocal(path).OpenDecoded(ctx)
	if err != nil {
		return "", err
	}
	defer d.Close()

	b, err := io.ReadAll(d)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}
