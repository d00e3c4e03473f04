package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"dividapgfn/internal/datasource/file"
	"dividapgfn/internal/parser/pgfn"
	"dividapgfn/internal/record"
	"dividapgfn/internal/storage/sqlite"
)

// rowBuffer is the number of parsed rows a file may hold before the writer
// reaches it.
const rowBuffer = 512

// errAborted marks a file whose parser stopped early. The cause is the
// error the parser returned to the group.
var errAborted = errors.New("ingest: parse aborted")

// pendingFile is one extract waiting to be written. When it is parsed ahead
// of the writer, entry and err are set before rows is closed.
type pendingFile struct {
	category record.SourceCategory
	path     string
	rows     chan []any
	entry    sqlite.FileEntry
	err      error
}

func newPending(c record.SourceCategory, path string) *pendingFile {
	return &pendingFile{category: c, path: path}
}

// parse decodes the file, hands every row to emit and fills f.entry.
func (f *pendingFile) parse(ctx context.Context, emit func([]any) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := file.NewLocal(f.path).OpenDecoded(ctx)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	defer src.Close()

	r := pgfn.NewReader(src, f.category)
	var n int64
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("ingest: %s: %w", f.path, err)
		}
		if err := emit(rec.Args()); err != nil {
			return fmt.Errorf("ingest: %s line %d: %w", f.path, r.Line(), err)
		}
		n++
	}
	f.entry = sqlite.FileEntry{
		Category: f.category.String(),
		Name:     filepath.Base(f.path),
		Lines:    n,
		Bytes:    src.Size(),
		Hash:     fmt.Sprintf("%016x", src.Sum64()),
	}
	return nil
}

// prefetch parses files with at most workers goroutines, each file into its
// own channel. Files start in order, so a writer draining them in order
// never waits on a file that has no goroutine. wait reports the first parse
// error.
func prefetch(ctx context.Context, files []*pendingFile, workers int) (wait func() error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, f := range files {
		f.rows = make(chan []any, rowBuffer)
	}
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for _, f := range files {
			f := f
			g.Go(func() error {
				defer close(f.rows)
				f.err = f.parse(gctx, func(row []any) error {
					select {
					case f.rows <- row:
						return nil
					case <-gctx.Done():
						return gctx.Err()
					}
				})
				return f.err
			})
		}
	}()
	return func() error {
		<-dispatched
		return g.Wait()
	}
}
