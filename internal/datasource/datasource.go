// Package datasource defines where raw extract bytes come from. The pipeline
// only reads local files (see package file), but decoding and hashing work
// over any Source.
package datasource

import (
	"context"
	"io"
)

// Source opens a raw byte stream. Callers close it.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
