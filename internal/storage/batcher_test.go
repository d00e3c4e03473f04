package storage

import (
	"context"
	"errors"
	"testing"
)

type copyRecorder struct {
	calls [][]int // batch sizes with the first value of each row
	fail  int     // 1-based call that fails; 0 never
}

func (c *copyRecorder) copy(_ context.Context, _ []string, rows [][]any) (int64, error) {
	ids := make([]int, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r[0].(int))
	}
	c.calls = append(c.calls, ids)
	if c.fail == len(c.calls) {
		return 0, errors.New("copy failed")
	}
	return int64(len(rows)), nil
}

func addN(tb testing.TB, b *Batcher, n int) {
	tb.Helper()
	for i := 0; i < n; i++ {
		if err := b.Add(context.Background(), []any{i}); err != nil {
			tb.Fatalf("Add(%d): %v", i, err)
		}
	}
}

// TestBatcher_FlushBoundary checks that N+1 rows with batch size N produce
// exactly two flushes: one at N and one on Close.
func TestBatcher_FlushBoundary(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 2, 3, 1000} {
		rec := &copyRecorder{}
		b, err := NewBatcher("test", []string{"id"}, n, rec.copy)
		if err != nil {
			t.Fatalf("NewBatcher: %v", err)
		}
		addN(t, b, n+1)
		if len(rec.calls) != 1 {
			t.Fatalf("n=%d: flushes before close: got %d want 1", n, len(rec.calls))
		}
		if err := b.Close(context.Background()); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if len(rec.calls) != 2 || b.Flushes() != 2 {
			t.Fatalf("n=%d: flushes: got %d (%d) want 2", n, len(rec.calls), b.Flushes())
		}
		if len(rec.calls[0]) != n || len(rec.calls[1]) != 1 {
			t.Fatalf("n=%d: batch sizes %d,%d", n, len(rec.calls[0]), len(rec.calls[1]))
		}
		if b.Total() != int64(n+1) {
			t.Fatalf("n=%d: total %d want %d", n, b.Total(), n+1)
		}
	}
}

func TestBatcher_ExactMultipleHasNoEmptyFlush(t *testing.T) {
	t.Parallel()

	rec := &copyRecorder{}
	b, _ := NewBatcher("test", []string{"id"}, 3, rec.copy)
	addN(t, b, 6)
	if err := b.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(rec.calls) != 2 {
		t.Fatalf("flushes: got %d want 2", len(rec.calls))
	}
}

func TestBatcher_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	rec := &copyRecorder{}
	b, _ := NewBatcher("test", []string{"id"}, 10, rec.copy)
	addN(t, b, 4)
	for i := 0; i < 3; i++ {
		if err := b.Close(context.Background()); err != nil {
			t.Fatalf("Close #%d: %v", i, err)
		}
	}
	if len(rec.calls) != 1 {
		t.Fatalf("flushes: got %d want 1", len(rec.calls))
	}
	if err := b.Add(context.Background(), []any{99}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Add after Close: got %v want ErrClosed", err)
	}
}

// TestBatcher_ErrorIsSticky ensures the first copy error stops the batcher.
func TestBatcher_ErrorIsSticky(t *testing.T) {
	t.Parallel()

	rec := &copyRecorder{fail: 2}
	b, _ := NewBatcher("test", []string{"id"}, 2, rec.copy)
	addN(t, b, 4)

	err := b.Add(context.Background(), []any{4})
	if err == nil {
		t.Fatalf("expected copy error on second flush")
	}
	if err2 := b.Add(context.Background(), []any{5}); err2 != err {
		t.Fatalf("Add after failure: got %v want %v", err2, err)
	}
	if err3 := b.Close(context.Background()); err3 != err {
		t.Fatalf("Close after failure: got %v want %v", err3, err)
	}
	if len(rec.calls) != 2 {
		t.Fatalf("copy calls: got %d want 2", len(rec.calls))
	}
}

func TestBatcher_RowWidth(t *testing.T) {
	t.Parallel()

	rec := &copyRecorder{}
	b, _ := NewBatcher("test", []string{"a", "b"}, 2, rec.copy)
	if err := b.Add(context.Background(), []any{1}); err == nil {
		t.Fatalf("expected width error")
	}
}

func TestNewBatcher_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewBatcher("j", nil, 0, (&copyRecorder{}).copy); err == nil {
		t.Fatalf("expected error for size 0")
	}
	if _, err := NewBatcher("j", nil, 1, nil); err == nil {
		t.Fatalf("expected error for nil copyFn")
	}
}
