// Package jsonl writes serialized recording groups as JSON lines.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/couchcryptid/strong-motion-etl/internal/domain"
)

// Writer appends one JSON document per line. It implements pipeline.BatchLoader.
type Writer struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// LoadBatch writes each event's value on its own line and flushes.
func (w *Writer) LoadBatch(ctx context.Context, events []domain.OutputEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		value := bytes.TrimRight(events[i].Value, "\n")
		if bytes.IndexByte(value, '\n') >= 0 {
			return fmt.Errorf("write json line %s: value spans several lines", events[i].Key)
		}
		if _, err := w.w.Write(value); err != nil {
			return fmt.Errorf("write json line: %w", err)
		}
		if err := w.w.WriteByte('\n'); err != nil {
			return fmt.Errorf("write json line: %w", err)
		}
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flush json lines: %w", err)
	}
	return nil
}
