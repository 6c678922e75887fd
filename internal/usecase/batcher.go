package usecase

import (
	"context"
	"errors"
	"fmt"

	"adsb-ingest-service/internal/domain/entity"
)

// ErrBatcherClosed is returned by Add and Close after the final flush
var ErrBatcherClosed = errors.New("batcher closed")

// FlushFunc receives ownership of a batch; the batcher never touches it again
type FlushFunc func(ctx context.Context, batch []entity.TelemetryRecord) error

// Batcher buffers records in arrival order and flushes them when the
// buffer reaches its threshold, and once more on Close.
type Batcher struct {
	threshold int
	buf       []entity.TelemetryRecord
	flush     FlushFunc
	closed    bool
}

// NewBatcher creates a batcher flushing every threshold records
func NewBatcher(threshold int, flush FlushFunc) (*Batcher, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("batch threshold must be positive, got %d", threshold)
	}
	if flush == nil {
		return nil, errors.New("flush func is required")
	}
	return &Batcher{
		threshold: threshold,
		buf:       make([]entity.TelemetryRecord, 0, threshold),
		flush:     flush,
	}, nil
}

// Add appends a record, flushing synchronously when the threshold is
// reached. The returned error is the flush error, if any; the buffer is
// empty afterwards either way.
func (b *Batcher) Add(ctx context.Context, rec entity.TelemetryRecord) error {
	if b.closed {
		return ErrBatcherClosed
	}
	b.buf = append(b.buf, rec)
	if len(b.buf) < b.threshold {
		return nil
	}
	return b.flush(ctx, b.take())
}

// Close flushes whatever is buffered, even nothing, exactly once
func (b *Batcher) Close(ctx context.Context) error {
	if b.closed {
		return ErrBatcherClosed
	}
	b.closed = true
	return b.flush(ctx, b.take())
}

// Len returns the number of buffered records
func (b *Batcher) Len() int {
	return len(b.buf)
}

func (b *Batcher) take() []entity.TelemetryRecord {
	batch := b.buf
	b.buf = make([]entity.TelemetryRecord, 0, b.threshold)
	return batch
}
