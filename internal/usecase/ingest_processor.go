package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adsb-ingest-service/internal/domain/entity"
	"adsb-ingest-service/internal/domain/repository"
	"adsb-ingest-service/internal/infrastructure/feed"
	"adsb-ingest-service/pkg/logger"
	"adsb-ingest-service/pkg/metrics"

	"github.com/google/uuid"
)

var (
	// ErrFeedClosed wraps the read error that ended a run
	ErrFeedClosed = errors.New("feed connection closed")

	// ErrStoreUnavailable wraps a bulk call that failed as a whole
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ChunkReader is the feed side of the pipeline
type ChunkReader interface {
	ReadChunk() ([]byte, error)
	Interrupt()
}

// IngestConfig tunes the ingest processor
type IngestConfig struct {
	BatchSize         int
	FlushTimeout      time.Duration // bounds each bulk write and the final flush
	FlushRetries      int
	FlushRetryBackoff time.Duration
}

// IngestProcessor runs the read → parse → batch → flush pipeline
type IngestProcessor struct {
	cfg     IngestConfig
	router  MessageRouter
	repo    repository.AircraftStateRepository
	metrics *metrics.Metrics
	logger  logger.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewIngestProcessor creates a new ingest processor
func NewIngestProcessor(
	cfg IngestConfig,
	router MessageRouter,
	repo repository.AircraftStateRepository,
	metrics *metrics.Metrics,
	logger logger.Logger,
) *IngestProcessor {
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 10 * time.Second
	}
	return &IngestProcessor{
		cfg:     cfg,
		router:  router,
		repo:    repo,
		metrics: metrics,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// Run consumes the feed until ctx is cancelled or the feed fails.
// Whatever is buffered is flushed exactly once on the way out. A
// cancelled run returns nil unless a flush failed; a failed feed returns an error wrapping
// ErrFeedClosed; a store failure returns an error wrapping
// ErrStoreUnavailable. The caller owns and closes the feed.
func (p *IngestProcessor) Run(ctx context.Context, src ChunkReader) error {
	trigger := metrics.TriggerSize
	batcher, err := NewBatcher(p.cfg.BatchSize, func(ctx context.Context, batch []entity.TelemetryRecord) error {
		return p.flush(ctx, batch, trigger)
	})
	if err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, src.Interrupt)
	defer stop()

	var splitter feed.LineSplitter
	p.logger.Info("Ingestion started", "batchSize", p.cfg.BatchSize)

	for {
		chunk, readErr := src.ReadChunk()
		if readErr != nil {
			if ctx.Err() != nil {
				p.logger.Info("Stopping ingestion", "buffered", batcher.Len())
				return p.finalFlush(batcher, metrics.TriggerShutdown, &trigger)
			}

			p.logger.Warn("Feed read failed", "error", readErr, "buffered", batcher.Len())
			errs := []error{fmt.Errorf("%w: %w", ErrFeedClosed, readErr)}
			if line, ok := splitter.Flush(); ok {
				errs = append(errs, p.handleLine(ctx, batcher, line))
			}
			errs = append(errs, p.finalFlush(batcher, metrics.TriggerFeedEnd, &trigger))
			return errors.Join(errs...)
		}

		var errs []error
		for _, line := range splitter.Push(chunk) {
			if err := p.handleLine(ctx, batcher, line); err != nil {
				if ctx.Err() == nil {
					return err
				}
				// shutting down: lines already read still get buffered
				errs = append(errs, err)
			}
		}

		if ctx.Err() != nil {
			p.logger.Info("Stopping ingestion", "buffered", batcher.Len())
			errs = append(errs, p.finalFlush(batcher, metrics.TriggerShutdown, &trigger))
			return errors.Join(errs...)
		}
	}
}

func (p *IngestProcessor) handleLine(ctx context.Context, batcher *Batcher, line string) error {
	p.metrics.LinesReceived.Inc()

	parser := p.router.GetHandler(line)
	if parser == nil {
		p.metrics.LinesDropped.WithLabelValues(metrics.DropUnrouted).Inc()
		return nil
	}
	rec, ok := parser.Parse(line)
	if !ok {
		p.metrics.LinesDropped.WithLabelValues(metrics.DropMalformed).Inc()
		p.logger.Debug("Dropped malformed line", "line", line)
		return nil
	}
	p.metrics.RecordsParsed.Inc()

	return batcher.Add(ctx, rec)
}

// finalFlush drains the batcher with a fresh context, since the run's
// context may already be cancelled
func (p *IngestProcessor) finalFlush(batcher *Batcher, reason string, trigger *string) error {
	*trigger = reason
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.FlushTimeout)
	defer cancel()
	return batcher.Close(ctx)
}

func (p *IngestProcessor) flush(ctx context.Context, batch []entity.TelemetryRecord, trigger string) error {
	flushID := uuid.New().String()
	log := p.logger.With("flushId", flushID, "trigger", trigger, "count", len(batch))

	p.metrics.Flushes.WithLabelValues(trigger).Inc()
	p.metrics.BatchSize.Observe(float64(len(batch)))

	if len(batch) == 0 {
		log.Debug("Nothing to flush")
		return nil
	}

	ops := BuildWriteOperations(batch)

	start := time.Now()
	result, err := p.submit(ctx, ops, log)
	p.metrics.FlushDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.StoreErrors.Inc()
		log.Error("Bulk upsert failed, dropping batch", "error", err)
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	for _, f := range result.Failures {
		log.Warn("Upsert rejected",
			"index", f.Index,
			"icao", f.ICAO,
			"code", f.Code,
			"reason", f.Reason,
		)
	}
	p.metrics.OperationsWritten.Add(float64(result.Succeeded))
	p.metrics.ItemFailures.Add(float64(len(result.Failures)))

	log.Info("Bulk upsert complete",
		"submitted", result.Submitted,
		"succeeded", result.Succeeded,
		"failed", len(result.Failures),
	)
	return nil
}

// submit calls the store, retrying whole-call failures with doubling
// backoff. Each write is detached from ctx cancellation and bounded by
// FlushTimeout; only the waits between attempts stop on cancellation.
func (p *IngestProcessor) submit(ctx context.Context, ops []entity.WriteOperation, log logger.Logger) (*entity.BulkResult, error) {
	backoff := p.cfg.FlushRetryBackoff
	for attempt := 0; ; attempt++ {
		result, err := p.bulkUpsert(ctx, ops)
		if err == nil {
			return result, nil
		}
		if attempt >= p.cfg.FlushRetries {
			return nil, err
		}

		log.Warn("Bulk upsert failed, retrying", "attempt", attempt+1, "backoff", backoff, "error", err)
		if sleepErr := p.sleep(ctx, backoff); sleepErr != nil {
			return nil, err
		}
		backoff *= 2
	}
}

func (p *IngestProcessor) bulkUpsert(ctx context.Context, ops []entity.WriteOperation) (*entity.BulkResult, error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.FlushTimeout)
	defer cancel()
	return p.repo.BulkUpsert(writeCtx, ops)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
