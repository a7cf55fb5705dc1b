package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/strong-motion-etl/internal/domain"
	"github.com/couchcryptid/strong-motion-etl/internal/grouping"
	"github.com/couchcryptid/strong-motion-etl/internal/observability"
)

// BatchExtractor reads up to batchSize file references from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.FileRef, error)
}

// Decoder turns one file reference into a decoded recording group.
type Decoder interface {
	DecodeFile(ctx context.Context, ref domain.FileRef) (domain.Decoded, error)
}

// BatchLoader writes serialized recording groups to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

// Pipeline orchestrates the extract-decode-group-load loop.
type Pipeline struct {
	extractor BatchExtractor
	decoder   Decoder
	grouper   grouping.Grouper
	loader    BatchLoader
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
	workers   int
}

// Option adjusts a Pipeline built by New.
type Option func(*Pipeline)

// WithWorkers bounds how many files of one batch are decoded concurrently.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithGrouper replaces the zero-value grouper.
func WithGrouper(g grouping.Grouper) Option {
	return func(p *Pipeline) { p.grouper = g }
}

// New creates a Pipeline with the given stages and observability. The extractor
// and loader may be nil when only Process is used.
func New(e BatchExtractor, d Decoder, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor: e,
		decoder:   d,
		loader:    l,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
		workers:   1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil if the pipeline has loaded at least one batch,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not loaded any recording groups yet")
	}
	return nil
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize, "workers", p.workers, "match_mode", p.grouper.Mode)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	refs, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(refs) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.FilesConsumed.Add(float64(len(refs)))
	p.metrics.BatchSize.Observe(float64(len(refs)))
	*backoff = 200 * time.Millisecond

	report, err := p.Process(ctx, refs)
	if ctx.Err() != nil {
		return false
	}

	// Files that failed to decode will fail again; commit them now.
	failed := make(map[int]bool, len(report.Errors))
	for _, fe := range report.Errors {
		failed[fe.Index] = true
		p.commitOffset(ctx, refs[fe.Index])
	}

	if err != nil {
		p.logger.Error("group batch failed, skipping batch", "error", err, "batch_id", report.BatchID, "files", len(refs))
		p.commitRemaining(ctx, refs, failed)
		return true
	}

	loaded, ok := p.load(ctx, report, backoff, maxBackoff)
	if !ok {
		return false
	}
	if loaded < 0 {
		return true
	}
	p.commitRemaining(ctx, refs, failed)

	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// load serializes the report's groups and writes them. It returns the number of
// groups loaded, or -1 when the load failed and offsets must not be committed,
// and false if the pipeline should stop.
func (p *Pipeline) load(ctx context.Context, report Report, backoff *time.Duration, maxBackoff time.Duration) (int, bool) {
	events := make([]domain.OutputEvent, 0, len(report.Groups))
	for _, g := range report.Groups {
		ev, err := domain.SerializeRecordingGroup(g, GroupWarnings(g, report.Warnings))
		if err != nil {
			p.metrics.GroupsDropped.Inc()
			p.logger.Warn("serialize group failed, skipping group", "error", err, "batch_id", report.BatchID, "group", g.Key())
			continue
		}
		ev.Headers["batch_id"] = report.BatchID.String()
		events = append(events, ev)
	}

	if len(events) == 0 {
		return 0, true
	}

	if err := p.loader.LoadBatch(ctx, events); err != nil {
		p.logger.Error("load batch failed", "error", err, "batch_id", report.BatchID, "groups", len(events))
		return -1, p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	p.metrics.GroupsProduced.Add(float64(len(events)))
	return len(events), true
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

func (p *Pipeline) commitRemaining(ctx context.Context, refs []domain.FileRef, skip map[int]bool) {
	for i := range refs {
		if !skip[i] {
			p.commitOffset(ctx, refs[i])
		}
	}
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, ref domain.FileRef) {
	if ref.Commit == nil {
		return
	}
	if err := ref.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err, "path", ref.Path,
			"topic", ref.Topic, "partition", ref.Partition, "offset", ref.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
