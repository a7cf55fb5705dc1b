package pipeline

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/strong-motion-etl/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Report summarizes one processed batch.
type Report struct {
	BatchID uuid.UUID

	Files   int // file references in the batch
	Failed  int // files that did not decode
	Records int // channel records decoded, before grouping

	Groups     []domain.RecordingGroup
	Duplicates int // records dropped as exact duplicates

	// Warnings holds decode warnings in file order followed by grouping warnings.
	Warnings []domain.Warning
	Errors   []FileError
}

// FileError is a decode failure for one file of a batch.
type FileError struct {
	Index int // position in the batch
	Path  string
	Err   error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e FileError) Unwrap() error { return e.Err }

type decodeResult struct {
	decoded domain.Decoded
	err     error
	took    time.Duration
}

// Process decodes refs on the bounded worker pool, then groups every decoded
// record. Per-file failures are collected in the report and never abort the
// batch. The returned error is non-nil only when grouping rejects the decoded
// records or ctx ends first.
func (p *Pipeline) Process(ctx context.Context, refs []domain.FileRef) (Report, error) {
	report := Report{BatchID: uuid.New(), Files: len(refs)}

	results := p.decodeAll(ctx, refs)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	var decoded []domain.RecordingGroup
	for i, res := range results {
		ref := refs[i]
		if res.err != nil {
			kind := domain.ErrorKind(res.err)
			report.Failed++
			report.Errors = append(report.Errors, FileError{Index: i, Path: ref.Path, Err: res.err})
			p.metrics.DecodeErrors.WithLabelValues(kind).Inc()
			p.logger.Warn("decode failed, skipping file",
				"error", res.err,
				"kind", kind,
				"path", ref.Path,
				"batch_id", report.BatchID,
			)
			continue
		}

		d := res.decoded
		p.metrics.DecodeDuration.WithLabelValues(d.Format).Observe(res.took.Seconds())
		p.metrics.RecordsDecoded.WithLabelValues(d.Format).Add(float64(len(d.Group)))
		p.logger.Debug("decoded file", "path", ref.Path, "format", d.Format, "records", len(d.Group), "batch_id", report.BatchID)
		for _, w := range d.Warnings {
			p.warn(&report, "decode warning", w)
		}
		report.Records += len(d.Group)
		if len(d.Group) > 0 {
			decoded = append(decoded, d.Group)
		}
	}

	groups, warnings, err := p.grouper.Group(decoded)
	if err != nil {
		return report, fmt.Errorf("group batch: %w", err)
	}

	grouped := 0
	for _, g := range groups {
		grouped += len(g)
	}
	report.Groups = groups
	report.Duplicates = report.Records - grouped
	p.metrics.DuplicatesDropped.Add(float64(report.Duplicates))

	for _, w := range warnings {
		if w.Code == domain.WarnUngroupedChannel {
			p.metrics.UngroupedRecords.Inc()
		}
		p.warn(&report, "group warning", w)
	}

	p.logger.Info("batch processed",
		"batch_id", report.BatchID,
		"files", report.Files,
		"failed", report.Failed,
		"records", report.Records,
		"groups", len(report.Groups),
		"duplicates", report.Duplicates,
		"warnings", len(report.Warnings),
	)
	return report, nil
}

// warn records w on the report; msg names the stage that raised it.
func (p *Pipeline) warn(report *Report, msg string, w domain.Warning) {
	report.Warnings = append(report.Warnings, w)
	p.metrics.DecodeWarnings.WithLabelValues(w.Code).Inc()
	p.logger.Warn(msg, "code", w.Code, "path", w.Path, "message", w.Message, "batch_id", report.BatchID)
}

// decodeAll decodes every ref with at most p.workers files in flight. Results
// keep the order of refs. Refs not started before ctx ends get ctx's error.
func (p *Pipeline) decodeAll(ctx context.Context, refs []domain.FileRef) []decodeResult {
	results := make([]decodeResult, len(refs))
	sem := semaphore.NewWeighted(int64(p.workers))
	var wg sync.WaitGroup

	for i, ref := range refs {
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(refs); j++ {
				results[j].err = err
			}
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			start := time.Now()
			out, err := p.decoder.DecodeFile(ctx, ref)
			results[i] = decodeResult{decoded: out, err: err, took: time.Since(start)}
		}()
	}

	wg.Wait()
	return results
}

// GroupWarnings picks the warnings addressed to g: its key or one of its record IDs.
func GroupWarnings(g domain.RecordingGroup, all []domain.Warning) []domain.Warning {
	key := g.Key()
	var out []domain.Warning
	for _, w := range all {
		if w.Path == key || slices.ContainsFunc(g, func(r domain.ChannelRecord) bool { return r.ID() == w.Path }) {
			out = append(out, w)
		}
	}
	return out
}
