package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/strong-motion-etl/internal/config"
	"github.com/couchcryptid/strong-motion-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Reader consumes file notifications from a Kafka topic.
// It implements pipeline.BatchExtractor.
type Reader struct {
	reader        *kafkago.Reader
	logger        *slog.Logger
	flushInterval time.Duration
}

// NewReader creates a Kafka consumer group reader for the configured source topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaSourceTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Reader{reader: r, logger: logger, flushInterval: cfg.BatchFlushInterval}
}

// ExtractBatch blocks for the first message, then collects more until batchSize
// messages arrive or the flush interval elapses. Offsets are not committed;
// each FileRef carries a Commit callback.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.FileRef, error) {
	refs := make([]domain.FileRef, 0, batchSize)

	var flushCtx context.Context
	for len(refs) < batchSize {
		fetchCtx := ctx
		if flushCtx != nil {
			fetchCtx = flushCtx
		}

		msg, err := r.reader.FetchMessage(fetchCtx)
		if err != nil {
			if len(refs) > 0 {
				return refs, nil
			}
			return nil, err
		}

		refs = append(refs, r.mapMessageToFileRef(msg))
		if flushCtx == nil && r.flushInterval > 0 {
			var cancel context.CancelFunc
			flushCtx, cancel = context.WithTimeout(ctx, r.flushInterval)
			defer cancel()
		}
	}
	return refs, nil
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

func (r *Reader) mapMessageToFileRef(msg kafkago.Message) domain.FileRef {
	ref := mapMessageToFileRef(msg)
	ref.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return ref
}

// fileNotice is the JSON form of a source message. A bare path is also accepted.
type fileNotice struct {
	Path   string `json:"path"`
	Format string `json:"format,omitempty"`
}

// mapMessageToFileRef reads the path and optional forced format from a message.
// A "format" header fills in a format the body does not name. An unreadable
// message yields an empty path, which fails decoding and is committed like any
// other bad file.
func mapMessageToFileRef(msg kafkago.Message) domain.FileRef {
	var notice fileNotice
	value := bytes.TrimSpace(msg.Value)
	if len(value) > 0 && value[0] == '{' {
		if err := json.Unmarshal(value, &notice); err != nil {
			notice = fileNotice{}
		}
	} else {
		notice.Path = string(value)
	}

	if notice.Format == "" {
		for _, h := range msg.Headers {
			if h.Key == "format" {
				notice.Format = string(h.Value)
			}
		}
	}

	return domain.FileRef{
		Path:      strings.TrimSpace(notice.Path),
		Format:    strings.TrimSpace(notice.Format),
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Received:  msg.Time,
	}
}
