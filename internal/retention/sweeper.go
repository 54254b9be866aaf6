// Package retention deletes notifications older than the retention window.
package retention

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/venture-platform/internal/audit"
	"github.com/iliyamo/venture-platform/internal/store"
)

var tracer = otel.Tracer("retention")

// Config bounds one sweep.
type Config struct {
	Retention  time.Duration // default 30 days
	BatchSize  int           // deletes per batch, default store.MaxBatchSize
	MaxBatches int           // zero means unbounded
}

// SweepResult reports what one sweep removed.
type SweepResult struct {
	Deleted int `json:"deleted"`
	Batches int `json:"batches"`
	// Truncated is set when MaxBatches stopped the sweep with expired
	// notifications still present.
	Truncated bool `json:"truncated"`
}

type Sweeper struct {
	docs  store.DocumentStore
	audit *audit.Writer
	log   *zap.Logger
	cfg   Config
}

func NewSweeper(docs store.DocumentStore, auditor *audit.Writer, log *zap.Logger, cfg Config) *Sweeper {
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > store.MaxBatchSize {
		cfg.BatchSize = store.MaxBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{docs: docs, audit: auditor, log: log.Named("retention"), cfg: cfg}
}

// Sweep deletes notifications created before now minus the retention
// window. Each delete batch is atomic on its own; a failed batch stops the
// sweep and keeps what earlier batches removed.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	ctx, span := tracer.Start(ctx, "Retention.Sweeper.Sweep")
	defer span.End()

	cutoff := now.Add(-s.cfg.Retention)
	var res SweepResult
	for {
		expired, err := s.docs.Query(ctx, store.Notifications, store.Where("createdAt", store.OpLt, cutoff))
		if err != nil {
			span.RecordError(err)
			return res, err
		}
		if len(expired) == 0 {
			break
		}
		if s.cfg.MaxBatches > 0 && res.Batches >= s.cfg.MaxBatches {
			res.Truncated = true
			break
		}
		if len(expired) > s.cfg.BatchSize {
			expired = expired[:s.cfg.BatchSize]
		}
		ops := make([]store.BatchOp, len(expired))
		for i, d := range expired {
			ops[i] = store.BatchOp{Kind: store.OpDelete, Collection: store.Notifications, ID: d.ID}
		}
		if err := s.docs.BatchWrite(ctx, ops); err != nil {
			span.RecordError(err)
			s.log.Error("retention batch failed", zap.Int("batch", res.Batches), zap.Error(err))
			return res, err
		}
		res.Batches++
		res.Deleted += len(ops)
	}

	span.SetAttributes(attribute.Int("retention.deleted", res.Deleted), attribute.Int("retention.batches", res.Batches))
	s.log.Info("retention sweep done",
		zap.Int("deleted", res.Deleted), zap.Int("batches", res.Batches), zap.Bool("truncated", res.Truncated))
	_ = s.audit.Record(ctx, "system", audit.RetentionSweep, map[string]any{
		"cutoff":    cutoff,
		"deleted":   res.Deleted,
		"batches":   res.Batches,
		"truncated": res.Truncated,
	})
	return res, nil
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if _, err := s.Sweep(ctx, now.UTC()); err != nil {
				s.log.Warn("scheduled sweep failed", zap.Error(err))
			}
		}
	}
}
