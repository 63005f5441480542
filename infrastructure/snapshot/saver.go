package snapshot

import (
	"context"
	"time"

	"kgraph/domain/core/entities"
	"kgraph/pkg/observability"

	"go.uber.org/zap"
)

// Exporter produces a consistent copy of the graph
type Exporter interface {
	Export(ctx context.Context) (*entities.Snapshot, error)
}

// Saver periodically writes the graph to a FileStore
type Saver struct {
	exporter Exporter
	store    *FileStore
	interval time.Duration
	logger   *zap.Logger
	metrics  *observability.Collector
}

// NewSaver creates a saver that runs every interval
func NewSaver(exporter Exporter, store *FileStore, interval time.Duration, logger *zap.Logger, metrics *observability.Collector) *Saver {
	return &Saver{
		exporter: exporter,
		store:    store,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

// SaveNow exports and writes one snapshot
func (s *Saver) SaveNow(ctx context.Context) error {
	ctx, span := observability.StartSpan(ctx, "Saver.SaveNow")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	snap, err := s.exporter.Export(ctx)
	if err == nil {
		err = s.store.Save(snap)
	}
	if err != nil {
		s.metrics.SnapshotFailures.Inc()
		return err
	}
	s.metrics.SnapshotsSaved.Inc()
	return nil
}

// Run saves on every tick until ctx is cancelled, then writes a final
// snapshot. Failed saves are logged and retried on the next tick.
func (s *Saver) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Snapshot saver started",
		zap.String("path", s.store.Path()),
		zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			// the parent context is gone; give the final write its own
			final, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.SaveNow(final); err != nil {
				s.logger.Error("Final snapshot failed", zap.Error(err))
				return err
			}
			s.logger.Info("Final snapshot written", zap.String("path", s.store.Path()))
			return nil
		case <-ticker.C:
			if err := s.SaveNow(ctx); err != nil {
				s.logger.Error("Periodic snapshot failed", zap.Error(err))
			}
		}
	}
}
