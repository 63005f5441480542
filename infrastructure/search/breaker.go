package search

import (
	"context"
	"errors"
	"time"

	"kgraph/application/ports"
	"kgraph/domain/core/entities"
	"kgraph/domain/core/valueobjects"
	pkgerrors "kgraph/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for the index circuit breaker
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// FailureThreshold and MinRequests decide when the breaker trips
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for the index breaker
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "search-index",
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          15 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// BreakerIndex guards a SearchIndex with a circuit breaker. Every failure,
// including a rejected call while the breaker is open, is reported as
// INDEX_UNAVAILABLE.
type BreakerIndex struct {
	next   ports.SearchIndex
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

var _ ports.SearchIndex = (*BreakerIndex)(nil)

// NewBreakerIndex wraps next with a circuit breaker
func NewBreakerIndex(next ports.SearchIndex, config BreakerConfig, logger *zap.Logger) *BreakerIndex {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		// canceled callers do not count against the index
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &BreakerIndex{next: next, cb: cb, logger: logger}
}

// State returns the current breaker state
func (b *BreakerIndex) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerIndex) execute(op string, fn func() (interface{}, error)) (interface{}, error) {
	res, err := b.cb.Execute(fn)
	if err != nil {
		return nil, pkgerrors.NewIndexUnavailableError(op, err)
	}
	return res, nil
}

// Upsert inserts or replaces documents
func (b *BreakerIndex) Upsert(ctx context.Context, docs ...entities.SearchDocument) error {
	_, err := b.execute("upsert", func() (interface{}, error) {
		return nil, b.next.Upsert(ctx, docs...)
	})
	return err
}

// UpdateFields applies a partial update
func (b *BreakerIndex) UpdateFields(ctx context.Context, update entities.SearchFieldUpdate) error {
	_, err := b.execute("update_fields", func() (interface{}, error) {
		return nil, b.next.UpdateFields(ctx, update)
	})
	return err
}

// Delete removes a document
func (b *BreakerIndex) Delete(ctx context.Context, id valueobjects.NodeID) error {
	_, err := b.execute("delete", func() (interface{}, error) {
		return nil, b.next.Delete(ctx, id)
	})
	return err
}

// Query runs a free-text query
func (b *BreakerIndex) Query(ctx context.Context, text string, limit int) ([]entities.SearchHit, error) {
	res, err := b.execute("query", func() (interface{}, error) {
		return b.next.Query(ctx, text, limit)
	})
	if err != nil {
		return nil, err
	}
	hits, _ := res.([]entities.SearchHit)
	return hits, nil
}

// Close closes the wrapped index
func (b *BreakerIndex) Close() error {
	return b.next.Close()
}
