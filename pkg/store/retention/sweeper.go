package retention

import (
	"log/slog"
	"time"

	"mercator-hq/ganymede/pkg/store"
	"mercator-hq/ganymede/pkg/telemetry/metrics"
)

// Sweeper runs one reclamation pass over the store: expired
// credentials and their logs are removed in a single transaction.
type Sweeper struct {
	store   *store.Store
	metrics *metrics.Collector
	logger  *slog.Logger

	// clock is swapped in tests.
	clock func() time.Time
}

// NewSweeper creates a sweeper over the given store. The metrics
// collector may be nil.
func NewSweeper(s *store.Store, collector *metrics.Collector) *Sweeper {
	return &Sweeper{
		store:   s,
		metrics: collector,
		logger:  slog.Default().With("component", "retention.sweeper"),
		clock:   time.Now,
	}
}

// Sweep reclaims everything expired as of the current instant.
func (s *Sweeper) Sweep() (store.ReclaimResult, error) {
	started := s.clock()

	result, err := s.store.ReclaimExpired(started)
	if err != nil {
		return store.ReclaimResult{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordReclaimed(result.Logs, result.Credentials)
	}

	if result.Credentials > 0 || result.Logs > 0 {
		s.logger.Info("reclamation completed",
			"credentials", result.Credentials,
			"logs", result.Logs,
			"duration", s.clock().Sub(started),
		)
	} else {
		s.logger.Debug("reclamation completed, nothing expired")
	}
	return result, nil
}
