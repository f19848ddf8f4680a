package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Pruner is the slice of the repository the sweep needs.
type Pruner interface {
	DeleteFilesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service periodically removes file records that have outlived the link TTL.
// It complements lazy expiry: records nobody tries to resolve still get
// pruned. Only run when a TTL is configured; under the permanent policy
// nothing ever expires.
type Service struct {
	pruner   Pruner
	ttl      time.Duration
	interval time.Duration
	done     chan struct{}
}

// NewService creates a cleanup service.
func NewService(pruner Pruner, ttl, interval time.Duration) *Service {
	return &Service{
		pruner:   pruner,
		ttl:      ttl,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop in a background goroutine.
func (s *Service) Start(ctx context.Context) {
	slog.Info("cleanup service started", "ttl", s.ttl, "interval", s.interval)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		// Run once immediately on start
		s.runSweep(ctx)

		for {
			select {
			case <-ticker.C:
				s.runSweep(ctx)
			case <-ctx.Done():
				slog.Info("cleanup service stopping")
				close(s.done)
				return
			}
		}
	}()
}

// Wait blocks until the cleanup service has fully stopped.
func (s *Service) Wait() {
	<-s.done
}

func (s *Service) runSweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.ttl)

	pruned, err := s.pruner.DeleteFilesBefore(ctx, cutoff)
	if err != nil {
		slog.Error("expiry sweep failed", "error", err)
		return
	}

	if pruned > 0 {
		slog.Info("expiry sweep complete", "pruned", pruned, "cutoff", cutoff)
	}
}
