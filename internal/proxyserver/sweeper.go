package proxyserver

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"aisam/internal/store"
)

// Sweeper periodically drops sessions idle for longer than the retention.
type Sweeper struct {
	cron      *cron.Cron
	store     store.Store
	retention time.Duration
	metrics   *Metrics
	now       func() time.Time
}

func NewSweeper(st store.Store, spec string, retention time.Duration, m *Metrics) (*Sweeper, error) {
	if st == nil {
		return nil, errors.New("sweeper: store is required")
	}
	if retention <= 0 {
		return nil, fmt.Errorf("sweeper: retention must be positive, got %s", retention)
	}
	if m == nil {
		m = NewMetrics()
	}

	s := &Sweeper{
		cron:      cron.New(),
		store:     st,
		retention: retention,
		metrics:   m,
		now:       time.Now,
	}
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.SweepOnce(ctx)
	}); err != nil {
		return nil, fmt.Errorf("sweeper: schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) SweepOnce(ctx context.Context) int {
	cutoff := s.now().Add(-s.retention)
	n, err := s.store.Sweep(ctx, cutoff)
	if err != nil {
		log.Error("Sweep failed", "err", err)
		return 0
	}
	if n > 0 {
		s.metrics.Swept.Add(float64(n))
		log.Info("Swept idle sessions", "count", n)
	}
	return n
}
