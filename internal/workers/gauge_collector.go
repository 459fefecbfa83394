package workers

import (
	"context"
	"strconv"
	"time"

	"reaper/internal/metrics"
	"reaper/internal/store"
	"reaper/pkg/errors"
)

// GaugeCollector refreshes the level and breaker gauges from storage
type GaugeCollector struct {
	*BaseWorker
	store store.Store
}

// NewGaugeCollector creates a new gauge collector
func NewGaugeCollector(st store.Store, interval time.Duration, enabled bool) *GaugeCollector {
	return &GaugeCollector{
		BaseWorker: NewBaseWorker("gauge_collector", interval, enabled),
		store:      st,
	}
}

// Run refreshes all gauges once
func (g *GaugeCollector) Run(ctx context.Context) error {
	r := g.store.Repos()

	levels, err := r.Levels.GetAll(ctx)
	if err != nil {
		return err
	}
	for _, ls := range levels {
		lbl := strconv.Itoa(ls.Level)
		metrics.LevelAliveCount.WithLabelValues(lbl).Set(float64(ls.AliveCount))
		staked, _ := ls.TotalStaked.Float64()
		metrics.LevelTotalStaked.WithLabelValues(lbl).Set(staked)
	}

	state, err := r.Breaker.GetState(ctx)
	if errors.Is(err, errors.ErrNotFound) {
		metrics.BreakerTripped.Set(0)
		return nil
	}
	if err != nil {
		return err
	}
	if state.Tripped {
		metrics.BreakerTripped.Set(1)
	} else {
		metrics.BreakerTripped.Set(0)
	}
	return nil
}
