package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/aischolar/scholar/internal/instance"
)

// OptimizationResult reports what an optimization pass did.
type OptimizationResult struct {
	InstanceName  string        `json:"instance_name"`
	CacheCleared  bool          `json:"cache_cleared"`
	WarmupLatency time.Duration `json:"warmup_latency"`
	CompletedAt   time.Time     `json:"completed_at"`
}

// Optimize resets the embedding cache and counters, then runs a warm-up
// query against the instance so the first real query after the reset
// does not pay the cold cost.
func (m *Monitor) Optimize(ctx context.Context, instanceName string) (OptimizationResult, error) {
	if err := instance.ValidateName(instanceName); err != nil {
		return OptimizationResult{}, err
	}

	m.store.ClearCache()
	m.store.ResetCacheCounters()
	m.perf.reset()

	start := m.now()
	_, err := m.store.Query(ctx, instance.CollectionName(instanceName), "warm-up probe")
	if err != nil {
		return OptimizationResult{}, fmt.Errorf("warm-up query for %q: %w", instanceName, err)
	}

	result := OptimizationResult{
		InstanceName:  instanceName,
		CacheCleared:  true,
		WarmupLatency: m.now().Sub(start),
		CompletedAt:   m.now().UTC(),
	}
	m.logger.Info("optimization completed",
		"instance", instanceName, "warmup_latency", result.WarmupLatency)
	return result, nil
}
