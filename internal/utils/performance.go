package utils

import (
	"context"
	"time"

	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/observability"
	"go.uber.org/zap"
)

// PerformanceMonitor times a batch operation and its named phases
type PerformanceMonitor struct {
	startTime   time.Time
	last        time.Time
	operation   string
	logger      *logging.SafeLogger
	checkpoints []Checkpoint
}

// Checkpoint is the time spent in one phase
type Checkpoint struct {
	Name     string
	Duration time.Duration
}

// NewPerformanceMonitor creates a new performance monitor
func NewPerformanceMonitor(ctx context.Context, operation string) *PerformanceMonitor {
	now := time.Now()
	return &PerformanceMonitor{
		startTime: now,
		last:      now,
		operation: operation,
		logger:    logging.Logger.With(zap.String("operation", operation)),
	}
}

// Checkpoint closes the current phase under name
func (pm *PerformanceMonitor) Checkpoint(name string) {
	now := time.Now()
	pm.checkpoints = append(pm.checkpoints, Checkpoint{Name: name, Duration: now.Sub(pm.last)})
	pm.last = now
}

// Checkpoints returns the recorded phases
func (pm *PerformanceMonitor) Checkpoints() []Checkpoint {
	return pm.checkpoints
}

// End logs the summary and records the total duration
func (pm *PerformanceMonitor) End() time.Duration {
	total := time.Since(pm.startTime)

	fields := []zap.Field{zap.Duration("total_duration", total)}
	for _, cp := range pm.checkpoints {
		fields = append(fields, zap.Duration("phase_"+cp.Name, cp.Duration))
	}
	pm.logger.Info("operation completed", fields...)

	observability.OperationDuration.WithLabelValues(pm.operation).Observe(total.Seconds())
	return total
}

// MonitorFunctionWithResult times fn and logs its failure
func MonitorFunctionWithResult[T any](ctx context.Context, operation string, fn func(pm *PerformanceMonitor) (T, error)) (T, error) {
	monitor := NewPerformanceMonitor(ctx, operation)
	defer monitor.End()

	result, err := fn(monitor)
	if err != nil {
		monitor.logger.Error("operation failed", zap.Error(err))
	}
	return result, err
}
