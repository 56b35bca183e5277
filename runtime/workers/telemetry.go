package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"paluwagan/observability"
	"paluwagan/runtime"
)

// TelemetryWorker samples self CPU/RSS and the live session count into the
// prometheus gauges on a fixed interval.
type TelemetryWorker struct {
	log      *slog.Logger
	registry *runtime.Registry
	metrics  *observability.Metrics
	interval time.Duration
}

func NewTelemetryWorker(
	log *slog.Logger,
	registry *runtime.Registry,
	metrics *observability.Metrics,
	interval time.Duration,
) *TelemetryWorker {
	return &TelemetryWorker{log: log, registry: registry, metrics: metrics, interval: interval}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.metrics.ConnectedSessions.Set(float64(w.registry.SessionCount()))
			memInfo, err := p.MemoryInfo()
			if err != nil {
				w.log.Debug("Failed to read memory info", "error", err)
				continue
			}
			cpu, err := p.CPUPercent()
			if err != nil {
				w.log.Debug("Failed to read cpu percent", "error", err)
				continue
			}
			w.metrics.ProcessRSSBytes.Set(float64(memInfo.RSS))
			w.metrics.ProcessCPUPercent.Set(cpu)
		}
	}
}
