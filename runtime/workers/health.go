package workers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"

	"chat-relay/contract"
)

// HealthWorker periodically logs the relay's own vitals: process status,
// cpu and ram usage, goroutine count, registered sessions and queue depths.
type HealthWorker struct {
	registry contract.IRegistry
	relayLen func() int
	eventLen func() int
	interval time.Duration
	log      *slog.Logger
}

var _ contract.Worker = (*HealthWorker)(nil)

func NewHealthWorker(
	registry contract.IRegistry,
	relayLen, eventLen func() int,
	interval time.Duration,
	log *slog.Logger,
) *HealthWorker {
	return &HealthWorker{
		registry: registry,
		relayLen: relayLen,
		eventLen: eventLen,
		interval: interval,
		log:      log,
	}
}

func (w *HealthWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return fmt.Errorf("attach process probe: %w", err)
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health probe")
			return nil
		case <-ticker.C:
			w.report(p)
		}
	}
}

func (w *HealthWorker) report(p *process.Process) {
	status, err := p.Status()
	if err != nil {
		w.log.Error("Error while finding process status", "err", err)
		return
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		w.log.Error("Error while finding process cpu usage", "err", err)
		return
	}
	ram, err := p.MemoryPercent()
	if err != nil {
		w.log.Error("Error while finding process ram usage", "err", err)
		return
	}
	w.log.Info("Relay health",
		"status", status,
		"cpu", cpu,
		"ram", ram,
		"goroutines", runtime.NumGoroutine(),
		"sessions", w.registry.Len(),
		"relay_queue", w.relayLen(),
		"event_queue", w.eventLen())
}
