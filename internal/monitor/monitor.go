// Package monitor samples running processes and feeds them to the engine as
// activity observations. It is the local stand-in for richer OS-level window
// and file tracking.
package monitor

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/contextd/contextd/internal/store"
)

// Ingester receives observed activities.
type Ingester interface {
	Ingest(ctx context.Context, a store.Activity) (bool, error)
}

// Sample is one observed process at sampling time.
type Sample struct {
	PID        int32
	Name       string
	CPUPercent float64
	MemoryMB   float64
}

// Monitor periodically records the busiest processes as process_sample
// activities.
type Monitor struct {
	ingester Ingester
	interval time.Duration
	topN     int
	stopCh   chan struct{}
}

// New creates a monitor. interval <= 0 defaults to 30s, topN <= 0 to 5.
func New(ing Ingester, interval time.Duration, topN int) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if topN <= 0 {
		topN = 5
	}
	return &Monitor{
		ingester: ing,
		interval: interval,
		topN:     topN,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the sampling loop.
func (m *Monitor) Start(ctx context.Context) {
	log.Printf("monitor: sampling every %s (top %d processes)", m.interval, m.topN)
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				samples, err := snapshot()
				if err != nil {
					log.Printf("monitor: snapshot: %v", err)
					continue
				}
				m.emit(ctx, topProcesses(samples, m.topN))
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the sampling loop.
func (m *Monitor) Stop() {
	close(m.stopCh)
}

// emit turns samples into activities. Ingest errors are logged per sample so
// one bad record does not lose the batch.
func (m *Monitor) emit(ctx context.Context, samples []Sample) {
	now := time.Now()
	for _, s := range samples {
		a := store.Activity{
			ActivityID:   uuid.NewString(),
			ActivityType: "process_sample",
			Timestamp:    now,
			AppName:      s.Name,
			Metadata: fmt.Sprintf(`{"pid":%d,"cpu_percent":%.1f,"memory_mb":%.1f}`,
				s.PID, s.CPUPercent, s.MemoryMB),
		}
		if _, err := m.ingester.Ingest(ctx, a); err != nil {
			log.Printf("monitor: ingest %s: %v", s.Name, err)
		}
	}
}

// snapshot reads the current process table.
func snapshot() ([]Sample, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	var samples []Sample
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || name == "" {
			continue
		}
		cpu, err := p.CPUPercent()
		if err != nil {
			continue
		}
		var memMB float64
		if mi, err := p.MemoryInfo(); err == nil && mi != nil {
			memMB = float64(mi.RSS) / (1024 * 1024)
		}
		samples = append(samples, Sample{
			PID:        p.Pid,
			Name:       name,
			CPUPercent: cpu,
			MemoryMB:   memMB,
		})
	}
	return samples, nil
}

// topProcesses returns the n busiest samples by CPU, memory as tie-break.
func topProcesses(samples []Sample, n int) []Sample {
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CPUPercent != sorted[j].CPUPercent {
			return sorted[i].CPUPercent > sorted[j].CPUPercent
		}
		return sorted[i].MemoryMB > sorted[j].MemoryMB
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
