package engine

import (
	"fmt"
	"log"
	"time"
)

// RunMaintenance decays edge strengths, enforces the node capacity bound,
// and persists the graph. Single-flight: a cycle already in progress makes
// this call a no-op. A save failure propagates so the caller can retry; the
// in-memory graph is unaffected.
func (e *Engine) RunMaintenance() error {
	if !e.maintMu.TryLock() {
		log.Printf("engine: maintenance already running, skipping")
		return nil
	}
	defer e.maintMu.Unlock()

	removed := e.Graph.Decay(0) // 0 selects the configured decay factor
	evicted := e.Graph.EnforceCapacity()
	if removed > 0 || evicted > 0 {
		log.Printf("engine: maintenance removed %d weak edges, evicted %d nodes", removed, evicted)
	}

	if err := e.Graph.Save(); err != nil {
		return fmt.Errorf("maintenance save: %w", err)
	}
	return nil
}

// StartMaintenanceTimer runs a maintenance cycle now and then on the given
// interval until Stop is called. interval <= 0 defaults to five minutes.
func (e *Engine) StartMaintenanceTimer(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	if err := e.RunMaintenance(); err != nil {
		log.Printf("engine: maintenance: %v", err)
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := e.RunMaintenance(); err != nil {
					log.Printf("engine: maintenance: %v", err)
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}
