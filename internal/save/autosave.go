package save

import (
	"context"
	"time"

	"github.com/elacour/granary/internal/core/domain"
)

// Autosave performs one autosave cycle immediately. The snapshot is
// written under AutosaveKey with the autosave pseudo-slot stamped.
func (c *Coordinator) Autosave(ctx context.Context, mutate func(*domain.Snapshot)) error {
	return c.Save(ctx, domain.AutosaveSlot, mutate)
}

// SetGameRunning flips the autosave gate. The ticker keeps firing
// either way; ticks are skipped while the gate is down, typically
// during menus, cutscenes, or pause.
func (c *Coordinator) SetGameRunning(running bool) {
	c.autosaveGate.Store(running)
}

// StartAutosave launches the background autosave loop. The loop runs
// until StopAutosave is called; starting twice is an error.
func (c *Coordinator) StartAutosave(ctx context.Context) error {
	if c.autosaveStop != nil {
		return domain.ErrSaveInFlight.WithDetails("autosave loop already running")
	}
	c.autosaveStop = make(chan struct{})
	c.autosaveDone = make(chan struct{})

	go c.autosaveLoop(ctx, c.autosaveStop, c.autosaveDone)
	c.log.Info("autosave loop started", "interval", c.cfg.AutosaveInterval)
	return nil
}

// StopAutosave stops the background loop and waits for it to exit.
func (c *Coordinator) StopAutosave() {
	if c.autosaveStop == nil {
		return
	}
	close(c.autosaveStop)
	<-c.autosaveDone
	c.autosaveStop = nil
	c.autosaveDone = nil
	c.log.Info("autosave loop stopped")
}

func (c *Coordinator) autosaveLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(c.cfg.AutosaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.autosaveGate.Load() {
				continue
			}
			if err := c.Autosave(ctx, nil); err != nil {
				// A busy autosave key means a manual save is in
				// flight; skip this tick rather than queueing.
				c.log.Warn("autosave tick failed", "error", err)
			}
		}
	}
}
