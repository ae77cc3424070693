package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Hook releases one resource during shutdown. The context carries the
// shutdown deadline.
type Hook func(context.Context) error

type entry struct {
	name string
	hook Hook
}

// Handler runs registered hooks when the process receives SIGINT or
// SIGTERM. Hooks run newest first, so resources unwind in the reverse
// of the order they were acquired.
type Handler struct {
	timeout time.Duration

	mu      sync.Mutex
	entries []entry

	trigger chan struct{}
	once    sync.Once
	done    chan struct{}
}

// NewHandler builds a handler whose hooks share the given timeout.
func NewHandler(timeout time.Duration) *Handler {
	return &Handler{
		timeout: timeout,
		trigger: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// OnShutdown registers a named hook. The name prefixes the hook's
// error when it fails.
func (h *Handler) OnShutdown(name string, hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry{name: name, hook: hook})
}

// Trigger starts shutdown without waiting for a signal. Safe to call
// more than once.
func (h *Handler) Trigger() {
	h.once.Do(func() { close(h.trigger) })
}

// Wait blocks until SIGINT, SIGTERM, or Trigger, then runs the hooks
// newest first. Every hook runs even when an earlier one fails; the
// failures come back joined.
func (h *Handler) Wait() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
	case <-h.trigger:
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	entries := make([]entry, len(h.entries))
	copy(entries, h.entries)
	h.mu.Unlock()

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		if err := entries[i].hook(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entries[i].name, err))
		}
	}

	close(h.done)
	return errors.Join(errs...)
}

// Done returns a channel that closes once the hooks have finished.
func (h *Handler) Done() <-chan struct{} { return h.done }
