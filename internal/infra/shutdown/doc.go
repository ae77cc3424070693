// Package shutdown provides graceful shutdown for Granary.
//
// This package handles process termination signals:
//
//   - Signal handling (SIGINT, SIGTERM)
//   - Timeout-based forced shutdown
//   - Cleanup callback registration
//   - Shutdown coordination
//
// Usage:
//
//	h := shutdown.NewHandler(10 * time.Second)
//	h.OnShutdown("store", func(ctx context.Context) error { return store.Close() })
//	return h.Wait()
package shutdown
