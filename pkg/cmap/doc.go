// Package cmap provides a concurrent map implementation for Granary.
//
// This package implements a sharded concurrent map used for per-slot
// bookkeeping (save guards, subsystem registries) with the following
// features:
//
//   - Sharding: Configurable shard count for parallelism
//   - Fine-grained Locking: Per-shard RWMutex for minimal contention
//   - Iteration: Safe iteration while holding read locks
//
// Usage:
//
//	m := cmap.New[string, *atomic.Bool]()
//	guard, _ := m.GetOrSet("slot3", new(atomic.Bool))
//
// Thread Safety:
//
// All operations are thread-safe. Read operations (Get, Has) use RLock,
// write operations (Set, Delete) use Lock.
package cmap
