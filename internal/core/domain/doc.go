// Package domain defines the core domain models for Granary.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling. The central type is
// Snapshot, the versioned point-in-time serialization of the
// simulation state that every other package moves around.
package domain
