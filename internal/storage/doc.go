// Package storage provides the quota-aware storage backend for Granary.
//
// The backend maps logical keys to bytes on top of a raw key/value
// medium (see KV), adding the guarantees the save coordinator relies
// on: envelope framing with checksums, quota accounting against a byte
// capacity, backup-before-overwrite shadows, and retention-aware
// cleanup of the oldest entries when space runs out.
package storage
