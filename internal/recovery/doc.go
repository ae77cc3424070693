// Package recovery turns raw persistence failures into classified
// error records and, where possible, usable snapshots.
//
// Every failure entering the engine is classified into a fixed taxonomy
// (corruption, quota, permission, version, absence, malformed bytes,
// medium unavailability) and answered with a bounded strategy: backup
// restore, partial salvage, structural repair, cleanup-and-retry,
// schema migration, or default reconstruction. Non-recoverable kinds
// surface with remediation suggestions instead. A process-lifetime
// attempt ceiling keeps repeated failures from looping forever, and a
// bounded ring of error records feeds diagnostics.
package recovery
