// Package command provides CLI command definitions for granary.
//
// Commands operate on a local save store:
//
//   - save, load, delete: slot operations
//   - list: metadata listing of stored snapshots
//   - export, import: transfer snapshots between installations
//   - errors: recovery diagnostics ring
//   - quota: storage budget state
//   - shell: interactive session
//   - run: autosave loop until interrupted
package command
