package save

import "encoding/json"

// Subsystem is a simulation collaborator that owns one snapshot
// section. Fixed sections (gameTime, player, inventory, settings) are
// dispatched into the snapshot's typed fields; any other name travels
// as an opaque payload under worldSubsystems.
//
// Absent subsystems are not an error: building falls back to the
// template defaults for their section, and loading skips the dispatch.
type Subsystem interface {
	// Name is the section this subsystem owns.
	Name() string

	// Serialize returns the subsystem's current state as JSON.
	Serialize() (json.RawMessage, error)

	// Load restores the subsystem's state from a snapshot section.
	Load(data json.RawMessage) error
}
