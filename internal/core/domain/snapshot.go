package domain

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// CurrentVersion is the schema version stamped on every new Snapshot.
const CurrentVersion = "1.0.0"

// AutosaveSlot is the pseudo-slot identifier used for autosave snapshots.
const AutosaveSlot = -1

// GameTime is the simulation clock state.
type GameTime struct {
	// Day is the day of the current season, starting at 1.
	Day int `json:"day"`

	// Season is one of "spring", "summer", "fall", "winter".
	Season string `json:"season"`

	// Year is the in-game year, starting at 1.
	Year int `json:"year"`

	// Minutes is the time of day in minutes since midnight.
	Minutes int `json:"minutes"`
}

// Position is a 2D world coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Player is the persisted player state.
type Player struct {
	Name     string   `json:"name"`
	Position Position `json:"position"`
	Energy   int      `json:"energy"`
	Health   int      `json:"health"`
}

// Item is a single inventory stack.
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Quality  int    `json:"quality,omitempty"`
}

// Inventory is the persisted inventory state.
type Inventory struct {
	Gold     int    `json:"gold"`
	Capacity int    `json:"capacity"`
	Items    []Item `json:"items"`
}

// Settings holds player-facing options that travel with the save.
type Settings struct {
	MusicVolume float64 `json:"musicVolume"`
	SoundVolume float64 `json:"soundVolume"`
	TextSpeed   string  `json:"textSpeed"`
}

// Metadata describes a Snapshot without touching its payload sections.
type Metadata struct {
	// SaveSlot is the slot this snapshot was written to.
	// AutosaveSlot (-1) marks autosave snapshots.
	SaveSlot int `json:"saveSlot"`

	CharacterName string `json:"characterName,omitempty"`
	FarmName      string `json:"farmName,omitempty"`

	// AutoSave marks snapshots produced by the autosave timer.
	AutoSave bool `json:"autoSave,omitempty"`

	// Recovered marks snapshots produced by a recovery strategy
	// (backup restore or partial salvage) rather than a clean load.
	Recovered bool `json:"recovered,omitempty"`

	// Migrated marks snapshots upgraded from an older schema version.
	Migrated bool `json:"migrated,omitempty"`

	// OriginalVersion is the pre-migration schema version.
	OriginalVersion string `json:"originalVersion,omitempty"`
}

// Snapshot is a complete, versioned serialization of the simulation state.
//
// The fixed sections (gameTime, player, inventory, settings) are typed;
// everything else the simulation wants persisted travels as opaque
// payloads in WorldSubsystems, keyed by subsystem name.
type Snapshot struct {
	// Version is the schema version, semantic ("major.minor.patch").
	Version string `json:"version"`

	// Timestamp is the creation instant in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`

	GameTime  GameTime  `json:"gameTime"`
	Player    Player    `json:"player"`
	Inventory Inventory `json:"inventory"`

	// WorldSubsystems maps subsystem name to its opaque serialized state.
	WorldSubsystems map[string]json.RawMessage `json:"worldSubsystems"`

	Settings Settings `json:"settings"`
	Metadata Metadata `json:"metadata"`
}

// SectionNames lists the top-level payload sections of a Snapshot,
// in canonical order. Used by partial salvage and restore dispatch.
var SectionNames = []string{
	"gameTime",
	"player",
	"inventory",
	"worldSubsystems",
	"settings",
	"metadata",
}

// Default returns a fresh Snapshot template with sane defaults for
// every section. Version is stamped, Timestamp is left at zero until
// the snapshot is actually built.
func Default() *Snapshot {
	return &Snapshot{
		Version: CurrentVersion,
		GameTime: GameTime{
			Day:     1,
			Season:  "spring",
			Year:    1,
			Minutes: 6 * 60,
		},
		Player: Player{
			Name:   "Player",
			Energy: 100,
			Health: 100,
		},
		Inventory: Inventory{
			Gold:     0,
			Capacity: 36,
			Items:    []Item{},
		},
		WorldSubsystems: map[string]json.RawMessage{},
		Settings: Settings{
			MusicVolume: 0.7,
			SoundVolume: 0.8,
			TextSpeed:   "normal",
		},
	}
}

// Validate checks the structural invariant: version and timestamp
// must always be present. A snapshot missing either is invalid.
func (s *Snapshot) Validate() error {
	if s == nil {
		return ErrInvalidSnapshot.WithDetails("snapshot is nil")
	}
	if s.Version == "" {
		return ErrInvalidSnapshot.WithDetails("missing version")
	}
	if _, _, _, err := ParseVersion(s.Version); err != nil {
		return ErrInvalidSnapshot.WithDetails(fmt.Sprintf("bad version %q", s.Version))
	}
	if s.Timestamp <= 0 {
		return ErrInvalidSnapshot.WithDetails("missing timestamp")
	}
	return nil
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	if s.Inventory.Items != nil {
		c.Inventory.Items = make([]Item, len(s.Inventory.Items))
		copy(c.Inventory.Items, s.Inventory.Items)
	}
	if s.WorldSubsystems != nil {
		c.WorldSubsystems = make(map[string]json.RawMessage, len(s.WorldSubsystems))
		for k, v := range s.WorldSubsystems {
			raw := make(json.RawMessage, len(v))
			copy(raw, v)
			c.WorldSubsystems[k] = raw
		}
	}
	return &c
}

// ParseVersion splits a semantic version string into its components.
func ParseVersion(version string) (major, minor, patch int, err error) {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("domain: bad semver %q", version)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, convErr := strconv.Atoi(p)
		if convErr != nil || n < 0 {
			return 0, 0, 0, fmt.Errorf("domain: bad semver %q", version)
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}

// MajorVersion returns the major component of a semantic version.
func MajorVersion(version string) (int, error) {
	major, _, _, err := ParseVersion(version)
	return major, err
}

// NewExportID returns a ULID for export blobs and error records.
// Lowercase, consistent with the rest of the system's identifiers.
func NewExportID() string {
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String())
}
