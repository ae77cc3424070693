package recovery

import (
	"encoding/json"
	"fmt"

	"github.com/elacour/granary/internal/core/domain"
)

// Migration rewrites a raw snapshot document from one version family to
// the next. Apply mutates doc in place; From matches on a major.minor
// prefix so patch releases within a family share one path.
type Migration struct {
	From  string
	To    string
	Apply func(doc map[string]any) error
}

// DefaultMigrations is the chain for known legacy formats, ordered
// oldest first.
func DefaultMigrations() []Migration {
	return []Migration{
		{
			From:  "0.9",
			To:    "1.0.0",
			Apply: migrate09To10,
		},
	}
}

// migrate09To10 lifts the 0.9.x layout to 1.0.0: the flat "world"
// section becomes "worldSubsystems", and player.money moves to
// inventory.gold.
func migrate09To10(doc map[string]any) error {
	if world, ok := doc["world"]; ok {
		doc["worldSubsystems"] = world
		delete(doc, "world")
	}

	player, _ := doc["player"].(map[string]any)
	if player == nil {
		return nil
	}
	money, ok := player["money"]
	if !ok {
		return nil
	}
	delete(player, "money")

	inv, _ := doc["inventory"].(map[string]any)
	if inv == nil {
		inv = make(map[string]any)
		doc["inventory"] = inv
	}
	if _, taken := inv["gold"]; !taken {
		inv["gold"] = money
	}
	return nil
}

// Migrate walks doc through the migration chain until it reaches
// domain.CurrentVersion. The document's original version string is
// returned so callers can stamp provenance metadata. Versions newer
// than the engine, or older ones with no chain entry, fail with
// domain.ErrMigrationNotPossible.
func Migrate(doc map[string]any, chain []Migration) (originalVersion string, err error) {
	version, _ := doc["version"].(string)
	if version == "" {
		return "", domain.ErrMigrationNotPossible.WithDetails("snapshot has no version field")
	}
	originalVersion = version

	if version == domain.CurrentVersion {
		return originalVersion, nil
	}

	major, minor, _, err := domain.ParseVersion(version)
	if err != nil {
		return originalVersion, domain.ErrMigrationNotPossible.WithCause(err)
	}
	engMajor, engMinor, _, _ := domain.ParseVersion(domain.CurrentVersion)
	if major > engMajor || (major == engMajor && minor > engMinor) {
		return originalVersion, domain.ErrMigrationNotPossible.WithDetails(
			fmt.Sprintf("snapshot version %s is newer than engine version %s", version, domain.CurrentVersion))
	}

	for version != domain.CurrentVersion {
		step, ok := findStep(chain, version)
		if !ok {
			return originalVersion, domain.ErrMigrationNotPossible.WithDetails(
				fmt.Sprintf("no migration path from version %s", version))
		}
		if err := step.Apply(doc); err != nil {
			return originalVersion, domain.ErrMigrationNotPossible.WithCause(err)
		}
		doc["version"] = step.To
		version = step.To
	}
	return originalVersion, nil
}

func findStep(chain []Migration, version string) (Migration, bool) {
	prefix := majorMinor(version)
	for _, m := range chain {
		if m.From == prefix {
			return m, true
		}
	}
	return Migration{}, false
}

func majorMinor(version string) string {
	dots := 0
	for i := 0; i < len(version); i++ {
		if version[i] == '.' {
			dots++
			if dots == 2 {
				return version[:i]
			}
		}
	}
	return version
}

// decodeDoc parses expanded snapshot JSON into a generic document for
// migration. Typed unmarshal would silently drop the legacy fields the
// chain needs to move.
func decodeDoc(raw []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// encodeDoc is the inverse of decodeDoc.
func encodeDoc(doc map[string]any) ([]byte, error) {
	return json.Marshal(doc)
}
