package benchmark

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/elacour/granary/internal/core/domain"
)

// ItemCounts defines the inventory sizes for benchmarking.
var ItemCounts = []int{10, 100, 1000, 10000}

// SmallItemCounts for quick benchmarks.
var SmallItemCounts = []int{10, 100, 1000}

// newSnapshot builds a snapshot carrying items inventory entries and
// a handful of opaque world sections.
func newSnapshot(items int) *domain.Snapshot {
	s := domain.Default()
	s.Timestamp = time.Now().UnixMilli()
	s.Player.Name = "Benchmark"
	s.Metadata.CharacterName = "Benchmark"

	s.Inventory.Items = make([]domain.Item, items)
	for i := range s.Inventory.Items {
		s.Inventory.Items[i] = domain.Item{
			ID:       fmt.Sprintf("item-%06d", i),
			Name:     fmt.Sprintf("Parsnip Seeds %d", i),
			Quantity: i%99 + 1,
			Quality:  i % 4,
		}
	}

	s.WorldSubsystems = map[string]json.RawMessage{
		"npcs":    json.RawMessage(`{"friendship":{"Lewis":250,"Robin":750,"Marnie":500}}`),
		"mines":   json.RawMessage(`{"deepestLevel":55,"elevatorUnlocked":true}`),
		"weather": json.RawMessage(`{"today":"sunny","tomorrow":"rain"}`),
	}
	return s
}
