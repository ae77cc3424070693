package save

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/elacour/granary/internal/codec"
	"github.com/elacour/granary/internal/core/domain"
	"github.com/elacour/granary/internal/recovery"
	"github.com/elacour/granary/internal/storage"
	"github.com/elacour/granary/internal/storage/memory"
)

func newTestCoordinator(t *testing.T, capacity int64) (*Coordinator, *storage.Backend, *memory.Store) {
	t.Helper()
	store := memory.New()
	backend, err := storage.NewBackend(store, storage.BackendConfig{Capacity: capacity})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	cdc := codec.New(codec.WithCompression(true))
	engine := recovery.NewEngine(backend, cdc, recovery.Config{})
	c := NewCoordinator(backend, cdc, engine, Config{Slots: 5, AutosaveInterval: 10 * time.Millisecond})
	return c, backend, store
}

type fakeSubsystem struct {
	name   string
	state  json.RawMessage
	loaded json.RawMessage
	serErr error
}

func (f *fakeSubsystem) Name() string { return f.name }

func (f *fakeSubsystem) Serialize() (json.RawMessage, error) {
	return f.state, f.serErr
}

func (f *fakeSubsystem) Load(data json.RawMessage) error {
	f.loaded = data
	return nil
}

func TestBuildSnapshot(t *testing.T) {
	c, _, _ := newTestCoordinator(t, 0)
	c.Register(&fakeSubsystem{
		name:  "player",
		state: json.RawMessage(`{"name":"Lena","position":{"x":4,"y":2},"energy":75,"health":90}`),
	})
	c.Register(&fakeSubsystem{
		name:  "weather",
		state: json.RawMessage(`{"today":"rain","tomorrow":"sun"}`),
	})

	s, err := c.BuildSnapshot(2, nil)
	if err != nil {
		t.Fatalf("BuildSnapshot: %v", err)
	}
	if s.Version != domain.CurrentVersion || s.Timestamp == 0 {
		t.Fatalf("snapshot not stamped: version=%s timestamp=%d", s.Version, s.Timestamp)
	}
	if s.Metadata.SaveSlot != 2 {
		t.Fatalf("SaveSlot = %d, want 2", s.Metadata.SaveSlot)
	}
	if s.Player.Name != "Lena" || s.Player.Energy != 75 {
		t.Fatalf("player section not applied: %+v", s.Player)
	}
	if _, ok := s.WorldSubsystems["weather"]; !ok {
		t.Fatalf("weather subsystem not collected")
	}
	if s.Metadata.CharacterName != "Lena" {
		t.Fatalf("characterName not derived from player: %q", s.Metadata.CharacterName)
	}
	// Sections without a registered owner keep template defaults.
	if s.Inventory.Capacity != 36 {
		t.Fatalf("inventory should hold template defaults: %+v", s.Inventory)
	}
}

func TestBuildSnapshotMutateRunsLast(t *testing.T) {
	c, _, _ := newTestCoordinator(t, 0)
	s, err := c.BuildSnapshot(0, func(s *domain.Snapshot) {
		s.Metadata.FarmName = "Elderberry"
	})
	if err != nil {
		t.Fatalf("BuildSnapshot: %v", err)
	}
	if s.Metadata.FarmName != "Elderberry" {
		t.Fatalf("mutate not applied: %+v", s.Metadata)
	}
}

func TestApplySnapshotDispatch(t *testing.T) {
	c, _, _ := newTestCoordinator(t, 0)
	player := &fakeSubsystem{name: "player"}
	weather := &fakeSubsystem{name: "weather"}
	c.Register(player)
	c.Register(weather)

	s := domain.Default()
	s.Timestamp = time.Now().UnixMilli()
	s.Player.Name = "Mara"
	s.WorldSubsystems = map[string]json.RawMessage{
		"weather": json.RawMessage(`{"today":"storm"}`),
	}

	if err := c.ApplySnapshot(s); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	var p domain.Player
	if err := json.Unmarshal(player.loaded, &p); err != nil || p.Name != "Mara" {
		t.Fatalf("player dispatch wrong: %s (%v)", player.loaded, err)
	}
	if string(weather.loaded) != `{"today":"storm"}` {
		t.Fatalf("weather dispatch wrong: %s", weather.loaded)
	}
}

func TestApplySnapshotVersionGate(t *testing.T) {
	c, _, _ := newTestCoordinator(t, 0)

	s := domain.Default()
	s.Timestamp = time.Now().UnixMilli()
	s.Version = "2.0.0"
	if err := c.ApplySnapshot(s); !errors.Is(err, domain.ErrIncompatibleVersion) {
		t.Fatalf("major mismatch err = %v, want ErrIncompatibleVersion", err)
	}

	// Minor drift within the current major loads fine.
	s.Version = "1.1.0"
	if err := c.ApplySnapshot(s); err != nil {
		t.Fatalf("minor drift should load: %v", err)
	}

	if err := c.ApplySnapshot(nil); !errors.Is(err, domain.ErrInvalidSnapshot) {
		t.Fatalf("nil snapshot err = %v, want ErrInvalidSnapshot", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator(t, 0)

	err := c.Save(ctx, 1, func(s *domain.Snapshot) {
		s.Player.Name = "Lena"
		s.Inventory.Gold = 500
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := c.Load(ctx, 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Player.Name != "Lena" || got.Inventory.Gold != 500 {
		t.Fatalf("round trip lost data: %+v %+v", got.Player, got.Inventory)
	}
	if got.Metadata.SaveSlot != 1 {
		t.Fatalf("SaveSlot = %d, want 1", got.Metadata.SaveSlot)
	}
	if got.Metadata.Recovered {
		t.Fatalf("clean load wrongly marked recovered")
	}
}

func TestSaveKeepsPreviousAsBackup(t *testing.T) {
	ctx := context.Background()
	c, backend, _ := newTestCoordinator(t, 0)

	for _, gold := range []int{100, 200} {
		gold := gold
		if err := c.Save(ctx, 1, func(s *domain.Snapshot) { s.Inventory.Gold = gold }); err != nil {
			t.Fatalf("Save gold=%d: %v", gold, err)
		}
	}

	raw, err := backend.GetBackup(ctx, "slot1")
	if err != nil {
		t.Fatalf("GetBackup: %v", err)
	}
	prev, err := c.codec.Decode(raw)
	if err != nil {
		t.Fatalf("Decode backup: %v", err)
	}
	if prev.Inventory.Gold != 100 {
		t.Fatalf("backup gold = %d, want the previous generation (100)", prev.Inventory.Gold)
	}
}

func TestLoadMissingSlotReturnsDefaults(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator(t, 0)

	got, err := c.Load(ctx, 3)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.GameTime.Day != 1 || got.GameTime.Season != "spring" {
		t.Fatalf("missing slot should yield template defaults: %+v", got.GameTime)
	}
	if got.Metadata.Recovered {
		t.Fatalf("first run wrongly marked recovered")
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("first-run snapshot fails validation: %v", err)
	}
	// The loaded result must go straight back through ApplySnapshot.
	if err := c.ApplySnapshot(got); err != nil {
		t.Fatalf("ApplySnapshot of loaded defaults: %v", err)
	}
}

func TestLoadTruncatedFallsBackToBackup(t *testing.T) {
	ctx := context.Background()
	c, _, store := newTestCoordinator(t, 0)

	for _, gold := range []int{500, 750} {
		gold := gold
		if err := c.Save(ctx, 2, func(s *domain.Snapshot) { s.Inventory.Gold = gold }); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	// Truncate the primary mid-entry; the shadow backup stays whole.
	if !store.Corrupt(storage.DefaultKeyPrefix+"slot2", func(b []byte) []byte {
		return b[:len(b)/2]
	}) {
		t.Fatalf("Corrupt found no entry")
	}

	got, err := c.Load(ctx, 2)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Metadata.Recovered {
		t.Fatalf("restored snapshot not marked recovered")
	}
	if got.Inventory.Gold != 500 {
		t.Fatalf("gold = %d, want the backup generation (500), not defaults", got.Inventory.Gold)
	}
}

func TestLoadMigratesLegacySnapshot(t *testing.T) {
	ctx := context.Background()
	c, backend, _ := newTestCoordinator(t, 0)

	legacy := []byte(`{"version":"0.9.0","timestamp":1600000000000,` +
		`"gameTime":{"day":3,"season":"summer","year":1,"minutes":600},` +
		`"player":{"name":"Old Hand","position":{"x":1,"y":1},"energy":50,"health":50,"money":777},` +
		`"world":{"mines":{"level":40}},` +
		`"metadata":{"saveSlot":4}}`)
	if err := backend.Put(ctx, "slot4", legacy); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := c.Load(ctx, 4)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Metadata.Migrated || got.Metadata.OriginalVersion != "0.9.0" {
		t.Fatalf("migration metadata wrong: %+v", got.Metadata)
	}
	if got.Inventory.Gold != 777 {
		t.Fatalf("gold = %d, want migrated player.money", got.Inventory.Gold)
	}
	if _, ok := got.WorldSubsystems["mines"]; !ok {
		t.Fatalf("world section not carried over")
	}

	// The upgraded form was written back; the next load is clean.
	again, err := c.Load(ctx, 4)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if again.Version != domain.CurrentVersion || !again.Metadata.Migrated {
		t.Fatalf("write-back missing: version=%s metadata=%+v", again.Version, again.Metadata)
	}
}

func TestSaveQuotaRecoveryRetriesCompressed(t *testing.T) {
	ctx := context.Background()

	// Measure the two encodings first, then pick a capacity that only
	// admits the compressed form.
	cdc := codec.New()
	probe, err := cdc.Encode(domain.Default())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	compact, err := cdc.EncodeCompact(domain.Default())
	if err != nil {
		t.Fatalf("EncodeCompact: %v", err)
	}
	if len(compact) >= len(probe)-40 {
		t.Fatalf("compression too weak for this test: %d vs %d", len(compact), len(probe))
	}
	capacity := int64(len(compact) + 64)

	store := memory.New()
	backend, err := storage.NewBackend(store, storage.BackendConfig{Capacity: capacity})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	engine := recovery.NewEngine(backend, cdc, recovery.Config{})
	c := NewCoordinator(backend, cdc, engine, Config{Slots: 5})

	if err := c.Save(ctx, 0, nil); err != nil {
		t.Fatalf("Save should succeed via compressed retry: %v", err)
	}

	raw, err := backend.Get(ctx, "slot0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !codec.IsCompressed(raw) {
		t.Fatalf("stored payload is not compressed")
	}
}

func TestInFlightGuard(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator(t, 0)

	release, err := c.acquire("slot1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if err := c.Save(ctx, 1, nil); !errors.Is(err, domain.ErrSaveInFlight) {
		t.Fatalf("Save err = %v, want ErrSaveInFlight", err)
	}
	if _, err := c.Load(ctx, 1); !errors.Is(err, domain.ErrSaveInFlight) {
		t.Fatalf("Load err = %v, want ErrSaveInFlight", err)
	}

	release()
	if err := c.Save(ctx, 1, nil); err != nil {
		t.Fatalf("Save after release: %v", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c, backend, _ := newTestCoordinator(t, 0)

	if err := c.Save(ctx, 0, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := c.Delete(ctx, 0); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := backend.Get(ctx, "slot0"); !errors.Is(err, domain.ErrMissingData) {
		t.Fatalf("Get after delete err = %v, want ErrMissingData", err)
	}
	if err := c.Delete(ctx, 0); !errors.Is(err, domain.ErrMissingData) {
		t.Fatalf("double delete err = %v, want ErrMissingData", err)
	}
}

func TestListMetadataOnly(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator(t, 0)

	if err := c.Save(ctx, 0, func(s *domain.Snapshot) { s.Metadata.CharacterName = "Lena" }); err != nil {
		t.Fatalf("Save slot0: %v", err)
	}
	// Overwrite so a backup entry exists; it must not show up.
	if err := c.Save(ctx, 0, func(s *domain.Snapshot) { s.Metadata.CharacterName = "Lena" }); err != nil {
		t.Fatalf("Save slot0 again: %v", err)
	}
	if err := c.Save(ctx, 2, func(s *domain.Snapshot) { s.Metadata.CharacterName = "Mara" }); err != nil {
		t.Fatalf("Save slot2: %v", err)
	}
	if err := c.Autosave(ctx, nil); err != nil {
		t.Fatalf("Autosave: %v", err)
	}

	infos, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("List returned %d entries, want 3: %+v", len(infos), infos)
	}
	// Sorted by slot: autosave (-1) first.
	if infos[0].Slot != domain.AutosaveSlot || !infos[0].AutoSave {
		t.Fatalf("autosave entry wrong: %+v", infos[0])
	}
	if infos[1].CharacterName != "Lena" || infos[2].CharacterName != "Mara" {
		t.Fatalf("listing metadata wrong: %+v", infos)
	}
	for _, info := range infos {
		if info.Size == 0 || info.Timestamp == 0 || info.Version == "" {
			t.Fatalf("incomplete listing entry: %+v", info)
		}
	}
}

func TestInvalidSlot(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator(t, 0)

	for _, slot := range []int{-2, 5, 99} {
		if err := c.Save(ctx, slot, nil); !errors.Is(err, domain.ErrInvalidSlot) {
			t.Fatalf("Save(%d) err = %v, want ErrInvalidSlot", slot, err)
		}
		if _, err := c.Load(ctx, slot); !errors.Is(err, domain.ErrInvalidSlot) {
			t.Fatalf("Load(%d) err = %v, want ErrInvalidSlot", slot, err)
		}
	}
}
