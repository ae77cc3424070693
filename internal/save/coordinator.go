package save

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elacour/granary/internal/codec"
	"github.com/elacour/granary/internal/core/domain"
	"github.com/elacour/granary/internal/recovery"
	"github.com/elacour/granary/internal/storage"
	"github.com/elacour/granary/internal/telemetry/logger"
	"github.com/elacour/granary/internal/telemetry/metric"
	"github.com/elacour/granary/pkg/cmap"
)

// AutosaveKey is the logical storage name for autosave snapshots.
const AutosaveKey = "autosave"

// Default configuration values.
const (
	DefaultSlots            = 10
	DefaultAutosaveInterval = 5 * time.Minute
)

// Config configures the coordinator. Zero values take defaults.
type Config struct {
	// Slots is how many numbered save slots exist, 0..Slots-1.
	Slots int

	// AutosaveInterval is the autosave ticker period.
	AutosaveInterval time.Duration

	Logger  logger.Logger
	Metrics *metric.Registry
}

// SlotInfo is the metadata listing of one stored snapshot. Built from
// the snapshot head only; payload sections are never parsed.
type SlotInfo struct {
	Key           string `json:"key"`
	Slot          int    `json:"slot"`
	Version       string `json:"version"`
	Timestamp     int64  `json:"timestamp"`
	CharacterName string `json:"characterName,omitempty"`
	FarmName      string `json:"farmName,omitempty"`
	AutoSave      bool   `json:"autoSave,omitempty"`
	Recovered     bool   `json:"recovered,omitempty"`
	Migrated      bool   `json:"migrated,omitempty"`
	Size          int64  `json:"size"`
}

// snapshotHead is the metadata-only view used by List.
type snapshotHead struct {
	Version   string          `json:"version"`
	Timestamp int64           `json:"timestamp"`
	Metadata  domain.Metadata `json:"metadata"`
}

// Coordinator is the save engine's front door: it builds snapshots from
// registered subsystems, persists them through the backend, and routes
// every failure through the recovery engine.
type Coordinator struct {
	backend *storage.Backend
	codec   *codec.Codec
	engine  *recovery.Engine
	cfg     Config

	mu         sync.RWMutex
	subsystems map[string]Subsystem

	// guards holds one in-flight flag per storage key. A second
	// operation on a busy key is rejected, never queued.
	guards *cmap.Map[string, *atomic.Bool]

	log     logger.Logger
	metrics *metric.Registry

	autosaveGate atomic.Bool
	autosaveStop chan struct{}
	autosaveDone chan struct{}
}

// NewCoordinator wires a coordinator over the given backend, codec, and
// recovery engine.
func NewCoordinator(backend *storage.Backend, cdc *codec.Codec, engine *recovery.Engine, cfg Config) *Coordinator {
	if cfg.Slots <= 0 {
		cfg.Slots = DefaultSlots
	}
	if cfg.AutosaveInterval <= 0 {
		cfg.AutosaveInterval = DefaultAutosaveInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	return &Coordinator{
		backend:    backend,
		codec:      cdc,
		engine:     engine,
		cfg:        cfg,
		subsystems: make(map[string]Subsystem),
		guards:     cmap.New[string, *atomic.Bool](),
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// Register adds a subsystem to the registry, replacing any previous
// owner of the same section.
func (c *Coordinator) Register(sub Subsystem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subsystems[sub.Name()] = sub
}

// BuildSnapshot assembles a snapshot for a slot: template defaults,
// version and timestamp stamp, then each registered subsystem's
// serialized section. mutate, if non-nil, runs last so callers can
// adjust metadata before the snapshot is sealed.
func (c *Coordinator) BuildSnapshot(slot int, mutate func(*domain.Snapshot)) (*domain.Snapshot, error) {
	if err := c.checkSlot(slot); err != nil {
		return nil, err
	}

	s := domain.Default()
	s.Timestamp = time.Now().UnixMilli()
	s.Metadata.SaveSlot = slot
	s.Metadata.AutoSave = slot == domain.AutosaveSlot

	c.mu.RLock()
	subs := make([]Subsystem, 0, len(c.subsystems))
	for _, sub := range c.subsystems {
		subs = append(subs, sub)
	}
	c.mu.RUnlock()
	sort.Slice(subs, func(i, j int) bool { return subs[i].Name() < subs[j].Name() })

	for _, sub := range subs {
		data, err := sub.Serialize()
		if err != nil {
			return nil, fmt.Errorf("save: serialize section %s: %w", sub.Name(), err)
		}
		if err := setSection(s, sub.Name(), data); err != nil {
			return nil, err
		}
	}

	if mutate != nil {
		mutate(s)
	}
	if s.Metadata.CharacterName == "" {
		s.Metadata.CharacterName = s.Player.Name
	}
	return s, nil
}

// ApplySnapshot pushes a loaded snapshot back into the simulation:
// structural check, version gate, then synchronous dispatch of each
// section to its owning subsystem. Sections without a registered owner
// are skipped.
func (c *Coordinator) ApplySnapshot(s *domain.Snapshot) error {
	if s == nil {
		return domain.ErrInvalidSnapshot.WithDetails("snapshot is nil")
	}
	if err := c.checkVersion(s.Version); err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for name, sub := range c.subsystems {
		data, err := sectionData(s, name)
		if err != nil {
			return err
		}
		if data == nil {
			continue
		}
		if err := sub.Load(data); err != nil {
			return fmt.Errorf("save: load section %s: %w", name, err)
		}
	}
	return nil
}

// Save builds and persists a snapshot for a slot. A failed write is
// handed to the recovery engine and retried once, compressed if the
// engine suggests it; anything still failing surfaces as a typed error
// with remediation suggestions.
func (c *Coordinator) Save(ctx context.Context, slot int, mutate func(*domain.Snapshot)) error {
	key, err := c.slotKey(slot)
	if err != nil {
		return err
	}
	release, err := c.acquire(key)
	if err != nil {
		return err
	}
	defer release()

	s, err := c.BuildSnapshot(slot, mutate)
	if err != nil {
		return err
	}
	return c.persist(ctx, key, s)
}

// SaveSnapshot persists an already-built snapshot under its slot.
// Export/import and tests use it to bypass the subsystem registry.
func (c *Coordinator) SaveSnapshot(ctx context.Context, s *domain.Snapshot) error {
	if s == nil {
		return domain.ErrInvalidSnapshot.WithDetails("snapshot is nil")
	}
	key, err := c.slotKey(s.Metadata.SaveSlot)
	if err != nil {
		return err
	}
	release, err := c.acquire(key)
	if err != nil {
		return err
	}
	defer release()
	return c.persist(ctx, key, s)
}

func (c *Coordinator) persist(ctx context.Context, key string, s *domain.Snapshot) error {
	payload, err := c.codec.Encode(s)
	if err != nil {
		c.metrics.ObserveSave("error")
		return err
	}

	putErr := c.backend.Put(ctx, key, payload)
	if putErr == nil {
		c.log.Info("snapshot saved", "key", key, "bytes", len(payload))
		c.metrics.ObserveSave("ok")
		return nil
	}
	c.log.Warn("save failed, attempting recovery", "key", key, "error", putErr)

	out, err := c.engine.Recover(ctx, recovery.Failure{
		Op:       recovery.OpSave,
		Key:      key,
		Err:      putErr,
		Raw:      payload,
		Snapshot: s,
	})
	if err != nil {
		c.metrics.ObserveSave("error")
		return err
	}

	if out.Recovered() || out.CompressHint {
		retry := payload
		if out.CompressHint {
			if retry, err = c.codec.EncodeCompact(s); err != nil {
				c.metrics.ObserveSave("error")
				return err
			}
		}
		if err := c.backend.Put(ctx, key, retry); err == nil {
			c.log.Info("snapshot saved after recovery",
				"key", key, "strategy", out.Applied, "bytes", len(retry))
			c.metrics.ObserveSave("recovered")
			return nil
		}
	}

	c.metrics.ObserveSave("error")
	return &recovery.UnrecoverableError{Err: putErr, Kind: out.Kind, Suggestions: out.Suggestions}
}

// Load fetches and decodes the snapshot for a slot. Every failure
// escalates to the recovery engine; only unrecoverable outcomes
// propagate, carrying remediation suggestions.
func (c *Coordinator) Load(ctx context.Context, slot int) (*domain.Snapshot, error) {
	key, err := c.slotKey(slot)
	if err != nil {
		return nil, err
	}
	release, err := c.acquire(key)
	if err != nil {
		return nil, err
	}
	defer release()
	return c.fetch(ctx, key)
}

func (c *Coordinator) fetch(ctx context.Context, key string) (*domain.Snapshot, error) {
	raw, loadErr := c.backend.Get(ctx, key)
	if loadErr == nil {
		s, err := c.codec.Decode(raw)
		if err == nil {
			if err = c.checkVersion(s.Version); err == nil {
				if err = s.Validate(); err == nil {
					c.metrics.ObserveLoad("ok")
					return s, nil
				}
			}
		}
		loadErr = err
	}
	c.log.Warn("load failed, attempting recovery", "key", key, "error", loadErr)

	out, err := c.engine.Recover(ctx, recovery.Failure{
		Op:  recovery.OpLoad,
		Key: key,
		Err: loadErr,
		Raw: raw,
	})
	if err != nil {
		c.metrics.ObserveLoad("error")
		return nil, err
	}
	if out.Recovered() && out.Snapshot != nil {
		c.metrics.ObserveLoad("recovered")
		if out.Applied == recovery.StrategyMigration {
			// Persist the upgraded form so the next load is clean.
			// Best effort; the in-memory result stands either way.
			if data, err := c.codec.Encode(out.Snapshot); err == nil {
				if err := c.backend.Put(ctx, key, data); err != nil {
					c.log.Warn("migrated snapshot write-back failed", "key", key, "error", err)
				}
			}
		}
		return out.Snapshot, nil
	}

	c.metrics.ObserveLoad("error")
	return nil, &recovery.UnrecoverableError{Err: loadErr, Kind: out.Kind, Suggestions: out.Suggestions}
}

// Delete removes a slot's snapshot and its shadow backup.
func (c *Coordinator) Delete(ctx context.Context, slot int) error {
	key, err := c.slotKey(slot)
	if err != nil {
		return err
	}
	release, err := c.acquire(key)
	if err != nil {
		return err
	}
	defer release()
	return c.backend.Delete(ctx, key)
}

// List returns metadata for every stored snapshot, backups excluded.
// Only the snapshot head is parsed; entries whose head cannot be read
// are skipped with a warning rather than failing the whole listing.
func (c *Coordinator) List(ctx context.Context) ([]SlotInfo, error) {
	var infos []SlotInfo
	for _, entry := range c.backend.Entries() {
		if entry.Backup {
			continue
		}
		raw, err := c.backend.Get(ctx, entry.Name)
		if err != nil {
			c.log.Warn("skipping unreadable entry in listing", "key", entry.Name, "error", err)
			continue
		}
		plain, err := c.codec.Expand(raw)
		if err != nil {
			c.log.Warn("skipping unexpandable entry in listing", "key", entry.Name, "error", err)
			continue
		}
		var head snapshotHead
		if err := json.Unmarshal(plain, &head); err != nil {
			c.log.Warn("skipping unparseable entry in listing", "key", entry.Name, "error", err)
			continue
		}
		infos = append(infos, SlotInfo{
			Key:           entry.Name,
			Slot:          head.Metadata.SaveSlot,
			Version:       head.Version,
			Timestamp:     head.Timestamp,
			CharacterName: head.Metadata.CharacterName,
			FarmName:      head.Metadata.FarmName,
			AutoSave:      head.Metadata.AutoSave,
			Recovered:     head.Metadata.Recovered,
			Migrated:      head.Metadata.Migrated,
			Size:          entry.Size,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Slot < infos[j].Slot })
	return infos, nil
}

// Quota exposes the backend's byte budget.
func (c *Coordinator) Quota() storage.QuotaState { return c.backend.Quota() }

// ErrorHistory exposes the recovery engine's retained error records.
func (c *Coordinator) ErrorHistory() []recovery.ErrorRecord { return c.engine.Records() }

// checkSlot accepts numbered slots 0..Slots-1 and the autosave slot.
func (c *Coordinator) checkSlot(slot int) error {
	if slot == domain.AutosaveSlot {
		return nil
	}
	if slot < 0 || slot >= c.cfg.Slots {
		return domain.ErrInvalidSlot.WithDetails(
			fmt.Sprintf("slot %d outside 0..%d", slot, c.cfg.Slots-1))
	}
	return nil
}

func (c *Coordinator) slotKey(slot int) (string, error) {
	if err := c.checkSlot(slot); err != nil {
		return "", err
	}
	if slot == domain.AutosaveSlot {
		return AutosaveKey, nil
	}
	return "slot" + strconv.Itoa(slot), nil
}

// checkVersion gates on major version. Minor and patch drift within the
// current major loads fine and is only logged.
func (c *Coordinator) checkVersion(version string) error {
	major, _, _, err := domain.ParseVersion(version)
	if err != nil {
		return domain.ErrInvalidSnapshot.WithCause(err)
	}
	engMajor, _, _, _ := domain.ParseVersion(domain.CurrentVersion)
	if major != engMajor {
		return domain.ErrIncompatibleVersion.WithDetails(
			fmt.Sprintf("snapshot version %s, engine version %s", version, domain.CurrentVersion))
	}
	if version != domain.CurrentVersion {
		c.log.Warn("snapshot version drift within current major",
			"snapshot_version", version, "engine_version", domain.CurrentVersion)
	}
	return nil
}

func (c *Coordinator) acquire(key string) (func(), error) {
	guard, _ := c.guards.GetOrSet(key, new(atomic.Bool))
	if !guard.CompareAndSwap(false, true) {
		return nil, domain.ErrSaveInFlight.WithDetails(key)
	}
	return func() { guard.Store(false) }, nil
}

// setSection routes a serialized section into the snapshot: fixed
// sections land in their typed fields, everything else travels opaque
// under worldSubsystems.
func setSection(s *domain.Snapshot, name string, data json.RawMessage) error {
	var dst any
	switch name {
	case "gameTime":
		dst = &s.GameTime
	case "player":
		dst = &s.Player
	case "inventory":
		dst = &s.Inventory
	case "settings":
		dst = &s.Settings
	default:
		if s.WorldSubsystems == nil {
			s.WorldSubsystems = make(map[string]json.RawMessage)
		}
		s.WorldSubsystems[name] = data
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("save: section %s: %w", name, err)
	}
	return nil
}

// sectionData is the inverse routing for dispatch: it returns the bytes
// a subsystem should load, or nil when the snapshot has nothing for it.
func sectionData(s *domain.Snapshot, name string) (json.RawMessage, error) {
	var src any
	switch name {
	case "gameTime":
		src = s.GameTime
	case "player":
		src = s.Player
	case "inventory":
		src = s.Inventory
	case "settings":
		src = s.Settings
	default:
		return s.WorldSubsystems[name], nil
	}
	data, err := json.Marshal(src)
	if err != nil {
		return nil, fmt.Errorf("save: section %s: %w", name, err)
	}
	return data, nil
}
