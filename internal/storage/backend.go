package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/elacour/granary/internal/core/domain"
	"github.com/elacour/granary/internal/telemetry/logger"
	"github.com/elacour/granary/internal/telemetry/metric"
)

// BackupSuffix is appended to a logical name to form its shadow backup
// entry. Get never falls back to the backup on its own; callers that
// want the previous value ask for it explicitly.
const BackupSuffix = "_backup"

// probeName is the reserved name used by the construction-time probe.
const probeName = "__probe"

// Default configuration values.
const (
	DefaultKeyPrefix             = "granary_"
	DefaultProtectedPerFamily    = 3
	DefaultCleanupTargetFraction = 0.20
)

// ErrMediumFull is returned by a KV medium that enforces its own hard
// capacity. The backend surfaces it as a quota failure.
var ErrMediumFull = errors.New("storage: medium at capacity")

// QuotaState is the backend's byte budget at a point in time.
type QuotaState struct {
	Used     int64 `json:"used"`
	Capacity int64 `json:"capacity"`
}

// WouldExceed reports whether writing delta more bytes would blow the
// capacity. An unlimited backend (Capacity 0) never exceeds.
func (q QuotaState) WouldExceed(delta int64) bool {
	return q.Capacity > 0 && q.Used+delta > q.Capacity
}

// Free returns the remaining byte budget, or -1 when unlimited.
func (q QuotaState) Free() int64 {
	if q.Capacity <= 0 {
		return -1
	}
	return q.Capacity - q.Used
}

// EntryInfo describes one stored entry without touching its payload.
type EntryInfo struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Timestamp int64  `json:"timestamp"`
	Backup    bool   `json:"backup"`
}

// BackendConfig configures the Backend.
type BackendConfig struct {
	// KeyPrefix namespaces every key in the underlying medium.
	KeyPrefix string

	// Capacity is the byte budget. Zero means unlimited.
	Capacity int64

	// ProtectedPerFamily is how many of the most recent entries per
	// slot family cleanup must never delete.
	ProtectedPerFamily int

	// CleanupTargetFraction is the share of capacity a cleanup pass
	// tries to leave free.
	CleanupTargetFraction float64

	// Logger is the structured logger.
	Logger logger.Logger

	// Metrics is the optional metrics registry.
	Metrics *metric.Registry
}

// DefaultBackendConfig returns the default backend configuration.
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		KeyPrefix:             DefaultKeyPrefix,
		ProtectedPerFamily:    DefaultProtectedPerFamily,
		CleanupTargetFraction: DefaultCleanupTargetFraction,
	}
}

type entryMeta struct {
	size int64
	ts   int64
}

// Backend is the quota-aware storage layer between the coordinator and
// a raw KV medium.
type Backend struct {
	kv  KV
	cfg BackendConfig

	mu      sync.Mutex
	entries map[string]entryMeta // logical name -> meta
	used    int64

	logger  logger.Logger
	metrics *metric.Registry
}

// NewBackend wraps a KV medium. It probes the medium once with a
// write/read/delete cycle; a failed probe surfaces as StorageUnavailable
// so callers learn about an inoperative medium at construction, not on
// the first save.
func NewBackend(kv KV, cfg BackendConfig) (*Backend, error) {
	if kv == nil {
		return nil, fmt.Errorf("storage: kv medium is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.ProtectedPerFamily == 0 {
		cfg.ProtectedPerFamily = DefaultProtectedPerFamily
	}
	if cfg.CleanupTargetFraction <= 0 || cfg.CleanupTargetFraction >= 1 {
		cfg.CleanupTargetFraction = DefaultCleanupTargetFraction
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	b := &Backend{
		kv:      kv,
		cfg:     cfg,
		entries: make(map[string]entryMeta),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}

	ctx := context.Background()
	if err := b.probe(ctx); err != nil {
		return nil, err
	}
	if err := b.rebuildAccounting(ctx); err != nil {
		return nil, err
	}

	b.publishQuota()
	return b, nil
}

// probe verifies the medium accepts writes and deletes.
func (b *Backend) probe(ctx context.Context) error {
	key := b.cfg.KeyPrefix + probeName
	if err := b.kv.Put(ctx, key, []byte("ok")); err != nil {
		return mapMediumErr(err)
	}
	if _, err := b.kv.Get(ctx, key); err != nil {
		return mapMediumErr(err)
	}
	if err := b.kv.Delete(ctx, key); err != nil {
		return mapMediumErr(err)
	}
	return nil
}

// rebuildAccounting scans the medium to reconstruct quota state.
// Entries with unreadable envelopes keep timestamp zero so cleanup
// treats them as oldest.
func (b *Backend) rebuildAccounting(ctx context.Context) error {
	keys, err := b.kv.Keys(ctx)
	if err != nil {
		return mapMediumErr(err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, key := range keys {
		if !strings.HasPrefix(key, b.cfg.KeyPrefix) {
			continue
		}
		name := strings.TrimPrefix(key, b.cfg.KeyPrefix)
		if name == probeName {
			continue
		}
		raw, err := b.kv.Get(ctx, key)
		if err != nil {
			continue
		}
		b.entries[name] = entryMeta{size: int64(len(raw)), ts: entryTimestamp(raw)}
		b.used += int64(len(raw))
	}
	return nil
}

// Quota returns the current quota state.
func (b *Backend) Quota() QuotaState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return QuotaState{Used: b.used, Capacity: b.cfg.Capacity}
}

// Entries lists stored entries (metadata only), sorted by name.
func (b *Backend) Entries() []EntryInfo {
	b.mu.Lock()
	defer b.mu.Unlock()

	infos := make([]EntryInfo, 0, len(b.entries))
	for name, meta := range b.entries {
		infos = append(infos, EntryInfo{
			Name:      name,
			Size:      meta.size,
			Timestamp: meta.ts,
			Backup:    strings.HasSuffix(name, BackupSuffix),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Put writes a payload under a logical name. The existing value, if
// any, is copied to the shadow backup first. If the projected usage
// would exceed capacity, one cleanup pass runs and the write is retried
// once before failing with QuotaExceeded.
func (b *Backend) Put(ctx context.Context, name string, payload []byte) error {
	framed := wrapEntry(time.Now().UnixMilli(), payload)

	b.mu.Lock()
	defer b.mu.Unlock()

	existing, err := b.kv.Get(ctx, b.cfg.KeyPrefix+name)
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		return mapMediumErr(err)
	}

	if b.projectedLocked(name, framed, existing) > b.cfg.Capacity && b.cfg.Capacity > 0 {
		target := int64(float64(b.cfg.Capacity) * b.cfg.CleanupTargetFraction)
		freed, cleanErr := b.cleanupOldestLocked(ctx, target, name)
		if cleanErr != nil {
			return cleanErr
		}
		b.logger.Info("storage cleanup freed space",
			"freed_bytes", freed,
			"target_bytes", target)

		if b.projectedLocked(name, framed, existing) > b.cfg.Capacity {
			return domain.ErrQuotaExceeded.WithDetails(fmt.Sprintf(
				"need %d bytes, %d free of %d", len(framed), b.freeLocked(), b.cfg.Capacity))
		}
	}

	backupName := name + BackupSuffix
	if existing != nil {
		if err := b.kv.Put(ctx, b.cfg.KeyPrefix+backupName, existing); err != nil {
			return mapMediumErr(err)
		}
		b.accountLocked(backupName, entryMeta{size: int64(len(existing)), ts: entryTimestamp(existing)})
	}

	if err := b.kv.Put(ctx, b.cfg.KeyPrefix+name, framed); err != nil {
		return mapMediumErr(err)
	}
	b.accountLocked(name, entryMeta{size: int64(len(framed)), ts: entryTimestamp(framed)})

	b.publishQuota()
	return nil
}

// Get retrieves the payload stored under a logical name. On corruption
// the best-effort payload bytes are returned alongside the error so the
// recovery engine can attempt partial salvage.
func (b *Backend) Get(ctx context.Context, name string) ([]byte, error) {
	raw, err := b.kv.Get(ctx, b.cfg.KeyPrefix+name)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, domain.ErrMissingData.WithDetails(name)
		}
		return nil, mapMediumErr(err)
	}

	_, payload, err := unwrapEntry(raw)
	if err != nil {
		return payload, domain.ErrCorruption.WithDetails(name).WithCause(err)
	}
	return payload, nil
}

// GetBackup retrieves the shadow backup for a logical name.
func (b *Backend) GetBackup(ctx context.Context, name string) ([]byte, error) {
	return b.Get(ctx, name+BackupSuffix)
}

// Delete removes a logical name and its shadow backup together.
func (b *Backend) Delete(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.entries[name]; !ok {
		return domain.ErrMissingData.WithDetails(name)
	}
	return b.deletePairLocked(ctx, name)
}

// CleanupOldest deletes the oldest non-protected entries until at least
// targetFreeBytes of capacity is free or candidates run out. The most
// recent ProtectedPerFamily entries of every slot family survive.
func (b *Backend) CleanupOldest(ctx context.Context, targetFreeBytes int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cleanupOldestLocked(ctx, targetFreeBytes, "")
}

// projectedLocked computes usage after writing framed under name,
// including the shadow copy the overwrite will create.
func (b *Backend) projectedLocked(name string, framed, existing []byte) int64 {
	projected := b.used + int64(len(framed)) - b.entries[name].size
	if existing != nil {
		projected += int64(len(existing)) - b.entries[name+BackupSuffix].size
	}
	return projected
}

func (b *Backend) freeLocked() int64 {
	if b.cfg.Capacity <= 0 {
		return -1
	}
	return b.cfg.Capacity - b.used
}

func (b *Backend) accountLocked(name string, meta entryMeta) {
	b.used += meta.size - b.entries[name].size
	b.entries[name] = meta
}

func (b *Backend) deletePairLocked(ctx context.Context, name string) error {
	if err := b.kv.Delete(ctx, b.cfg.KeyPrefix+name); err != nil {
		return mapMediumErr(err)
	}
	b.used -= b.entries[name].size
	delete(b.entries, name)

	backupName := name + BackupSuffix
	if _, ok := b.entries[backupName]; ok {
		if err := b.kv.Delete(ctx, b.cfg.KeyPrefix+backupName); err != nil {
			return mapMediumErr(err)
		}
		b.used -= b.entries[backupName].size
		delete(b.entries, backupName)
	}

	b.publishQuota()
	return nil
}

// cleanupOldestLocked deletes candidate entry pairs, oldest embedded
// timestamp first. The entry named exclude (the one about to be
// rewritten) and the freshest ProtectedPerFamily per family are kept.
func (b *Backend) cleanupOldestLocked(ctx context.Context, targetFreeBytes int64, exclude string) (int64, error) {
	if b.cfg.Capacity <= 0 {
		return 0, nil
	}

	type candidate struct {
		name string
		ts   int64
	}

	byFamily := make(map[string][]candidate)
	for name, meta := range b.entries {
		if strings.HasSuffix(name, BackupSuffix) {
			continue // backups go with their primaries
		}
		fam := familyOf(name)
		byFamily[fam] = append(byFamily[fam], candidate{name: name, ts: meta.ts})
	}

	protected := make(map[string]bool)
	var candidates []candidate
	for _, members := range byFamily {
		sort.Slice(members, func(i, j int) bool { return members[i].ts > members[j].ts })
		for i, m := range members {
			if i < b.cfg.ProtectedPerFamily {
				protected[m.name] = true
				continue
			}
			candidates = append(candidates, m)
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ts < candidates[j].ts })

	var freed int64
	evicted := 0
	for _, c := range candidates {
		if b.freeLocked() >= targetFreeBytes {
			break
		}
		if protected[c.name] || c.name == exclude {
			continue
		}
		before := b.used
		if err := b.deletePairLocked(ctx, c.name); err != nil {
			return freed, err
		}
		freed += before - b.used
		evicted++
		b.logger.Warn("storage cleanup evicted entry", "name", c.name, "age_ms", time.Now().UnixMilli()-c.ts)
	}

	if evicted > 0 {
		b.metrics.AddCleanupEvictions(evicted)
	}
	return freed, nil
}

func (b *Backend) publishQuota() {
	b.metrics.SetQuota(float64(b.used), float64(b.cfg.Capacity))
}

// familyOf maps a logical name to its slot family: trailing digits are
// stripped so slot0..slotN share one family while autosave keeps its own.
func familyOf(name string) string {
	return strings.TrimRight(name, "0123456789")
}

// mapMediumErr converts raw medium failures into the domain taxonomy.
func mapMediumErr(err error) error {
	switch {
	case errors.Is(err, ErrMediumFull):
		return domain.ErrQuotaExceeded.WithCause(err)
	case errors.Is(err, os.ErrPermission):
		return domain.ErrPermissionDenied.WithCause(err)
	case errors.Is(err, ErrClosed):
		return domain.ErrStorageUnavailable.WithCause(err)
	default:
		return domain.ErrStorageUnavailable.WithCause(err)
	}
}
