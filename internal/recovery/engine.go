package recovery

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/elacour/granary/internal/codec"
	"github.com/elacour/granary/internal/core/domain"
	"github.com/elacour/granary/internal/storage"
	"github.com/elacour/granary/internal/telemetry/logger"
	"github.com/elacour/granary/internal/telemetry/metric"
)

// Strategy names the recovery path an outcome took.
type Strategy string

const (
	StrategyBackupRestore  Strategy = "backup_restore"
	StrategyPartialSalvage Strategy = "partial_salvage"
	StrategyCleanupRetry   Strategy = "cleanup_retry"
	StrategyMigration      Strategy = "migration"
	StrategyDefaults       Strategy = "default_reconstruction"
	StrategyRepair         Strategy = "structural_repair"
)

// DefaultMaxAttempts bounds recovery attempts per AttemptWindow. The
// limit keeps a persistently failing medium from looping save/recover
// cycles forever.
const DefaultMaxAttempts = 5

// DefaultAttemptWindow is the refill period for the attempt limiter.
const DefaultAttemptWindow = time.Minute

// DefaultMaxTotal bounds recovery attempts over the whole process
// lifetime. The window limiter paces retries; this caps them outright.
const DefaultMaxTotal = 25

// Failure describes what went wrong and what the caller was holding
// when it did.
type Failure struct {
	Op  Op
	Key string
	Err error
	// Raw is the stored payload, when the failure happened after a
	// read. Nil on write-side failures.
	Raw []byte
	// Snapshot is the payload being written, when the failure happened
	// on a save. Nil on read-side failures.
	Snapshot *domain.Snapshot
}

// Outcome reports what recovery produced.
type Outcome struct {
	// Applied is the strategy that produced Snapshot; empty when no
	// strategy succeeded.
	Applied  Strategy
	Kind     Kind
	Snapshot *domain.Snapshot
	// CompressHint tells save callers to retry with forced compression.
	CompressHint bool
	Suggestions  []string
}

// Recovered reports whether the outcome carries a usable result.
func (o *Outcome) Recovered() bool { return o != nil && o.Applied != "" }

// UnrecoverableError wraps a failure the engine could not resolve,
// carrying the classification and user-facing suggestions.
type UnrecoverableError struct {
	Err         error
	Kind        Kind
	Suggestions []string
}

func (e *UnrecoverableError) Error() string {
	return fmt.Sprintf("unrecoverable %s failure: %v", e.Kind, e.Err)
}

func (e *UnrecoverableError) Unwrap() error { return e.Err }

// Config tunes the recovery engine. Zero values take defaults.
type Config struct {
	MaxAttempts   int
	AttemptWindow time.Duration
	// MaxTotal is the process-lifetime attempt ceiling.
	MaxTotal int
	RingSize int
	Migrations    []Migration
	// Defaults builds the snapshot used for reconstruction and as the
	// salvage base. Defaults to domain.Default.
	Defaults func() *domain.Snapshot
	Logger   logger.Logger
	Metrics  *metric.Registry
}

// Engine applies tiered recovery strategies to classified failures and
// records every attempt for diagnostics.
type Engine struct {
	backend    *storage.Backend
	codec      *codec.Codec
	limiter    *rate.Limiter
	attempts   atomic.Int64
	maxTotal   int64
	ring       *Ring
	migrations []Migration
	defaults   func() *domain.Snapshot
	log        logger.Logger
	metrics    *metric.Registry
}

// NewEngine wires an engine over the given backend and codec.
func NewEngine(backend *storage.Backend, cdc *codec.Codec, cfg Config) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.AttemptWindow <= 0 {
		cfg.AttemptWindow = DefaultAttemptWindow
	}
	if cfg.MaxTotal <= 0 {
		cfg.MaxTotal = DefaultMaxTotal
	}
	if cfg.Migrations == nil {
		cfg.Migrations = DefaultMigrations()
	}
	if cfg.Defaults == nil {
		cfg.Defaults = domain.Default
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	return &Engine{
		backend:    backend,
		codec:      cdc,
		limiter:    rate.NewLimiter(rate.Every(cfg.AttemptWindow/time.Duration(cfg.MaxAttempts)), cfg.MaxAttempts),
		maxTotal:   int64(cfg.MaxTotal),
		ring:       NewRing(cfg.RingSize),
		migrations: cfg.Migrations,
		defaults:   cfg.Defaults,
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// Records exposes the retained error records, oldest first.
func (e *Engine) Records() []ErrorRecord { return e.ring.Records() }

// ResetRecords discards the retained error records.
func (e *Engine) ResetRecords() { e.ring.Reset() }

// Recover classifies the failure, records it, and runs the strategy
// tier for its kind. A nil error with o.Recovered() false means the
// failure was understood but could not be resolved; Suggestions say
// what the user can do. ErrRecoveryExhausted is returned when the
// attempt limiter is dry or the lifetime ceiling is hit.
func (e *Engine) Recover(ctx context.Context, f Failure) (*Outcome, error) {
	// Raw bytes may still be in compressed form; strategies and the
	// repairability check both want expanded JSON.
	raw := e.expand(f.Raw)

	class := Classify(f.Err, raw)
	e.record(f, class)
	e.metrics.ObserveError(string(class.Kind))

	if !class.Recoverable {
		e.log.Warn("failure is not recoverable", "kind", class.Kind, "key", f.Key, "error", f.Err)
		return &Outcome{Kind: class.Kind, Suggestions: suggestionsFor(class.Kind)}, nil
	}

	if e.attempts.Add(1) > e.maxTotal {
		e.log.Error("lifetime recovery ceiling reached", "key", f.Key, "kind", class.Kind)
		return nil, domain.ErrRecoveryExhausted.WithDetails(f.Key)
	}
	if !e.limiter.Allow() {
		e.log.Error("recovery attempt limit reached", "key", f.Key, "kind", class.Kind)
		return nil, domain.ErrRecoveryExhausted.WithDetails(f.Key)
	}

	var out *Outcome
	switch class.Kind {
	case KindCorruption:
		out = e.recoverCorruption(ctx, f, raw)
	case KindInvalidFormat:
		out = e.recoverInvalidFormat(ctx, f, raw)
	case KindVersionMismatch:
		out = e.recoverVersionMismatch(f, raw)
	case KindMissingData:
		out = e.reconstruct(f, false)
	case KindQuotaExceeded:
		out = e.recoverQuota(ctx, f)
	default:
		out = &Outcome{Suggestions: suggestionsFor(class.Kind)}
	}
	out.Kind = class.Kind

	// Snapshots rebuilt from the defaults template, and repaired
	// documents that never carried a timestamp, leave Timestamp zero.
	// Stamp it here: every result handed back must pass Validate.
	if out.Snapshot != nil && out.Snapshot.Timestamp <= 0 {
		out.Snapshot.Timestamp = time.Now().UnixMilli()
	}

	if out.Recovered() {
		e.log.Info("recovery succeeded",
			"key", f.Key, "kind", class.Kind, "strategy", out.Applied)
		e.metrics.ObserveRecovery(string(out.Applied))
	} else {
		e.log.Warn("recovery failed", "key", f.Key, "kind", class.Kind)
	}
	return out, nil
}

// recoverCorruption tries the backup copy first, then partial salvage
// of the corrupt bytes, then full reconstruction. Every result is
// tagged recovered.
func (e *Engine) recoverCorruption(ctx context.Context, f Failure, raw []byte) *Outcome {
	if s := e.loadBackup(ctx, f.Key); s != nil {
		return &Outcome{Applied: StrategyBackupRestore, Snapshot: s}
	}
	if out := e.salvage(raw); out != nil {
		return out
	}
	return e.reconstruct(f, true)
}

// recoverInvalidFormat restores the backup when one exists; a complete
// previous generation beats a structurally repaired guess at the
// current one. With no backup it repairs the document and re-decodes,
// with salvage and reconstruction behind that.
func (e *Engine) recoverInvalidFormat(ctx context.Context, f Failure, raw []byte) *Outcome {
	if s := e.loadBackup(ctx, f.Key); s != nil {
		return &Outcome{Applied: StrategyBackupRestore, Snapshot: s}
	}
	if repaired := Repair(raw); repaired != nil {
		if s, err := e.codec.Decode(repaired); err == nil {
			s.Metadata.Recovered = true
			return &Outcome{Applied: StrategyRepair, Snapshot: s}
		}
	}
	return e.recoverCorruption(ctx, f, raw)
}

// recoverVersionMismatch runs the migration chain over the raw
// document. Typed decoding would drop the legacy fields migrations
// move, so the chain works on generic JSON.
func (e *Engine) recoverVersionMismatch(f Failure, raw []byte) *Outcome {
	doc, err := decodeDoc(raw)
	if err != nil {
		return &Outcome{Suggestions: suggestionsFor(KindVersionMismatch)}
	}
	original, err := Migrate(doc, e.migrations)
	if err != nil {
		e.log.Warn("migration not possible", "key", f.Key, "error", err)
		return &Outcome{Suggestions: suggestionsFor(KindVersionMismatch)}
	}
	migrated, err := encodeDoc(doc)
	if err != nil {
		return &Outcome{Suggestions: suggestionsFor(KindVersionMismatch)}
	}
	s, err := e.codec.Decode(migrated)
	if err != nil {
		return &Outcome{Suggestions: suggestionsFor(KindVersionMismatch)}
	}
	s.Metadata.Migrated = true
	s.Metadata.OriginalVersion = original
	return &Outcome{Applied: StrategyMigration, Snapshot: s}
}

// recoverQuota frees space and asks the caller to retry compressed.
func (e *Engine) recoverQuota(ctx context.Context, f Failure) *Outcome {
	freed, err := e.backend.CleanupOldest(ctx, e.cleanupTarget(f))
	if err != nil || freed == 0 {
		e.log.Warn("quota cleanup freed nothing", "key", f.Key, "error", err)
		return &Outcome{CompressHint: true, Suggestions: suggestionsFor(KindQuotaExceeded)}
	}
	e.log.Info("quota cleanup freed space", "key", f.Key, "freed_bytes", freed)
	return &Outcome{Applied: StrategyCleanupRetry, CompressHint: true}
}

func (e *Engine) cleanupTarget(f Failure) int64 {
	quota := e.backend.Quota()
	target := quota.Capacity / 5
	if need := int64(len(f.Raw)); need > target {
		target = need
	}
	return target
}

func (e *Engine) loadBackup(ctx context.Context, key string) *domain.Snapshot {
	raw, err := e.backend.GetBackup(ctx, key)
	if err != nil {
		return nil
	}
	s, err := e.codec.Decode(raw)
	if err != nil {
		return nil
	}
	s.Metadata.Recovered = true
	return s
}

func (e *Engine) salvage(raw []byte) *Outcome {
	if len(raw) == 0 {
		return nil
	}
	s, sections := Salvage(raw, e.defaults())
	if sections == 0 {
		return nil
	}
	s.Metadata.Recovered = true
	return &Outcome{Applied: StrategyPartialSalvage, Snapshot: s}
}

// reconstruct hands back fresh defaults. Missing data is a normal first
// run and goes untagged; anything else replaced real data and is
// marked recovered.
func (e *Engine) reconstruct(f Failure, tag bool) *Outcome {
	s := e.defaults()
	s.Metadata.Recovered = tag
	return &Outcome{Applied: StrategyDefaults, Snapshot: s}
}

func (e *Engine) expand(raw []byte) []byte {
	if len(raw) == 0 {
		return raw
	}
	expanded, err := e.codec.Expand(raw)
	if err != nil {
		return raw
	}
	return expanded
}

func (e *Engine) record(f Failure, class Classification) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	e.ring.Append(ErrorRecord{
		Op:          f.Op,
		Key:         f.Key,
		Kind:        class.Kind,
		Severity:    class.Severity,
		Recoverable: class.Recoverable,
		Message:     msg,
	})
}

func suggestionsFor(kind Kind) []string {
	switch kind {
	case KindQuotaExceeded:
		return []string{
			"delete unused save slots to free space",
			"enable compression to shrink future saves",
		}
	case KindPermissionDenied:
		return []string{
			"check storage permissions for the save directory",
			"try a different storage medium",
		}
	case KindStorageUnavailable:
		return []string{
			"verify the storage medium is mounted and writable",
			"retry after restarting the application",
		}
	case KindVersionMismatch:
		return []string{
			"update the application to a version that reads this save",
			"export the save and import it after upgrading",
		}
	case KindCorruption, KindInvalidFormat:
		return []string{
			"restore from an exported save if one exists",
			"a fresh save will be created if recovery fails",
		}
	default:
		return []string{"retry the operation", "report the error if it persists"}
	}
}
