package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/elacour/granary/internal/telemetry/logger"
)

// BadgerConfig contains tuning parameters for the Badger medium.
type BadgerConfig struct {
	// Dir is the storage directory.
	Dir string

	// GCInterval is the interval between value-log GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// SyncWrites enables fsync after each write. Saves are rare and
	// precious, so this defaults to true.
	SyncWrites bool
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:         dir,
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
		SyncWrites:  true,
	}
}

// BadgerKV implements KV on an embedded Badger database. It is the
// durable on-disk medium for desktop builds.
type BadgerKV struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger logger.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewBadgerKV opens (or creates) a Badger-backed medium.
func NewBadgerKV(cfg BadgerConfig, log logger.Logger) (*BadgerKV, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("storage: badger dir is required")
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 10 * time.Minute
	}
	if cfg.GCThreshold <= 0 {
		cfg.GCThreshold = 0.5
	}
	if log == nil {
		log = logger.Default()
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = &badgerLogger{logger: log.With("component", "badger")}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open badger: %w", err)
	}

	kv := &BadgerKV{
		db:     db,
		cfg:    cfg,
		logger: log,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go kv.gcLoop()

	log.Info("badger medium opened", "dir", cfg.Dir, "sync_writes", cfg.SyncWrites)
	return kv, nil
}

// Put stores a value.
func (k *BadgerKV) Put(_ context.Context, key string, value []byte) error {
	err := k.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	return err
}

// Get retrieves a value by key.
func (k *BadgerKV) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, ErrKeyNotFound
	case errors.Is(err, badger.ErrDBClosed):
		return nil, ErrClosed
	case err != nil:
		return nil, err
	}
	return value, nil
}

// Delete removes a key. Absent keys are ignored.
func (k *BadgerKV) Delete(_ context.Context, key string) error {
	err := k.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	return err
}

// Keys lists all keys currently stored.
func (k *BadgerKV) Keys(_ context.Context) ([]string, error) {
	var keys []string
	err := k.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return nil, ErrClosed
	}
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Close stops the GC loop and closes the database.
func (k *BadgerKV) Close() error {
	close(k.stopCh)
	<-k.doneCh
	return k.db.Close()
}

// gcLoop runs periodic value-log garbage collection.
func (k *BadgerKV) gcLoop() {
	defer close(k.doneCh)

	ticker := time.NewTicker(k.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// ErrNoRewrite just means there was nothing to collect.
			if err := k.db.RunValueLogGC(k.cfg.GCThreshold); err != nil &&
				!errors.Is(err, badger.ErrNoRewrite) {
				k.logger.Warn("badger gc failed", "error", err)
			}
		case <-k.stopCh:
			return
		}
	}
}

// badgerLogger adapts Badger's logger interface to the engine logger.
type badgerLogger struct {
	logger logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
