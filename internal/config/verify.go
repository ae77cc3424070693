package config

import (
	"errors"
	"fmt"
	"os"
)

// Verify validates the configuration.
func Verify(cfg *GranaryConfig) error {
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyAutosave(&cfg.Autosave); err != nil {
		return err
	}
	if err := verifyRecovery(&cfg.Recovery); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Medium {
	case "memory":
	case "badger":
		if cfg.DataDir == "" {
			return errors.New("storage.data_dir is required for the badger medium")
		}
		if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
			return errors.New("cannot create data directory: " + err.Error())
		}
	default:
		return fmt.Errorf("storage.medium %q is not one of memory, badger", cfg.Medium)
	}

	if cfg.CapacityBytes < 0 {
		return errors.New("storage.capacity_bytes must not be negative")
	}
	if cfg.MaxSlots < 1 {
		return errors.New("storage.max_slots must be at least 1")
	}
	if cfg.ProtectedPerFamily < 1 {
		return errors.New("storage.protected_per_family must be at least 1")
	}
	return nil
}

func verifyAutosave(cfg *AutosaveSection) error {
	if cfg.Enabled && cfg.Interval <= 0 {
		return errors.New("autosave.interval must be positive when autosave is enabled")
	}
	return nil
}

func verifyRecovery(cfg *RecoverySection) error {
	if cfg.MaxAttempts < 1 {
		return errors.New("recovery.max_attempts must be at least 1")
	}
	if cfg.RingSize < 1 {
		return errors.New("recovery.ring_size must be at least 1")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch cfg.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q is not one of json, text", cfg.Format)
	}
	return nil
}
