package config

import "time"

// GranaryConfig is the root configuration for the save engine.
type GranaryConfig struct {
	Storage  StorageSection  `koanf:"storage"`
	Autosave AutosaveSection `koanf:"autosave"`
	Codec    CodecSection    `koanf:"codec"`
	Recovery RecoverySection `koanf:"recovery"`
	Log      LogSection      `koanf:"log"`
}

// StorageSection configures the storage medium and its quota.
type StorageSection struct {
	// Medium selects the KV backing: "memory" or "badger".
	Medium string `koanf:"medium"`

	// DataDir is the on-disk location for the badger medium.
	DataDir string `koanf:"data_dir"`

	// CapacityBytes is the byte budget. Zero means unlimited.
	CapacityBytes int64 `koanf:"capacity_bytes"`

	// MaxSlots is how many numbered save slots exist.
	MaxSlots int `koanf:"max_slots"`

	// ProtectedPerFamily is how many of the most recent entries per
	// slot family quota cleanup must never delete.
	ProtectedPerFamily int `koanf:"protected_per_family"`
}

// AutosaveSection configures the background autosave loop.
type AutosaveSection struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

// CodecSection configures snapshot serialization.
type CodecSection struct {
	// Compression enables key-substitution compression on encode.
	Compression bool `koanf:"compression"`
}

// RecoverySection configures the recovery engine.
type RecoverySection struct {
	// MaxAttempts bounds recovery attempts per minute.
	MaxAttempts int `koanf:"max_attempts"`

	// RingSize is how many error records diagnostics retain.
	RingSize int `koanf:"ring_size"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
