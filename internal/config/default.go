package config

import "time"

// Default configuration values.
const (
	DefaultMedium             = "badger"
	DefaultDataDir            = "/var/lib/granary/data"
	DefaultMaxSlots           = 10
	DefaultProtectedPerFamily = 3

	DefaultAutosaveInterval = 5 * time.Minute

	DefaultMaxAttempts = 5
	DefaultRingSize    = 100

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default engine configuration.
func Default() *GranaryConfig {
	return &GranaryConfig{
		Storage: StorageSection{
			Medium:             DefaultMedium,
			DataDir:            DefaultDataDir,
			MaxSlots:           DefaultMaxSlots,
			ProtectedPerFamily: DefaultProtectedPerFamily,
		},
		Autosave: AutosaveSection{
			Enabled:  true,
			Interval: DefaultAutosaveInterval,
		},
		Codec: CodecSection{
			Compression: true,
		},
		Recovery: RecoverySection{
			MaxAttempts: DefaultMaxAttempts,
			RingSize:    DefaultRingSize,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
