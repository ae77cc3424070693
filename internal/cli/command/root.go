package command

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/elacour/granary/internal/codec"
	"github.com/elacour/granary/internal/config"
	"github.com/elacour/granary/internal/core/domain"
	"github.com/elacour/granary/internal/infra/buildinfo"
	"github.com/elacour/granary/internal/infra/confloader"
	"github.com/elacour/granary/internal/recovery"
	"github.com/elacour/granary/internal/save"
	"github.com/elacour/granary/internal/storage"
	"github.com/elacour/granary/internal/storage/memory"
	"github.com/elacour/granary/internal/telemetry/logger"
	"github.com/elacour/granary/internal/telemetry/metric"
)

// App creates the CLI application.
func App() *cli.App {
	app := &cli.App{
		Name:    "granary",
		Usage:   "Game save store management tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			SaveCommand(),
			LoadCommand(),
			ListCommand(),
			DeleteCommand(),
			ExportCommand(),
			ImportCommand(),
			ErrorsCommand(),
			QuotaCommand(),
			ShellCommand(),
			RunCommand(),
		},
	}

	return app
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Configuration file path",
			EnvVars: []string{"GRANARY_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "Data directory for the badger medium",
		},
		&cli.StringFlag{
			Name:    "medium",
			Aliases: []string{"m"},
			Usage:   "Storage medium: memory, badger",
		},
		&cli.Int64Flag{
			Name:  "capacity",
			Usage: "Storage byte budget (0 = unlimited)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable verbose output",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Config   string
	DataDir  string
	Medium   string
	Capacity int64

	// Output format
	Output string // table, json, yaml
	Wide   bool

	Verbose bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Config:   c.String("config"),
		DataDir:  c.String("data-dir"),
		Medium:   c.String("medium"),
		Capacity: c.Int64("capacity"),
		Output:   c.String("output"),
		Wide:     c.Bool("wide"),
		Verbose:  c.Bool("verbose"),
	}
}

// resolveConfig loads defaults, file, env, and flag overrides in
// ascending priority and verifies the result.
func resolveConfig(c *cli.Context) (*config.GranaryConfig, error) {
	cfg := config.Default()

	loader := confloader.NewLoader(confloader.WithConfigFile(c.String("config")))
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	flags := ParseGlobalFlags(c)
	if flags.DataDir != "" {
		cfg.Storage.DataDir = flags.DataDir
	}
	if flags.Medium != "" {
		cfg.Storage.Medium = flags.Medium
	}
	if c.IsSet("capacity") {
		cfg.Storage.CapacityBytes = flags.Capacity
	}
	if flags.Verbose {
		cfg.Log.Level = "debug"
		cfg.Log.Format = "text"
	}

	if err := config.Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// stack is the assembled engine a command operates on.
type stack struct {
	Coordinator *save.Coordinator
	Metrics     *metric.Registry
}

// setup builds the engine stack from the resolved configuration. The
// returned teardown closes the storage medium.
func setup(c *cli.Context) (*stack, func(), error) {
	cfg, err := resolveConfig(c)
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, nil, err
	}
	logger.SetDefault(log)

	metrics := metric.NewRegistry(nil)

	var kv storage.KV
	switch cfg.Storage.Medium {
	case "memory":
		kv = memory.New()
	default:
		kv, err = storage.NewBadgerKV(storage.BadgerConfig{Dir: cfg.Storage.DataDir}, log)
		if err != nil {
			return nil, nil, err
		}
	}

	backendCfg := storage.DefaultBackendConfig()
	backendCfg.Capacity = cfg.Storage.CapacityBytes
	backendCfg.ProtectedPerFamily = cfg.Storage.ProtectedPerFamily
	backendCfg.Logger = log
	backendCfg.Metrics = metrics
	backend, err := storage.NewBackend(kv, backendCfg)
	if err != nil {
		kv.Close()
		return nil, nil, err
	}

	cdc := codec.New(codec.WithCompression(cfg.Codec.Compression))
	engine := recovery.NewEngine(backend, cdc, recovery.Config{
		MaxAttempts: cfg.Recovery.MaxAttempts,
		RingSize:    cfg.Recovery.RingSize,
		Logger:      log,
		Metrics:     metrics,
	})
	coordinator := save.NewCoordinator(backend, cdc, engine, save.Config{
		Slots:            cfg.Storage.MaxSlots,
		AutosaveInterval: cfg.Autosave.Interval,
		Logger:           log,
		Metrics:          metrics,
	})

	teardown := func() {
		if err := kv.Close(); err != nil {
			log.Warn("closing storage medium", "error", err)
		}
	}
	return &stack{Coordinator: coordinator, Metrics: metrics}, teardown, nil
}

// parseSlot reads a slot argument: a number, or "autosave".
func parseSlot(arg string) (int, error) {
	if arg == "" {
		return 0, fmt.Errorf("slot required")
	}
	if arg == save.AutosaveKey {
		return domain.AutosaveSlot, nil
	}
	slot, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid slot %q", arg)
	}
	return slot, nil
}

// PrintError prints an error message to stderr. Recovery suggestions
// attached to the error are listed under it.
func PrintError(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	var unrec *recovery.UnrecoverableError
	if errors.As(err, &unrec) {
		for _, s := range unrec.Suggestions {
			fmt.Fprintf(os.Stderr, "  hint: %s\n", s)
		}
	}
}
