package command

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/elacour/granary/internal/config"
	"github.com/elacour/granary/internal/infra/confloader"
	"github.com/elacour/granary/internal/infra/shutdown"
	"github.com/elacour/granary/internal/telemetry/logger"
	"github.com/elacour/granary/internal/telemetry/metric"
)

const shutdownTimeout = 10 * time.Second

// RunCommand creates the run command. It keeps the engine alive with
// the autosave loop running until SIGINT or SIGTERM.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the engine with periodic autosave until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address (empty = disabled)",
			},
		},
		Action: func(c *cli.Context) error {
			eng, teardown, err := setup(c)
			if err != nil {
				return err
			}
			defer teardown()

			log := logger.Default()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			eng.Coordinator.SetGameRunning(true)
			if err := eng.Coordinator.StartAutosave(ctx); err != nil {
				return err
			}

			handler := shutdown.NewHandler(shutdownTimeout)
			handler.OnShutdown("autosave", func(context.Context) error {
				eng.Coordinator.StopAutosave()
				return nil
			})

			if path := c.String("config"); path != "" {
				watcher, err := watchConfig(path, log)
				if err != nil {
					return err
				}
				handler.OnShutdown("config watcher", func(context.Context) error {
					return watcher.Stop()
				})
			}

			if addr := c.String("metrics-addr"); addr != "" {
				srv := serveMetrics(addr, eng.Metrics, log)
				handler.OnShutdown("metrics server", srv.Shutdown)
			}

			log.Info("engine running", "autosave", true)
			fmt.Println("granary running, Ctrl+C to stop")
			return handler.Wait()
		},
	}
}

// serveMetrics exposes the Prometheus registry on addr.
func serveMetrics(addr string, metrics *metric.Registry, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

// watchConfig reloads the configuration file on change and applies the
// settings that can move at runtime. Only the log level is hot today.
func watchConfig(path string, log logger.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(path); err != nil {
		return nil, err
	}

	watcher.OnChange(func(changed string) {
		cfg := config.Default()
		loader := confloader.NewLoader(confloader.WithConfigFile(changed))
		if err := loader.Load(cfg); err != nil {
			log.Warn("config reload failed", "path", changed, "error", err)
			return
		}
		if err := config.Verify(cfg); err != nil {
			log.Warn("config reload rejected", "path", changed, "error", err)
			return
		}
		logger.SetLevel(cfg.Log.Level)
		log.Info("config reloaded", "path", changed, "log_level", cfg.Log.Level)
	})

	watcher.StartAsync()
	return watcher, nil
}
