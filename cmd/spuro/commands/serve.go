package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/spuro/spuro/config"
	"github.com/spuro/spuro/db"
	"github.com/spuro/spuro/entity/storage"
	"github.com/spuro/spuro/entity/watch"
	"github.com/spuro/spuro/errors"
	"github.com/spuro/spuro/logger"
	"github.com/spuro/spuro/server"
)

// ServeCmd starts the Spuro server.
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the Spuro entity store server",
	Long: `Launch the Spuro server: HTTP entity API, attribute query endpoint,
and the WebSocket event stream. Runs until interrupted.`,
	RunE: runServe,
}

var (
	serveDBPath string
	servePort   int
	serveJSON   bool
)

func init() {
	ServeCmd.Flags().StringVar(&serveDBPath, "db-path", "", "Custom database path (overrides config)")
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
	ServeCmd.Flags().BoolVar(&serveJSON, "json-logs", false, "Emit structured JSON logs")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	if serveDBPath != "" {
		cfg.Database.Path = serveDBPath
	}
	if servePort != 0 {
		cfg.Server.Port = &servePort
	}

	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	if err := logger.InitializeWithLevel(serveJSON || cfg.Log.JSON, level); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	lg := logger.Logger

	database, err := db.Open(cfg.Database.Path, lg)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	if err := db.Migrate(database, lg); err != nil {
		return errors.Wrap(err, "failed to migrate database")
	}

	store := storage.NewSQLStore(database, lg)
	hub := watch.NewHub(lg)
	defer hub.Close()
	store.SetPublisher(hub)

	if interval, enabled := cfg.Sweep.Interval(); enabled {
		if interval == 0 {
			interval = storage.DefaultSweepInterval
		}
		sweeper := storage.NewSweeper(store, interval)
		sweeper.OnSweep = server.RecordSwept
		sweeper.Start()
		defer sweeper.Stop()
	} else {
		lg.Warnw("expiry sweeping disabled; expired entities stay on disk until re-enabled")
	}

	// Watch the user config for edits. Most settings need a restart; the
	// reload log line tells the operator the file was picked up.
	if userConfig := config.UserConfigPath(); userConfig != "" {
		if watcher, err := config.NewConfigWatcher(userConfig); err == nil {
			watcher.OnReload(func(updated *config.Config) error {
				lg.Infow("configuration reloaded", "path", userConfig)
				return nil
			})
			watcher.Start()
			config.SetGlobalWatcher(watcher)
			defer watcher.Stop()
		}
	}

	printStartupBanner(cfg)

	srv := server.New(cfg, database, store, hub, lg)
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		pterm.Info.Printf("Received %s, shutting down\n", sig)
		if err := srv.Stop(); err != nil {
			return errors.Wrap(err, "server shutdown")
		}
	case err := <-errChan:
		if err != nil {
			return errors.Wrap(err, "server failed")
		}
	}
	return nil
}

// printStartupBanner prints the user-friendly startup message.
func printStartupBanner(cfg *config.Config) {
	_ = pterm.DefaultBigText.WithLetters(pterm.NewLettersFromString("spuro")).Render()

	pterm.DefaultBox.WithTitle("Spuro").Println(fmt.Sprintf(
		"Version:  %s\nPort:     %d\nDatabase: %s",
		versionLine(), cfg.Server.EffectivePort(), cfg.Database.Path,
	))
	pterm.Info.Println("Press Ctrl+C to stop")
}
