package commands

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/spuro/spuro/config"
	"github.com/spuro/spuro/db"
	"github.com/spuro/spuro/entity/storage"
	"github.com/spuro/spuro/errors"
)

// DbCmd groups local database operations. These open the database file
// directly; the server does not need to be running.
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the Spuro database",
	Long: `Database statistics and maintenance against the local database file.

Examples:
  spuro db stats    # Occupancy: live, expired-pending-sweep, tombstones
  spuro db sweep    # Reclaim expired entities now`,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database occupancy statistics",
	RunE:  runDbStats,
}

var dbSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reclaim expired entities now",
	Long: `Run one expiry sweep pass immediately. Expired entities are already
invisible to reads; sweeping reclaims their storage and tombstones their keys.`,
	RunE: runDbSweep,
}

func init() {
	DbCmd.AddCommand(dbStatsCmd)
	DbCmd.AddCommand(dbSweepCmd)
}

func openStore() (*storage.SQLStore, func(), error) {
	path, err := config.DatabasePath()
	if err != nil {
		return nil, nil, errors.Wrap(err, "resolve database path")
	}
	database, err := db.Open(path, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open database")
	}
	if err := db.Migrate(database, nil); err != nil {
		database.Close()
		return nil, nil, errors.Wrap(err, "failed to migrate database")
	}
	return storage.NewSQLStore(database, nil), func() { database.Close() }, nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	stats, err := store.Stats(context.Background())
	if err != nil {
		return err
	}

	path, _ := config.DatabasePath()
	fmt.Printf("Database: %s\n\n", path)
	rows := [][]string{
		{"Live entities", fmt.Sprintf("%d", stats.Live)},
		{"Expired, pending sweep", fmt.Sprintf("%d", stats.ExpiredPendingSweep)},
		{"Tombstoned keys", fmt.Sprintf("%d", stats.Tombstones)},
	}
	return pterm.DefaultTable.WithData(rows).Render()
}

func runDbSweep(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	swept, err := store.SweepExpired(context.Background())
	if err != nil {
		return err
	}
	pterm.Success.Printf("Reclaimed %d expired entit%s\n", swept, pluralYies(swept))
	return nil
}

func pluralYies(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
