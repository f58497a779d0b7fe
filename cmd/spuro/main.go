package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spuro/spuro/cmd/spuro/commands"
	"github.com/spuro/spuro/logger"
)

var rootCmd = &cobra.Command{
	Use:   "spuro",
	Short: "Spuro - key-addressable entity store",
	Long: `Spuro - a key-addressable store for expiring, owned, attributed entities.

Every entity carries an opaque payload, typed attributes, an owner with
exclusive mutation rights, and a TTL after which it silently disappears.
Attribute queries, multi-key ordering, and live change notification are
built in.

Available commands:
  serve    - Start the Spuro server
  create   - Store a new entity
  get      - Fetch an entity by key
  update   - Modify an entity you own
  rm       - Delete an entity you own
  transfer - Hand an entity to a new owner
  query    - Filter entities by attribute expression
  watch    - Stream live entity lifecycle events
  shell    - Interactive query shell
  db       - Database statistics and maintenance
  config   - Show and edit configuration
  version  - Show version information

Examples:
  spuro serve                                  # Start the server
  spuro create --ttl 1h --attr role=worker     # Store an entity
  spuro query 'role = "worker"' --order name:string
  spuro watch --kinds created,deleted          # Follow live events`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("server", "", "Server base URL (overrides config)")
	rootCmd.PersistentFlags().String("caller", "", "Caller identity for mutations (overrides config)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.CreateCmd)
	rootCmd.AddCommand(commands.GetCmd)
	rootCmd.AddCommand(commands.UpdateCmd)
	rootCmd.AddCommand(commands.RmCmd)
	rootCmd.AddCommand(commands.TransferCmd)
	rootCmd.AddCommand(commands.QueryCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.ShellCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
