package commands

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/spuro/spuro/entity"
)

// RmCmd deletes a caller-owned entity.
var RmCmd = &cobra.Command{
	Use:     "rm <key>",
	Aliases: []string{"delete"},
	Short:   "Delete an entity you own",
	Long: `Delete an entity the caller owns. The key is never reassigned;
subsequent lookups report not found.`,
	Args: cobra.ExactArgs(1),
	RunE: runRm,
}

func runRm(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	key := entity.Key(args[0])
	if err := c.Delete(context.Background(), key); err != nil {
		return err
	}
	pterm.Success.Printf("Deleted %s\n", key)
	return nil
}
