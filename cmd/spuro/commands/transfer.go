package commands

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/spuro/spuro/entity"
)

// TransferCmd hands a caller-owned entity to a new owner.
var TransferCmd = &cobra.Command{
	Use:   "transfer <key> <new-owner>",
	Short: "Hand an entity to a new owner",
	Long: `Transfer ownership of an entity the caller owns. The handoff is
atomic: the moment it commits, the previous owner loses all mutation
rights and the new owner gains them.`,
	Args: cobra.ExactArgs(2),
	RunE: runTransfer,
}

func runTransfer(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	key := entity.Key(args[0])
	newOwner := entity.Owner(args[1])
	if err := c.Transfer(context.Background(), key, newOwner); err != nil {
		return err
	}
	pterm.Success.Printf("Transferred %s to %s\n", key, newOwner)
	return nil
}
