package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spuro/spuro/entity"
)

// GetCmd fetches one entity by key.
var GetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Fetch an entity by key",
	Long: `Fetch one entity by its key. Reads are public; no caller identity
is required.

Examples:
  spuro get 0xabc...             # Formatted output
  spuro get 0xabc... --json      # Raw JSON
  spuro get 0xabc... --payload   # Payload bytes only, to stdout
  spuro get 0xabc... --exists    # Exit 0 if present, 1 if not`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

var (
	getJSON    bool
	getPayload bool
	getExists  bool
)

func init() {
	GetCmd.Flags().BoolVar(&getJSON, "json", false, "Output entity as JSON")
	GetCmd.Flags().BoolVar(&getPayload, "payload", false, "Write only the payload bytes to stdout")
	GetCmd.Flags().BoolVar(&getExists, "exists", false, "Check existence only")
}

func runGet(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	key := entity.Key(args[0])
	ctx := context.Background()

	if getExists {
		ok, err := c.Exists(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("not found")
			os.Exit(1)
		}
		fmt.Println("found")
		return nil
	}

	if getPayload {
		body, _, err := c.GetPayload(ctx, key)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(body)
		return err
	}

	e, err := c.Get(ctx, key)
	if err != nil {
		return err
	}

	if getJSON {
		out, err := json.MarshalIndent(e, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	printEntity(e, true)
	return nil
}
