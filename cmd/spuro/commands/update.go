package commands

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/spuro/spuro/client"
	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/internal/util"
)

// UpdateCmd modifies fields of a caller-owned entity.
var UpdateCmd = &cobra.Command{
	Use:   "update <key>",
	Short: "Modify an entity you own",
	Long: `Apply partial updates to an entity the caller owns. Only the named
fields change; --attr replaces the whole attribute map, and --ttl restarts
the lifetime from now.

Examples:
  spuro update 0xabc... --ttl 2h                  # Extend lifetime
  spuro update 0xabc... --payload "new contents"
  spuro update 0xabc... --attr role=manager       # Replaces all attributes`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

var (
	updateTTL         time.Duration
	updatePayload     string
	updateContentType string
	updateAttrs       []string
)

func init() {
	UpdateCmd.Flags().DurationVar(&updateTTL, "ttl", 0, "Restart lifetime from now (e.g. 30s, 1h)")
	UpdateCmd.Flags().StringVar(&updatePayload, "payload", "", "Replace payload")
	UpdateCmd.Flags().StringVar(&updateContentType, "content-type", "", "Replace content type")
	UpdateCmd.Flags().StringArrayVar(&updateAttrs, "attr", nil, "Replace attributes with name=value set (repeatable)")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}

	var req client.UpdateRequest
	if cmd.Flags().Changed("payload") {
		payload := []byte(updatePayload)
		req.Payload = &payload
	}
	if cmd.Flags().Changed("content-type") {
		req.ContentType = &updateContentType
	}
	if cmd.Flags().Changed("attr") {
		attrs, err := parseAttrs(updateAttrs)
		if err != nil {
			return err
		}
		req.Attributes = &attrs
	}
	if cmd.Flags().Changed("ttl") {
		req.TTLSeconds = util.Ptr(int64(updateTTL / time.Second))
	}

	key := entity.Key(args[0])
	if err := c.Update(context.Background(), key, req); err != nil {
		return err
	}
	pterm.Success.Printf("Updated %s\n", key)
	return nil
}
