package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/spuro/spuro/errors"
)

// CreateCmd stores a new entity owned by the caller.
var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Store a new entity",
	Long: `Store a new entity owned by the configured caller identity.

The payload comes from --payload, --payload-file, or stdin when piped.
Attributes are typed by inference: integers and booleans are detected,
everything else is a string.

Examples:
  spuro create --ttl 1h --attr role=worker --attr priority=3
  spuro create --ttl 30m --payload-file report.json --content-type application/json
  echo "hello" | spuro create --ttl 5m`,
	RunE: runCreate,
}

var (
	createTTL         time.Duration
	createPayload     string
	createPayloadFile string
	createContentType string
	createAttrs       []string
)

func init() {
	CreateCmd.Flags().DurationVar(&createTTL, "ttl", time.Hour, "Time to live (e.g. 30s, 5m, 1h)")
	CreateCmd.Flags().StringVar(&createPayload, "payload", "", "Inline payload text")
	CreateCmd.Flags().StringVar(&createPayloadFile, "payload-file", "", "Read payload from file")
	CreateCmd.Flags().StringVar(&createContentType, "content-type", "", "Payload content type")
	CreateCmd.Flags().StringArrayVar(&createAttrs, "attr", nil, "Attribute as name=value (repeatable)")
}

func runCreate(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}

	payload, err := resolvePayload()
	if err != nil {
		return err
	}
	attrs, err := parseAttrs(createAttrs)
	if err != nil {
		return err
	}

	created, err := c.Create(context.Background(), payload, createContentType, attrs, createTTL)
	if err != nil {
		return err
	}

	fmt.Println(created.Key)
	return nil
}

func resolvePayload() ([]byte, error) {
	switch {
	case createPayload != "" && createPayloadFile != "":
		return nil, errors.New("--payload and --payload-file are mutually exclusive")
	case createPayload != "":
		return []byte(createPayload), nil
	case createPayloadFile != "":
		data, err := os.ReadFile(createPayloadFile)
		if err != nil {
			return nil, errors.Wrapf(err, "read payload file %s", createPayloadFile)
		}
		return data, nil
	}

	// Piped stdin becomes the payload; an interactive terminal does not.
	stat, err := os.Stdin.Stat()
	if err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, errors.Wrap(err, "read stdin")
		}
		return data, nil
	}
	return nil, nil
}
