package commands

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/spuro/spuro/client"
	"github.com/spuro/spuro/config"
	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/errors"
)

// newAPIClient builds a client from configuration, honoring the global
// --server and --caller flag overrides.
func newAPIClient(cmd *cobra.Command) (*client.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}

	clientCfg := cfg.Client
	if server, _ := cmd.Flags().GetString("server"); server != "" {
		clientCfg.BaseURL = server
	}
	if caller, _ := cmd.Flags().GetString("caller"); caller != "" {
		clientCfg.Caller = caller
	}
	return client.New(clientCfg), nil
}

// parseAttrs converts repeated --attr name=value flags into typed attribute
// values. Values are typed by inference: integers and booleans are detected,
// everything else is a string. Prefix the value with "str:" to force a
// string (e.g. --attr id=str:42).
func parseAttrs(raw []string) (map[string]entity.Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	attrs := make(map[string]entity.Value, len(raw))
	for _, pair := range raw {
		name, value, found := strings.Cut(pair, "=")
		if !found || name == "" {
			return nil, errors.Newf("attribute %q: want name=value", pair)
		}
		attrs[name] = inferValue(value)
	}
	return attrs, nil
}

func inferValue(raw string) entity.Value {
	if forced, ok := strings.CutPrefix(raw, "str:"); ok {
		return entity.String(forced)
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return entity.Int(i)
	}
	if raw == "true" || raw == "false" {
		return entity.Bool(raw == "true")
	}
	return entity.String(raw)
}

// printEntity renders one entity for terminal output.
func printEntity(e *entity.Entity, showPayload bool) {
	pterm.DefaultSection.Println(string(e.Key))
	rows := [][]string{
		{"Owner", string(e.Owner)},
		{"Content-Type", e.ContentType},
		{"Created", e.CreatedAt.Format(time.RFC3339)},
		{"Expires", fmt.Sprintf("%s (in %s)", e.ExpiresAt.Format(time.RFC3339), time.Until(e.ExpiresAt).Round(time.Second))},
	}
	if err := pterm.DefaultTable.WithData(rows).Render(); err != nil {
		for _, row := range rows {
			fmt.Printf("%-14s %s\n", row[0]+":", row[1])
		}
	}

	if len(e.Attributes) > 0 {
		names := make([]string, 0, len(e.Attributes))
		for name := range e.Attributes {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Println("Attributes:")
		for _, name := range names {
			fmt.Printf("  %s = %s\n", name, formatValue(e.Attributes[name]))
		}
	}

	if showPayload && len(e.Payload) > 0 {
		fmt.Printf("Payload (%d bytes):\n%s\n", len(e.Payload), string(e.Payload))
	}
}

func formatValue(v entity.Value) string {
	switch v.Kind() {
	case entity.KindString:
		s, _ := v.Str()
		return strconv.Quote(s)
	case entity.KindInt:
		i, _ := v.Int()
		return strconv.FormatInt(i, 10)
	case entity.KindBool:
		b, _ := v.Bool()
		return strconv.FormatBool(b)
	}
	return "?"
}
