package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/spuro/spuro/entity"
)

// QueryCmd filters entities by attribute expression.
var QueryCmd = &cobra.Command{
	Use:   "query [expression]",
	Short: "Filter entities by attribute expression",
	Long: `Run a boolean attribute query over all live entities. An omitted
expression matches everything.

Expressions compare typed attributes with = != < <= > >= and GLOB, and
combine with AND, OR, NOT, and parentheses. An attribute that is absent
or of the wrong type makes its comparison false.

Ordering is a comma list of attr:kind[:dir] sort keys.

Examples:
  spuro query                                        # Everything (up to limit)
  spuro query 'role = "worker" AND priority > 2'
  spuro query 'name GLOB "wid*"' --order priority:int:desc,name:string
  spuro query --limit 5 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

var (
	queryOrder   string
	queryLimit   int
	queryJSON    bool
	queryPayload bool
)

func init() {
	QueryCmd.Flags().StringVar(&queryOrder, "order", "", "Sort keys as attr:kind[:dir], comma separated")
	QueryCmd.Flags().IntVar(&queryLimit, "limit", 0, "Maximum matches (0 = server default)")
	QueryCmd.Flags().BoolVar(&queryJSON, "json", false, "Output matches as JSON")
	QueryCmd.Flags().BoolVar(&queryPayload, "payload", false, "Include payloads in results")
}

func runQuery(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}

	expr := ""
	if len(args) == 1 {
		expr = args[0]
	}

	result, err := c.Query(context.Background(), expr, queryOrder, queryLimit, queryPayload)
	if err != nil {
		return err
	}

	if queryJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if result.Count == 0 {
		pterm.Info.Println("No matches")
		return nil
	}

	rows := [][]string{{"Key", "Owner", "Expires", "Attributes"}}
	for _, e := range result.Entities {
		rows = append(rows, []string{
			shortKey(string(e.Key)),
			string(e.Owner),
			e.ExpiresAt.Format("15:04:05"),
			summarizeAttrs(e),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}
	fmt.Printf("%d match(es)\n", result.Count)
	return nil
}

func shortKey(key string) string {
	if len(key) > 14 {
		return key[:10] + "…" + key[len(key)-4:]
	}
	return key
}

func summarizeAttrs(e *entity.Entity) string {
	if len(e.Attributes) == 0 {
		return "-"
	}
	names := make([]string, 0, len(e.Attributes))
	for name := range e.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + e.Attributes[name].Display()
	}
	return strings.Join(parts, " ")
}
