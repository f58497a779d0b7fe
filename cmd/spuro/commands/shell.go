package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/spuro/spuro/client"
	"github.com/spuro/spuro/entity"
)

// ShellCmd is the interactive query shell.
var ShellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive query shell",
	Long: `An interactive shell against a running Spuro server.

Commands:
  query [expr] [order [limit]]   Filter entities ("q" for short)
  get <key>                      Show one entity
  rm <key>                       Delete an entity
  transfer <key> <owner>         Hand an entity over
  status                         Server status
  help                           This message
  exit                           Leave the shell

Arguments follow shell quoting rules, so expressions with spaces work:
  > query 'role = "worker" AND priority > 2' priority:int:desc 10`,
}

func init() {
	ShellCmd.RunE = runShell
}

func runShell(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}

	pterm.DefaultHeader.Println("Spuro shell")
	pterm.Info.Printf("Connected to %s as %q\n", c.BaseURL(), c.Caller())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("spuro> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		words, err := shellquote.Split(line)
		if err != nil {
			pterm.Error.Printf("parse: %v\n", err)
			continue
		}

		if done := dispatch(c, words); done {
			return nil
		}
	}
}

// dispatch runs one shell command; true means exit.
func dispatch(c *client.Client, words []string) bool {
	ctx := context.Background()

	switch words[0] {
	case "exit", "quit":
		return true

	case "help":
		fmt.Println(ShellCmd.Long)

	case "query", "q":
		expr, order, limit := "", "", 0
		if len(words) > 1 {
			expr = words[1]
		}
		if len(words) > 2 {
			order = words[2]
		}
		if len(words) > 3 {
			n, err := strconv.Atoi(words[3])
			if err != nil {
				pterm.Error.Printf("limit %q is not a number\n", words[3])
				return false
			}
			limit = n
		}
		result, err := c.Query(ctx, expr, order, limit, false)
		if err != nil {
			pterm.Error.Println(err)
			return false
		}
		for _, e := range result.Entities {
			fmt.Printf("%s  %-12s %s\n", shortKey(string(e.Key)), e.Owner, summarizeAttrs(e))
		}
		fmt.Printf("%d match(es)\n", result.Count)

	case "get":
		if len(words) != 2 {
			pterm.Error.Println("usage: get <key>")
			return false
		}
		e, err := c.Get(ctx, entity.Key(words[1]))
		if err != nil {
			pterm.Error.Println(err)
			return false
		}
		printEntity(e, true)

	case "rm":
		if len(words) != 2 {
			pterm.Error.Println("usage: rm <key>")
			return false
		}
		if err := c.Delete(ctx, entity.Key(words[1])); err != nil {
			pterm.Error.Println(err)
			return false
		}
		pterm.Success.Println("deleted")

	case "transfer":
		if len(words) != 3 {
			pterm.Error.Println("usage: transfer <key> <new-owner>")
			return false
		}
		if err := c.Transfer(ctx, entity.Key(words[1]), entity.Owner(words[2])); err != nil {
			pterm.Error.Println(err)
			return false
		}
		pterm.Success.Println("transferred")

	case "status":
		st, err := c.Status(ctx)
		if err != nil {
			pterm.Error.Println(err)
			return false
		}
		for field, raw := range st {
			fmt.Printf("%-18s %s\n", field+":", string(raw))
		}

	default:
		pterm.Error.Printf("unknown command %q (try help)\n", words[0])
	}
	return false
}
