package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/errors"
)

// WatchCmd streams live entity lifecycle events.
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live entity lifecycle events",
	Long: `Subscribe to the server's event stream and print each lifecycle
event as it commits. The subscription is live-only: events before the
subscription started are not replayed.

Kinds: created, updated, extended, deleted, owner_changed, expired.

Examples:
  spuro watch
  spuro watch --kinds created,deleted
  spuro watch --json | jq .entity_key`,
	RunE: runWatch,
}

var (
	watchKinds string
	watchJSON  bool
)

func init() {
	WatchCmd.Flags().StringVar(&watchKinds, "kinds", "", "Comma-separated event kinds to deliver (default all)")
	WatchCmd.Flags().BoolVar(&watchJSON, "json", false, "Print events as JSON lines")
}

func runWatch(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}

	var kinds []entity.EventKind
	if watchKinds != "" {
		for _, name := range strings.Split(watchKinds, ",") {
			name = strings.TrimSpace(name)
			kind, ok := entity.ParseEventKind(name)
			if !ok {
				return errors.Newf("unknown event kind %q", name)
			}
			kinds = append(kinds, kind)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	stream, err := c.Watch(ctx, kinds)
	if err != nil {
		return err
	}
	defer stream.Close()

	if !watchJSON {
		pterm.Info.Printf("Watching events on %s (Ctrl+C to stop)\n", c.BaseURL())
	}

	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				return nil
			}
			if watchJSON {
				line, err := json.Marshal(ev)
				if err != nil {
					return err
				}
				fmt.Println(string(line))
				continue
			}
			printEvent(ev)
		case err := <-stream.Err():
			if ctx.Err() != nil {
				return nil
			}
			return err
		case <-ctx.Done():
			return nil
		}
	}
}

func printEvent(ev entity.Event) {
	line := fmt.Sprintf("#%d %s %s owner=%s", ev.Seq, ev.Kind, shortKey(string(ev.Key)), ev.Owner)
	if ev.Kind == entity.EventOwnerChanged {
		line += fmt.Sprintf(" (from %s)", ev.OldOwner)
	}
	switch ev.Kind {
	case entity.EventDeleted, entity.EventExpired:
		pterm.Warning.Println(line)
	case entity.EventCreated:
		pterm.Success.Println(line)
	default:
		pterm.Info.Println(line)
	}
}
