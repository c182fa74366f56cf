package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/anxbt/InfraProof/pkg/ledger"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List registry events",
	Long: `List the registry event log in sequence order.

Every task creation and receipt submission appends one event; the log
is the registry's authoritative history.

Examples:
  infraproof events
  infraproof events --since 10 --limit 50
  infraproof events --json`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

var (
	eventsSince uint64
	eventsLimit int
	eventsJSON  bool
)

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().Uint64Var(&eventsSince, "since", 0, "Return events with sequence greater than this")
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 100, "Max events to return")
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "Output as JSONL")
}

func runEvents(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	client, err := openRegistry(ctx)
	if err != nil {
		return exitError(exitServiceUnavailable, "Failed to open registry", err)
	}
	defer func() { _ = client.Close() }()

	events, err := client.Events(ctx, eventsSince, eventsLimit)
	if err != nil {
		return exitError(exitServiceUnavailable, "Failed to read events", err)
	}

	if eventsJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, ev := range events {
			if err := enc.Encode(ev); err != nil {
				return fmt.Errorf("encode event: %w", err)
			}
		}
		return nil
	}

	if len(events) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No events.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tKIND\tTASK\tACTOR\tEMITTED")
	for _, ev := range events {
		actor := ev.Requester
		if ev.Kind == ledger.EventReceiptSubmitted {
			actor = ev.Operator
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
			ev.Seq, ev.Kind, ev.TaskID, actor, ev.EmittedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
