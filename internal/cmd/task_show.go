package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/anxbt/InfraProof/pkg/ledger"
)

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task, its status, and its receipt",
	Long: `Show a registered task with its derived status and, once one exists,
the finalized receipt.

A task with no receipt reports PENDING. That is the normal state
between creation and the first finalized receipt, not an error.

Examples:
  infraproof task show 0
  infraproof task show 0 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskShow,
}

var taskShowJSON bool

func init() {
	taskCmd.AddCommand(taskShowCmd)

	taskShowCmd.Flags().BoolVar(&taskShowJSON, "json", false, "Output as JSON")
}

// taskShowOutput is the JSON output structure for task show.
type taskShowOutput struct {
	Task    ledger.Task       `json:"task"`
	Status  ledger.TaskStatus `json:"status"`
	Receipt *ledger.Receipt   `json:"receipt,omitempty"`
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	taskID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return exitError(exitInvalidArgument, fmt.Sprintf("Invalid task id %q", args[0]), err)
	}

	client, err := openRegistry(ctx)
	if err != nil {
		return exitError(exitServiceUnavailable, "Failed to open registry", err)
	}
	defer func() { _ = client.Close() }()

	task, err := client.GetTask(ctx, taskID)
	if err != nil {
		if ledger.IsNotFound(err) {
			return exitError(exitNotFound, fmt.Sprintf("Task %d not found", taskID), err)
		}
		return exitError(exitServiceUnavailable, "Failed to read task", err)
	}

	status, err := client.TaskStatus(ctx, taskID)
	if err != nil {
		return exitError(exitServiceUnavailable, "Failed to derive task status", err)
	}

	view := taskShowOutput{Task: task, Status: status}
	receipt, ok, err := client.GetReceipt(ctx, taskID)
	if err != nil {
		return exitError(exitServiceUnavailable, "Failed to read receipt", err)
	}
	if ok {
		view.Receipt = &receipt
	}

	if taskShowJSON {
		return printJSON(cmd, view)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Task %d\n", task.ID)
	fmt.Fprintf(w, "  status:    %s\n", status)
	fmt.Fprintf(w, "  requester: %s\n", task.Requester)
	fmt.Fprintf(w, "  specHash:  %s\n", task.SpecHash)
	fmt.Fprintf(w, "  createdAt: %s\n", task.CreatedAt.Format(time.RFC3339))
	if view.Receipt != nil {
		fmt.Fprintf(w, "  receipt:\n")
		fmt.Fprintf(w, "    operator:     %s\n", receipt.Operator)
		fmt.Fprintf(w, "    artifactHash: %s\n", receipt.ArtifactHash)
		fmt.Fprintf(w, "    resultHash:   %s\n", receipt.ResultHash)
		fmt.Fprintf(w, "    completedAt:  %s\n", receipt.CompletedAt.Format(time.RFC3339))
	}
	return nil
}
