package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anxbt/InfraProof/internal/observability"
	"github.com/anxbt/InfraProof/pkg/digest"
	"github.com/anxbt/InfraProof/pkg/ledger"
	"github.com/anxbt/InfraProof/pkg/taskspec"
)

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new benchmark task",
	Long: `Create a task in the proof registry from a task spec manifest.

The manifest is canonicalized (sorted keys, no insignificant
whitespace) before hashing, so equivalent documents always produce the
same spec hash. Without --spec a default hardware benchmark spec
stamped with the current time is used.

Examples:
  infraproof task create
  infraproof task create --spec task.yaml
  infraproof task create --spec task.yaml --print-spec`,
	Args: cobra.NoArgs,
	RunE: runTaskCreate,
}

var (
	taskCreateSpec      string
	taskCreatePrintSpec bool
	taskCreateJSON      bool
)

func init() {
	taskCmd.AddCommand(taskCreateCmd)

	taskCreateCmd.Flags().StringVarP(&taskCreateSpec, "spec", "s", "", "Task spec manifest (YAML or JSON)")
	taskCreateCmd.Flags().BoolVar(&taskCreatePrintSpec, "print-spec", false, "Print the canonical spec JSON without creating the task")
	taskCreateCmd.Flags().BoolVar(&taskCreateJSON, "json", false, "Output as JSON")
}

// taskCreateOutput is the JSON output structure for task create.
type taskCreateOutput struct {
	TaskID   uint64        `json:"taskId"`
	SpecHash digest.Digest `json:"specHash"`
	Tx       ledger.TxRef  `json:"tx"`
}

func runTaskCreate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	spec, err := loadTaskSpec(taskCreateSpec)
	if err != nil {
		observability.CLILogger.Error("Invalid task spec", zap.Error(err))
		return exitError(exitDataError, "Invalid task spec", err)
	}

	if taskCreatePrintSpec {
		doc, err := taskspec.CanonicalJSON(spec)
		if err != nil {
			return exitError(exitDataError, "Failed to canonicalize task spec", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(doc))
		return nil
	}

	specHash, err := taskspec.Hash(spec)
	if err != nil {
		observability.CLILogger.Error("Invalid task spec", zap.Error(err))
		return exitError(exitDataError, "Invalid task spec", err)
	}

	client, err := openRegistry(ctx)
	if err != nil {
		observability.CLILogger.Error("Failed to open registry", zap.Error(err))
		return exitError(exitServiceUnavailable, "Failed to open registry", err)
	}
	defer func() { _ = client.Close() }()

	taskID, tx, err := client.CreateTask(ctx, specHash)
	if err != nil {
		observability.CLILogger.Error("Failed to create task", zap.Error(err))
		return exitError(exitServiceUnavailable, "Failed to create task", err)
	}

	if taskCreateJSON {
		return printJSON(cmd, taskCreateOutput{TaskID: taskID, SpecHash: specHash, Tx: tx})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Task %d created\n", taskID)
	fmt.Fprintf(out, "  specHash: %s\n", specHash)
	fmt.Fprintf(out, "  tx:       %s (seq %d)\n", tx.ID, tx.Seq)
	return nil
}

// loadTaskSpec reads a manifest from path, or builds the default spec
// when path is empty.
func loadTaskSpec(path string) (*taskspec.Spec, error) {
	if path == "" {
		return taskspec.New(time.Now()), nil
	}
	return taskspec.Load(path)
}
