package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anxbt/InfraProof/pkg/artifact"
	"github.com/anxbt/InfraProof/pkg/digest"
	"github.com/anxbt/InfraProof/pkg/ledger"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify local artifacts against the recorded receipt",
	Long: `Recompute artifact hashes from local bytes and compare them with the
receipt recorded in the registry.

The result hash is recomputed from --result. With --artifacts the
artifact set hash is recomputed over the directory as well;
receipt.json and dotfiles are excluded, as they were at submission
time. Any mismatch exits non-zero.

Examples:
  infraproof verify --task 0 --result run/result.json
  infraproof verify --task 0 --result run/result.json --artifacts run/`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

var (
	verifyTask      uint64
	verifyResult    string
	verifyArtifacts string
	verifyJSON      bool
)

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().Uint64Var(&verifyTask, "task", 0, "Task id whose receipt to verify against")
	verifyCmd.Flags().StringVar(&verifyResult, "result", "", "Local result.json to hash")
	verifyCmd.Flags().StringVar(&verifyArtifacts, "artifacts", "", "Local artifact directory to hash")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "Output as JSON")
	_ = verifyCmd.MarkFlagRequired("task")
	_ = verifyCmd.MarkFlagRequired("result")
}

// verifyCheck compares one recorded hash with its local recomputation.
type verifyCheck struct {
	Recorded digest.Digest `json:"recorded"`
	Computed digest.Digest `json:"computed"`
	Match    bool          `json:"match"`
}

// verifyOutput is the JSON output structure for verify.
type verifyOutput struct {
	TaskID   uint64       `json:"taskId"`
	Operator string       `json:"operator"`
	Result   verifyCheck  `json:"result"`
	Artifact *verifyCheck `json:"artifact,omitempty"`
	Verified bool         `json:"verified"`
}

func runVerify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	client, err := openRegistry(ctx)
	if err != nil {
		return exitError(exitServiceUnavailable, "Failed to open registry", err)
	}
	defer func() { _ = client.Close() }()

	receipt, ok, err := client.GetReceipt(ctx, verifyTask)
	if err != nil {
		if ledger.IsNotFound(err) {
			return exitError(exitNotFound, fmt.Sprintf("Task %d not found", verifyTask), err)
		}
		return exitError(exitServiceUnavailable, "Failed to read receipt", err)
	}
	if !ok {
		return exitError(exitNotFound, fmt.Sprintf("Task %d has no receipt yet", verifyTask), nil)
	}

	resultHash, err := artifact.HashFile(verifyResult)
	if err != nil {
		return exitError(exitDataError, "Failed to hash result file", err)
	}

	view := verifyOutput{
		TaskID:   verifyTask,
		Operator: receipt.Operator,
		Result: verifyCheck{
			Recorded: receipt.ResultHash,
			Computed: resultHash,
			Match:    resultHash == receipt.ResultHash,
		},
	}
	view.Verified = view.Result.Match

	if verifyArtifacts != "" {
		ignore := append([]string{artifact.ReceiptName}, artifact.DefaultIgnoreGlobs...)
		artifactHash, _, err := artifact.NewHasher(ignore...).HashSet(verifyArtifacts)
		if err != nil {
			return exitError(exitDataError, "Failed to hash artifact set", err)
		}
		check := verifyCheck{
			Recorded: receipt.ArtifactHash,
			Computed: artifactHash,
			Match:    artifactHash == receipt.ArtifactHash,
		}
		view.Artifact = &check
		view.Verified = view.Verified && check.Match
	}

	if verifyJSON {
		if err := printJSON(cmd, view); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Receipt for task %d (operator %s)\n", verifyTask, receipt.Operator)
		fmt.Fprintf(w, "  result:   %s\n", formatCheck(view.Result))
		if view.Artifact != nil {
			fmt.Fprintf(w, "  artifact: %s\n", formatCheck(*view.Artifact))
		}
		if view.Verified {
			fmt.Fprintln(w, "Verified.")
		}
	}

	if !view.Verified {
		return exitError(exitDataError, "Verification failed: local bytes do not match the recorded receipt", nil)
	}
	return nil
}

func formatCheck(c verifyCheck) string {
	if c.Match {
		return "match"
	}
	return fmt.Sprintf("MISMATCH (recorded %s, computed %s)", c.Recorded, c.Computed)
}
