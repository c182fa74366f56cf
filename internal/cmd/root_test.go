package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anxbt/InfraProof/pkg/bench"
)

// execRoot runs the root command with args, capturing combined output.
// Flag state is reset afterwards so invocations stay independent.
func execRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	rootCmd.SetContext(context.Background())

	err := rootCmd.Execute()

	rootCmd.SetArgs(nil)
	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
	resetCommandFlags()

	return out.String(), err
}

// resetCommandFlags restores every flag variable to its default. Flags
// bind pointers to these variables, so later parses see clean state.
func resetCommandFlags() {
	rootRegistry, rootLogLevel, rootLogEncoding = "", "", ""

	taskCreateSpec, taskCreatePrintSpec, taskCreateJSON = "", false, false
	taskShowJSON = false

	runTask, runSpec, runJSON = 0, "", false

	benchCPUMs = bench.DefaultCPUDurationMs
	benchMemoryMB = bench.DefaultMemorySizeMB
	benchDiskMB = bench.DefaultDiskSizeMB
	benchScratchDir, benchJSON = "", false

	verifyTask, verifyResult, verifyArtifacts, verifyJSON = 0, "", "", false

	eventsSince, eventsLimit, eventsJSON = 0, 100, false

	serveHost, servePort = "", -1
}

func TestSetVersionInfo(t *testing.T) {
	origVersion := versionInfo.Version
	origCommit := versionInfo.Commit
	origBuildDate := versionInfo.BuildDate
	defer func() {
		versionInfo.Version = origVersion
		versionInfo.Commit = origCommit
		versionInfo.BuildDate = origBuildDate
	}()

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
	}{
		{
			name:      "set all values",
			version:   "1.0.0",
			commit:    "abc123",
			buildDate: "2024-01-15",
		},
		{
			name:      "set dev version",
			version:   "dev",
			commit:    "HEAD",
			buildDate: "unknown",
		},
		{
			name:      "set empty values",
			version:   "",
			commit:    "",
			buildDate: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetVersionInfo(tt.version, tt.commit, tt.buildDate)

			assert.Equal(t, tt.version, versionInfo.Version)
			assert.Equal(t, tt.commit, versionInfo.Commit)
			assert.Equal(t, tt.buildDate, versionInfo.BuildDate)
		})
	}
}

func TestExitError(t *testing.T) {
	t.Run("wraps cause", func(t *testing.T) {
		err := exitError(exitDataError, "Verification failed", assert.AnError)
		assert.EqualError(t, err, "Verification failed: "+assert.AnError.Error())
		assert.ErrorIs(t, err, assert.AnError)

		var ec *exitCodeError
		require.ErrorAs(t, err, &ec)
		assert.Equal(t, exitDataError, ec.code)
	})

	t.Run("message only", func(t *testing.T) {
		err := exitError(exitNotFound, "Task 7 not found", nil)
		assert.EqualError(t, err, "Task 7 not found")
	})
}

func TestVersionCommand(t *testing.T) {
	origVersion := versionInfo.Version
	origCommit := versionInfo.Commit
	origBuildDate := versionInfo.BuildDate
	defer func() {
		versionInfo.Version = origVersion
		versionInfo.Commit = origCommit
		versionInfo.BuildDate = origBuildDate
	}()

	SetVersionInfo("1.2.3", "abc123", "2026-01-02")

	out, err := execRoot(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "infraproof 1.2.3 (commit abc123, built 2026-01-02)")
}
