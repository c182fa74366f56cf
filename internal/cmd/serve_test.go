package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServeStopsOnContextCancel(t *testing.T) {
	db := tmpRegistry(t)
	createTasks(t, db, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rootCmd.SetArgs([]string{"--log-level", "error", "--registry", db, "serve", "--port", "0"})
	rootCmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- rootCmd.Execute() }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop on context cancel")
	}

	rootCmd.SetArgs(nil)
	resetCommandFlags()
}
