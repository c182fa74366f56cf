package cmd

import (
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create and inspect benchmark tasks",
}

func init() {
	rootCmd.AddCommand(taskCmd)
}
