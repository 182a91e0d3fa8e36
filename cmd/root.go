package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"contribook/logx"
)

var rootCmd = &cobra.Command{
	Use:   "contribook",
	Short: "ContriBook ledger service CLI",
	Long:  "Command line interface for running and managing a ContriBook contribution ledger service.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}
