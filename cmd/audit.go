package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"contribook/jsonx"
)

var auditTeamID string

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Walk a team chain and verify its integrity",
	Run: func(cmd *cobra.Command, args []string) {
		runAudit(configPath, auditTeamID)
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().StringVarP(&configPath, "config", "c", "config/contribook.yml", "Path to the service config file")
	auditCmd.Flags().StringVarP(&auditTeamID, "team", "t", "", "Team whose chain to audit")
	auditCmd.MarkFlagRequired("team")
}

func runAudit(configPath, teamID string) {
	st, err := buildStack(configPath, "", false)
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}
	defer st.ledger.MustClose()

	result, err := st.auditor.VerifyChain(teamID)
	if err != nil {
		log.Fatalf("Audit failed: %v", err)
	}

	out, err := jsonx.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(string(out))

	if !result.Valid {
		os.Exit(1)
	}
}
