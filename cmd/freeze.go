package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var freezeTeamID string

var freezeCmd = &cobra.Command{
	Use:   "freeze",
	Short: "Freeze a team ledger so it rejects new blocks",
	Run: func(cmd *cobra.Command, args []string) {
		runFreeze(configPath, freezeTeamID, true)
	},
}

var unfreezeCmd = &cobra.Command{
	Use:   "unfreeze",
	Short: "Re-open a frozen team ledger",
	Run: func(cmd *cobra.Command, args []string) {
		runFreeze(configPath, freezeTeamID, false)
	},
}

func init() {
	rootCmd.AddCommand(freezeCmd)
	rootCmd.AddCommand(unfreezeCmd)
	for _, c := range []*cobra.Command{freezeCmd, unfreezeCmd} {
		c.Flags().StringVarP(&configPath, "config", "c", "config/contribook.yml", "Path to the service config file")
		c.Flags().StringVarP(&freezeTeamID, "team", "t", "", "Team to act on")
		c.MarkFlagRequired("team")
	}
}

func runFreeze(configPath, teamID string, freeze bool) {
	st, err := buildStack(configPath, "", false)
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}
	defer st.ledger.MustClose()

	if freeze {
		err = st.coordinator.Freeze(teamID)
	} else {
		err = st.coordinator.Unfreeze(teamID)
	}
	if err != nil {
		log.Fatalf("Operation failed: %v", err)
	}

	if freeze {
		fmt.Printf("Froze team %s\n", teamID)
	} else {
		fmt.Printf("Unfroze team %s\n", teamID)
	}
}
