package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"contribook/security"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a master key for sealing contribution content",
	Run: func(cmd *cobra.Command, args []string) {
		key, err := security.GenerateMasterKey()
		if err != nil {
			log.Fatalf("Failed to generate key: %v", err)
		}
		fmt.Println(key)
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
