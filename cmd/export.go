package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"contribook/archive"
)

var (
	exportTeamID string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a team ledger as a ZIP archive",
	Run: func(cmd *cobra.Command, args []string) {
		runExport(configPath, exportTeamID, exportOut)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&configPath, "config", "c", "config/contribook.yml", "Path to the service config file")
	exportCmd.Flags().StringVarP(&exportTeamID, "team", "t", "", "Team whose ledger to export")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output archive path (defaults to <team>.zip)")
	exportCmd.MarkFlagRequired("team")
}

func runExport(configPath, teamID, outPath string) {
	if outPath == "" {
		outPath = teamID + ".zip"
	}

	st, err := buildStack(configPath, "", false)
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}
	defer st.ledger.MustClose()

	f, err := os.Create(outPath)
	if err != nil {
		log.Fatalf("Failed to create archive file: %v", err)
	}
	defer f.Close()

	exporter := archive.NewExporter(st.ledger, st.engine, st.auditor)
	if err := exporter.Export(teamID, f); err != nil {
		os.Remove(outPath)
		log.Fatalf("Export failed: %v", err)
	}

	fmt.Printf("Exported team %s to %s\n", teamID, outPath)
}
