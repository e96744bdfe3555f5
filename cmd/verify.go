package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"coldfront-rental-sync/internal/backup"
)

var verifySource string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify an export directory without touching the database",
	Long: `Verify checks each component of an export directory: manifest structure,
content checksums and compatibility with this instance. Nothing is read
from or written to the portal database.

Examples:
  rental-sync verify --source ./export-2026-08`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		report, err := backup.VerifyExport(verifySource, app.info)
		if err != nil {
			return err
		}
		app.reporter.VerifyReport(report)
		if !report.Valid {
			return fmt.Errorf("export directory failed verification")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVarP(&verifySource, "source", "s", "", "export directory to verify (required)")
	verifyCmd.MarkFlagRequired("source")
}
