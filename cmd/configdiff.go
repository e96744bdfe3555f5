package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"coldfront-rental-sync/internal/backup"
)

var (
	configDiffSource     string
	configDiffFailOnCrit bool
)

var configDiffCmd = &cobra.Command{
	Use:   "config-diff",
	Short: "Compare an exported configuration snapshot against this instance",
	Long: `Config-diff loads the configuration snapshot from an export and compares
it against the current instance configuration. Differences are ranked:
critical settings change data semantics (billing, currency, time zone),
warnings change behavior, info is cosmetic. Environment metadata is never
compared.

Examples:
  rental-sync config-diff --source ./export-2026-08
  rental-sync config-diff --source ./export-2026-08 --fail-on-critical`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		layout, err := backup.DetectLayout(configDiffSource)
		if err != nil {
			return err
		}
		dir := configDiffSource
		if layout == backup.LayoutMultiComponent {
			dir = filepath.Join(configDiffSource, backup.ComponentConfig)
		}
		exported, err := backup.LoadConfigSnapshot(dir)
		if err != nil {
			return err
		}
		report := backup.CompareConfigSnapshots(exported, app.collector().Collect())
		app.reporter.ConfigDiff(report)
		if configDiffFailOnCrit && report.Status == backup.DiffStatusCritical {
			return fmt.Errorf("critical configuration differences found")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configDiffCmd)
	configDiffCmd.Flags().StringVarP(&configDiffSource, "source", "s", "", "export directory holding the snapshot (required)")
	configDiffCmd.Flags().BoolVar(&configDiffFailOnCrit, "fail-on-critical", false, "exit non-zero when critical differences exist")
	configDiffCmd.MarkFlagRequired("source")
}
