package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"coldfront-rental-sync/internal/backup"
)

var (
	importSource     string
	importMode       string
	importDryRun     bool
	importForce      bool
	importAtomic     bool
	importComponents []string
	importInclude    []string
	importExclude    []string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an export directory into the portal database",
	Long: `Import reads an export directory, checks each component's manifest for
compatibility with this instance, verifies content checksums and then
reconciles records against the database in dependency order. Existing
records are matched by natural key, never by database id.

Modes:
  create-or-update  create missing records, update existing ones (default)
  create-only       create missing records, skip existing ones
  update-only       update existing records, skip missing ones

A dry run makes the same decisions as a real run and reports the same
counters, but writes nothing.

Examples:
  rental-sync import --source ./export-2026-08 --dry-run
  rental-sync import --source ./export-2026-08 --mode create-only
  rental-sync import --source ./export-2026-08 --atomic`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := backup.ParseImportMode(importMode)
		if err != nil {
			return err
		}
		app, err := newAppContext()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		store, err := app.openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		service := backup.NewImportService(store, app.collector(), app.info, app.log)
		summary, err := service.ImportAll(ctx, importSource, backup.ImportRunOptions{
			Mode:          mode,
			DryRun:        importDryRun,
			Force:         importForce,
			Atomic:        importAtomic,
			Components:    importComponents,
			IncludeModels: importInclude,
			ExcludeModels: importExclude,
		})
		if err != nil {
			return err
		}
		app.reporter.ImportSummary(summary)
		if !summary.Success() {
			return fmt.Errorf("import finished with %d record errors", len(summary.Errors))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVarP(&importSource, "source", "s", "", "export directory to import (required)")
	importCmd.Flags().StringVarP(&importMode, "mode", "m", "create-or-update", "import mode: create-only, update-only, create-or-update")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "report what would change without writing")
	importCmd.Flags().BoolVar(&importForce, "force", false, "proceed past incompatibility and checksum mismatches")
	importCmd.Flags().BoolVar(&importAtomic, "atomic", false, "roll back everything if any record fails")
	importCmd.Flags().StringSliceVar(&importComponents, "components", nil, "components to import: core, rental, config (default all)")
	importCmd.Flags().StringSliceVar(&importInclude, "include", nil, "restrict to these entity types")
	importCmd.Flags().StringSliceVar(&importExclude, "exclude", nil, "skip these entity types")
	importCmd.MarkFlagRequired("source")
}
