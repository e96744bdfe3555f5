package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"coldfront-rental-sync/internal/config"
)

var initOutput string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starting configuration file",
	Long: `Init writes a commented rental-sync.yaml with sensible defaults for
portal identity, schema versions, comparable settings, the database
connection and archive storage. Existing files are never overwritten.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WriteTemplate(initOutput); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", initOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVarP(&initOutput, "output", "o", "rental-sync.yaml", "path of the configuration file to write")
}
