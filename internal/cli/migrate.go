package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"budgetwatch/internal/app"
)

var migrateDown int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateDown < 0 {
			return fmt.Errorf("--down must not be negative")
		}
		return getApp().Migrate(cmd.Context(), app.MigrateOptions{Down: migrateDown})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <snapshot>",
	Short: "Load a YAML or JSON snapshot into the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Import(cmd.Context(), args[0])
	},
}

func init() {
	migrateCmd.Flags().IntVar(&migrateDown, "down", 0, "Roll back this many migrations instead")
}
