package cmd

import (
	"github.com/spf13/cobra"

	"github.com/AnnixInvestments/annix-sub017/internal/database"
	"github.com/AnnixInvestments/annix-sub017/internal/metrics"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Connect(cfg.DB, metrics.Default(), debugEnabled())
		if err != nil {
			return err
		}
		defer database.Close(db)

		return database.Migrate(db)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
