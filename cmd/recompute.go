package cmd

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var recomputeSupplier string

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute a supplier's BOQ access after a capability change",
	RunE: func(cmd *cobra.Command, args []string) error {
		supplierID, err := uuid.Parse(recomputeSupplier)
		if err != nil {
			return errors.Wrapf(err, "invalid --supplier %q", recomputeSupplier)
		}

		app, err := newApplication(cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		result, err := app.distribution.RecomputeSupplierAccess(context.Background(), supplierID)
		if err != nil {
			return err
		}

		log.Info().
			Str("supplier_id", supplierID.String()).
			Int("updated", result.Updated).
			Int("removed", result.Removed).
			Int("unchanged", result.Unchanged).
			Int("affected_boqs", len(result.AffectedBoqs)).
			Msg("Access recompute finished")
		return nil
	},
}

func init() {
	recomputeCmd.Flags().StringVar(&recomputeSupplier, "supplier", "", "supplier profile id")
	_ = recomputeCmd.MarkFlagRequired("supplier")
	rootCmd.AddCommand(recomputeCmd)
}
