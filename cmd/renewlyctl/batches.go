package main

import (
	"github.com/bwmarrin/snowflake"
	batchdomain "github.com/smallbiznis/renewly/internal/batch/domain"
	"github.com/smallbiznis/renewly/internal/calendar"
	"github.com/spf13/cobra"
)

func batchesCommand(d *deps) *cobra.Command {
	var tenantID int64

	cmd := &cobra.Command{
		Use:   "batches",
		Short: "Inspect persisted batches",
	}
	cmd.PersistentFlags().Int64Var(&tenantID, "tenant-id", 0, "tenant snowflake id")
	_ = cmd.MarkPersistentFlagRequired("tenant-id")

	tenant := func() snowflake.ID { return snowflake.ID(tenantID) }

	cmd.AddCommand(&cobra.Command{
		Use:   "latest",
		Short: "Show the tenant's most recent batch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			batchID, ok, err := d.store.GetLatestBatchID(cmd.Context(), tenant())
			if err != nil {
				return err
			}
			if !ok {
				return batchdomain.ErrBatchNotFound
			}
			batch, err := d.store.GetBatch(cmd.Context(), tenant(), batchID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), batch)
		},
	})

	var tierFlag int
	show := &cobra.Command{
		Use:   "show <batch-id>",
		Short: "List a batch's messages, most urgent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				msgs []batchdomain.OutboundMessage
				err  error
			)
			if tierFlag != 0 {
				tier := calendar.Tier(tierFlag)
				if !tier.Valid() {
					return batchdomain.ErrInvalidTier
				}
				msgs, err = d.store.ListByTier(cmd.Context(), tenant(), args[0], tier)
			} else {
				msgs, err = d.store.GetByBatch(cmd.Context(), tenant(), args[0])
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), msgs)
		},
	}
	show.Flags().IntVar(&tierFlag, "tier", 0, "only messages in this tier (1, 3, 7 or 30)")
	cmd.AddCommand(show)

	cmd.AddCommand(&cobra.Command{
		Use:   "counts <batch-id>",
		Short: "Show per-tier message counts for a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := d.store.GetTierCounts(cmd.Context(), tenant(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), counts)
		},
	})

	return cmd
}
