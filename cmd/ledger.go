package cmd

import (
	"context"
	"fmt"

	"Gin_postgres_redis_supply_tool/inventory"

	"github.com/spf13/cobra"
)

var verifyItem string

var verifyLedgerCmd = &cobra.Command{
	Use:   "verify-ledger",
	Short: "Replay stock transactions and compare against item quantities",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, _, closeFn, err := openRepo()
		if err != nil {
			return err
		}
		defer closeFn()
		ledger := inventory.NewLedger(repo)
		ctx := context.Background()
		out := cmd.OutOrStdout()

		if verifyItem != "" {
			rep, err := ledger.Verify(ctx, verifyItem)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %d entries, replayed %d, quantity %d, ok=%v\n", rep.ItemName, rep.Entries, rep.Replayed, rep.Quantity, rep.OK)
			for _, m := range rep.Mismatches {
				fmt.Fprintf(out, "  [mismatch] transaction %d: expected %d, recorded %d\n", m.TransactionID, m.Expected, m.Recorded)
			}
			if !rep.OK {
				return fmt.Errorf("ledger does not reconcile")
			}
			return nil
		}

		checked, failed, err := ledger.VerifyAll(ctx)
		if err != nil {
			return err
		}
		for _, rep := range failed {
			fmt.Fprintf(out, "  [fail] %s (%s): replayed %d, quantity %d, %d mismatches\n", rep.ItemName, rep.ItemID, rep.Replayed, rep.Quantity, len(rep.Mismatches))
		}
		fmt.Fprintf(out, "checked %d items, %d failed\n", checked, len(failed))
		if len(failed) > 0 {
			return fmt.Errorf("%d items do not reconcile", len(failed))
		}
		return nil
	},
}

func init() {
	verifyLedgerCmd.Flags().StringVar(&verifyItem, "item", "", "verify a single item id")
	rootCmd.AddCommand(verifyLedgerCmd)
}
