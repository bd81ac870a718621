package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fmv-cli/internal/store"
)

var valueCmd = &cobra.Command{
	Use:   "value",
	Short: "Re-price items from their stored comps",
	Long:  "Recomputes the valuation and evidence links of one item (--item-id) or of every unsold item. Items without usable sold comps lose any stale valuation.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		itemID, _ := cmd.Flags().GetInt64("item-id")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		all, _ := cmd.Flags().GetBool("all")
		svc := newValuationService(st, concurrency)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		if itemID > 0 {
			out, err := svc.ValueItem(ctx, itemID)
			if err != nil {
				return eris.Wrap(err, "value item")
			}
			if out.Valuation == nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "item %d: no usable sold comps, valuation cleared\n", itemID)
				return nil
			}
			return enc.Encode(out.Valuation)
		}

		sum, err := svc.ValueAll(ctx, store.ItemFilter{Unsold: !all})
		if err != nil {
			return eris.Wrap(err, "value all")
		}
		zap.L().Info("valuation run complete",
			zap.String("run_id", sum.RunID),
			zap.Int("items", sum.Items),
			zap.Int64("valued", sum.Valued),
			zap.Int64("cleared", sum.Cleared),
			zap.Int64("failed", sum.Failed),
		)
		return enc.Encode(sum)
	},
}

func init() {
	valueCmd.Flags().Int64("item-id", 0, "re-price a single item")
	valueCmd.Flags().Int("concurrency", 0, "items priced in parallel (default from config)")
	valueCmd.Flags().Bool("all", false, "include sold items")
	rootCmd.AddCommand(valueCmd)
}
