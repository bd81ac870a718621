package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fmv-cli/internal/matcher"
)

var queriesCmd = &cobra.Command{
	Use:   "queries <item-id>",
	Short: "Print marketplace search strings for an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		itemID, err := parseItemID(args[0])
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		it, err := st.GetItem(ctx, itemID)
		if err != nil {
			return eris.Wrap(err, "queries")
		}
		for _, q := range matcher.Queries(it.Title, it.Issue, it.Year) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), q)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queriesCmd)
}
