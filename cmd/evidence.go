package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fmv-cli/internal/model"
	"github.com/sells-group/fmv-cli/internal/valuation"
)

var evidenceCmd = &cobra.Command{
	Use:   "evidence <item-id>",
	Short: "Show the comps behind an item's valuation",
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

		view, err := newValuationService(st, 1).Evidence(ctx, itemID)
		if err != nil {
			return eris.Wrap(err, "evidence")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		}
		formatEvidence(cmd.OutOrStdout(), view)
		return nil
	},
}

func compGrade(c model.Comp) string {
	g := "raw"
	if c.GradeNumeric != nil {
		g = fmt.Sprintf("%.1f", *c.GradeNumeric)
	}
	if c.GradeCompany != "" {
		g = c.GradeCompany + " " + g
	}
	return g
}

func formatEvidence(out io.Writer, v *valuation.EvidenceView) {
	_, _ = fmt.Fprintf(out, "%s #%s (id %d, %s)\n", v.Item.Title, v.Item.Issue, v.Item.ID, v.Item.GradeClass())
	if v.Valuation != nil {
		_, _ = fmt.Fprintf(out, "market %.2f  quick %.2f  premium %.2f  confidence %s  basis %d\n",
			v.Valuation.MarketPrice, v.Valuation.QuickSale, v.Valuation.PremiumPrice,
			v.Valuation.Confidence, v.Valuation.BasisCount)
	} else {
		_, _ = fmt.Fprintln(out, "no valuation")
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "\nSOLD (%d)\n", v.SoldCount)
	_, _ = fmt.Fprintln(w, "RANK\tPRICE\tGRADE\tSCORE\tDATE\tFMV\tTITLE")
	for _, e := range v.Sold {
		_, _ = fmt.Fprintf(w, "%d\t%.2f\t%s\t%.2f\t%s\t%t\t%s\n",
			e.Link.Rank, e.Comp.Price, compGrade(e.Comp), e.Comp.MatchScore,
			e.Comp.SoldDate, e.Link.UsedInFMV, e.Comp.Title)
	}

	_, _ = fmt.Fprintf(w, "\nACTIVE (%d)\n", v.ActiveCount)
	_, _ = fmt.Fprintln(w, "PRICE\tGRADE\tSCORE\tTITLE")
	for _, c := range v.Active {
		_, _ = fmt.Fprintf(w, "%.2f\t%s\t%.2f\t%s\n", c.Price, compGrade(c), c.MatchScore, c.Title)
	}
	_ = w.Flush()
}

func init() {
	evidenceCmd.Flags().Bool("json", false, "print as JSON")
	rootCmd.AddCommand(evidenceCmd)
}
