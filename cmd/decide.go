package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fmv-cli/internal/decision"
)

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Print the prioritized sell-decision queue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		a := assumptionsFromFlags(cmd, configAssumptions())

		action, _ := cmd.Flags().GetString("action")
		classes, _ := cmd.Flags().GetString("classes")
		minMarket, _ := cmd.Flags().GetFloat64("min-market")
		sortBy, _ := cmd.Flags().GetString("sort")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		format, _ := cmd.Flags().GetString("format")

		queue, err := decision.LoadQueue(ctx, st, a, decision.QueueOptions{
			Action:       decision.Action(action),
			GradeClasses: decision.ParseGradeClasses(classes),
			MinMarket:    minMarket,
			SortBy:       sortBy,
			Limit:        limit,
			Offset:       offset,
		})
		if err != nil {
			return eris.Wrap(err, "decide")
		}

		switch format {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(queue)
		case "table", "":
			formatQueue(cmd.OutOrStdout(), queue)
			return nil
		default:
			return eris.Errorf("unknown format %q (table or json)", format)
		}
	},
}

var assumptionUsage = map[string]string{
	"platform_fee_rate":     "marketplace fee as a fraction of sale price",
	"avg_ship_cost":         "average outbound shipping cost",
	"cert_cost":             "grading fee per book",
	"cert_ship_insure_cost": "shipping and insurance to the grader",
	"time_penalty_rate":     "discount for the grading turnaround",
	"min_lift_dollars":      "minimum slab lift in dollars",
	"min_lift_pct":          "minimum slab lift as a fraction of net raw",
}

func flagName(field string) string {
	return strings.ReplaceAll(field, "_", "-")
}

func addAssumptionFlags(cmd *cobra.Command) {
	for _, f := range decision.AssumptionFields {
		cmd.Flags().Float64(flagName(f), 0, assumptionUsage[f]+" (default from config)")
	}
}

func assumptionsFromFlags(cmd *cobra.Command, a decision.Assumptions) decision.Assumptions {
	for _, f := range decision.AssumptionFields {
		if cmd.Flags().Changed(flagName(f)) {
			v, _ := cmd.Flags().GetFloat64(flagName(f))
			a.Set(f, v)
		}
	}
	return a
}

func money(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func formatQueue(out io.Writer, queue []decision.Decision) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTITLE\tISSUE\tGRADE\tCLASS\tACTION\tMARKET\tTARGET\tFLOOR\tLIFT\tCONF\tTREND\tCHANNEL")
	_, _ = fmt.Fprintln(w, "--\t-----\t-----\t-----\t-----\t------\t------\t------\t-----\t----\t----\t-----\t-------")

	for _, d := range queue {
		title := d.Title
		if r := []rune(title); len(r) > 30 {
			title = string(r[:27]) + "..."
		}
		grade := "-"
		if d.GradeNumeric != nil {
			grade = fmt.Sprintf("%.1f", *d.GradeNumeric)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ItemID,
			title,
			d.Issue,
			grade,
			d.GradeClass,
			d.Action,
			money(d.MarketPrice),
			money(d.TargetPrice),
			money(d.FloorPrice),
			money(d.SlabLift),
			d.Confidence,
			d.Trend,
			d.ChannelHint,
		)
	}
	_ = w.Flush()
}

func init() {
	decideCmd.Flags().String("action", "", "only this action (e.g. slab_candidate)")
	decideCmd.Flags().String("classes", "", "comma-separated grade classes")
	decideCmd.Flags().Float64("min-market", 0, "minimum market price")
	decideCmd.Flags().String("sort", decision.SortPriority, "priority or fmv_desc")
	decideCmd.Flags().Int("limit", decision.DefaultQueueLimit, "rows to return (max 1000)")
	decideCmd.Flags().Int("offset", 0, "rows to skip")
	decideCmd.Flags().String("format", "table", "table or json")
	addAssumptionFlags(decideCmd)
	rootCmd.AddCommand(decideCmd)
}
