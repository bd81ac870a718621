package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fmv-cli/internal/model"
	"github.com/sells-group/fmv-cli/internal/monitoring"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show valuation coverage and raise alerts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := monitoring.NewCollector(st).Collect(ctx, cfg.Monitoring.StaleAfterHours)
		if err != nil {
			return eris.Wrap(err, "status")
		}
		alerter := monitoring.NewAlerter(cfg.Monitoring)
		alerts := alerter.Evaluate(snap)
		if send, _ := cmd.Flags().GetBool("alert"); send {
			alerter.SendAlerts(ctx, alerts)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				*monitoring.Snapshot
				Alerts []monitoring.Alert `json:"alerts"`
			}{snap, alerts})
		}
		formatStatus(cmd.OutOrStdout(), snap, alerts)
		return nil
	},
}

func formatStatus(out io.Writer, snap *monitoring.Snapshot, alerts []monitoring.Alert) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "unsold items\t%d\n", snap.UnsoldItems)
	_, _ = fmt.Fprintf(w, "valued\t%d (%.1f%%)\n", snap.Valued, snap.Coverage*100)
	_, _ = fmt.Fprintf(w, "low confidence\t%d\n", snap.LowConfidence)
	_, _ = fmt.Fprintf(w, "stale (>%dh)\t%d\n", snap.StaleAfterHours, snap.Stale)
	_, _ = fmt.Fprintf(w, "market total\t%.2f\n", snap.MarketTotal)
	if snap.LatestRunAt != nil {
		_, _ = fmt.Fprintf(w, "latest run\t%s at %s\n", snap.LatestRunID, snap.LatestRunAt.Format("2006-01-02 15:04"))
	}

	classes := make([]string, 0, len(snap.ByGradeClass))
	for c := range snap.ByGradeClass {
		classes = append(classes, string(c))
	}
	sort.Strings(classes)
	for _, c := range classes {
		_, _ = fmt.Fprintf(w, "  %s\t%d\n", c, snap.ByGradeClass[model.GradeClass(c)])
	}
	_ = w.Flush()

	for _, a := range alerts {
		_, _ = fmt.Fprintf(out, "ALERT [%s] %s\n", a.Severity, a.Message)
	}
}

func init() {
	statusCmd.Flags().Bool("json", false, "print as JSON")
	statusCmd.Flags().Bool("alert", false, "send triggered alerts to the configured webhook")
	rootCmd.AddCommand(statusCmd)
}
