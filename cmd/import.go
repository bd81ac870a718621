package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fmv-cli/internal/ingest"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import inventory, comps or sales from CSV/XLSX",
}

func readOptions(cmd *cobra.Command) ingest.ReadOptions {
	sheet, _ := cmd.Flags().GetString("sheet")
	charset, _ := cmd.Flags().GetString("charset")
	return ingest.ReadOptions{Sheet: sheet, Charset: charset}
}

// -- import inventory --

var importInventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Upsert inventory items from a sheet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		file, _ := cmd.Flags().GetString("file")
		rep, err := ingest.NewImporter(st, nil).Inventory(ctx, file, readOptions(cmd))
		if err != nil {
			return eris.Wrap(err, "import inventory")
		}
		return writeReport(cmd, rep)
	},
}

// -- import comps --

var importCompsCmd = &cobra.Command{
	Use:   "comps",
	Short: "Match, score and store marketplace comps",
	Long:  "Rows attach to the item whose title and issue match the item_title and issue columns, or to --item-id. Each listing passes the admission filters and minimum score before it is stored.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		m, err := initMatcher()
		if err != nil {
			return err
		}

		file, _ := cmd.Flags().GetString("file")
		itemID, _ := cmd.Flags().GetInt64("item-id")
		source, _ := cmd.Flags().GetString("source")
		backfill, _ := cmd.Flags().GetBool("backfill")

		minScore := cfg.Matcher.MinScore
		if backfill {
			minScore = cfg.Matcher.BackfillMinScore
		}
		if cmd.Flags().Changed("min-score") {
			minScore, _ = cmd.Flags().GetFloat64("min-score")
		}

		rep, err := ingest.NewImporter(st, m).Comps(ctx, file, ingest.CompOptions{
			Read:     readOptions(cmd),
			ItemID:   itemID,
			MinScore: minScore,
			Source:   source,
		})
		if err != nil {
			return eris.Wrap(err, "import comps")
		}
		return writeReport(cmd, rep)
	},
}

// -- import sold --

var importSoldCmd = &cobra.Command{
	Use:   "sold",
	Short: "Mark items sold from a sales export",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		file, _ := cmd.Flags().GetString("file")
		rep, err := ingest.NewImporter(st, nil).Sales(ctx, file, readOptions(cmd))
		if err != nil {
			return eris.Wrap(err, "import sold")
		}
		return writeReport(cmd, rep)
	},
}

func writeReport(cmd *cobra.Command, rep ingest.Report) error {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	formatReport(cmd.OutOrStdout(), rep)
	return nil
}

func formatReport(out io.Writer, rep ingest.Report) {
	_, _ = fmt.Fprintf(out, "%s: parsed %d, written %d, rejected %d\n",
		rep.File, rep.Parsed, rep.Written, len(rep.Rejected))

	counts := rep.RejectedByReason()
	if len(counts) == 0 {
		return
	}
	reasons := make([]string, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "REASON\tROWS")
	_, _ = fmt.Fprintln(w, "------\t----")
	for _, r := range reasons {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", r, counts[r])
	}
	_ = w.Flush()
}

func init() {
	for _, c := range []*cobra.Command{importInventoryCmd, importCompsCmd, importSoldCmd} {
		c.Flags().String("file", "", "path to a .csv or .xlsx file (required)")
		c.Flags().String("sheet", "", "xlsx sheet name (default first sheet)")
		c.Flags().String("charset", "", "csv charset, e.g. windows-1252 (default utf-8)")
		c.Flags().Bool("json", false, "print the import report as JSON")
		_ = c.MarkFlagRequired("file")
		importCmd.AddCommand(c)
	}

	importCompsCmd.Flags().Int64("item-id", 0, "attach every row to this item")
	importCompsCmd.Flags().Float64("min-score", 0, "minimum match score (default from config)")
	importCompsCmd.Flags().Bool("backfill", false, "use the looser backfill minimum score")
	importCompsCmd.Flags().String("source", "ebay", "marketplace the comps came from")

	rootCmd.AddCommand(importCmd)
}
