package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tourscan/internal/table"
)

var statusInput string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show progress of a sheet and the latest run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tbl, err := table.Load(statusInput)
		if err != nil {
			return eris.Wrap(err, "status: load sheet")
		}

		counts := tbl.Counts()
		statuses := make([]string, 0, len(counts))
		for st := range counts {
			statuses = append(statuses, st)
		}
		sort.Strings(statuses)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "sheet\t%s\n", statusInput)
		fmt.Fprintf(w, "rows\t%d\n", tbl.Len())
		for _, st := range statuses {
			fmt.Fprintf(w, "%s\t%d\n", st, counts[st])
		}
		if err := w.Flush(); err != nil {
			return eris.Wrap(err, "status: write summary")
		}

		printLatestRun(cmd, w)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusInput, "input", "", "path to CSV or XLSX sheet (required)")
	_ = statusCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(statusCmd)
}

// printLatestRun shows the last ledger run, if the ledger exists.
func printLatestRun(cmd *cobra.Command, w *tabwriter.Writer) {
	ledger := openLedger(cmd.Context())
	if ledger == nil {
		return
	}
	defer func() { _ = ledger.Close() }()

	run, err := ledger.LatestRun(cmd.Context())
	if err != nil || run == nil {
		return
	}

	fmt.Fprintf(w, "\nlast run\t%s\n", run.ID)
	fmt.Fprintf(w, "input\t%s\n", run.Input)
	fmt.Fprintf(w, "status\t%s\n", run.Status)
	fmt.Fprintf(w, "started\t%s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))

	batches, err := ledger.RunBatches(cmd.Context(), run.ID)
	if err == nil {
		fmt.Fprintf(w, "batches\t%d\n", len(batches))
	}

	keys := make([]string, 0, len(run.Stats))
	for k := range run.Stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%d\n", k, run.Stats[k])
	}
	_ = w.Flush()
}
