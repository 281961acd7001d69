package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/marek-kar/codeaudit/pkg/history"
)

func newHistoryCmd(stdout io.Writer) *cobra.Command {
	var (
		path  string
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded audit runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(cmd.Context(), path)
			if err != nil {
				return loadError(err)
			}
			defer store.Close()

			tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
			if runID != "" {
				files, err := store.RunFiles(cmd.Context(), runID)
				if err != nil {
					return loadError(err)
				}
				if len(files) == 0 {
					return loadError(fmt.Errorf("no run %s in %s", runID, path))
				}
				fmt.Fprintf(tw, "FILE\tSTATUS\tCRITICAL\tMAJOR\tMINOR\tERROR\n")
				for _, f := range files {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", f.File, f.Status, f.Counts.Critical, f.Counts.Major, f.Counts.Minor, f.Error)
				}
				return tw.Flush()
			}

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return loadError(err)
			}
			fmt.Fprintf(tw, "RUN\tSTARTED\tCATALOG\tFILES\tCRITICAL\tMAJOR\tMINOR\tFAILED\tERRORED\n")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s@%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
					r.ID, r.StartedAt.Format(time.RFC3339), r.Catalog.Name, r.Catalog.Version,
					r.Files, r.Totals.Critical, r.Totals.Major, r.Totals.Minor, r.Failed, r.Errored)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&path, "history", "audit-history.db", "SQLite database written by audit --history")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "show the files of one run")
	return cmd
}
