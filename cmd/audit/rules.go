package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/marek-kar/codeaudit/pkg/logging"
)

func newRulesCmd(stdout io.Writer, g *globalOptions) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Validate the rule catalog and list its rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(g.debug)
			if err != nil {
				return loadError(err)
			}
			defer log.Sync()

			cat, err := loadCatalog(cmd.Context(), g, log)
			if err != nil {
				return err
			}

			rules := cat.Rules()
			if category != "" {
				rules = cat.RulesFor(category)
			}

			ref := cat.Ref()
			fmt.Fprintf(stdout, "Catalog %s version %s (sha256:%s), %d rule(s)\n\n", ref.Name, ref.Version, ref.SHA256, cat.Len())
			tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "ID\tCATEGORY\tKIND\tSEVERITY\tPASS\n")
			for _, r := range rules {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", r.ID, r.Category, r.Kind, r.Severity, r.Pass())
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only list rules of this category")
	return cmd
}
