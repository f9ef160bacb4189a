package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

const defaultRunsLimit = 20

func newRunsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded generation runs",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recent runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := c.newService(ctx, true)
			if err != nil {
				return err
			}
			defer svc.Close()

			runs, err := svc.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tSEED\tFORMULA\tGENERATED\tREJECTED\tDISTANCE\tOUTPUT")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%d\t%.4f\t%s\n",
					r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Seed, r.Formula,
					r.Generated, r.Rejected, r.CorrelationDistance, r.OutputPath)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", defaultRunsLimit, "maximum runs to list")
	cmd.AddCommand(list)
	return cmd
}
