package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/xscaffold/internal/adapters/dataset"
	app "github.com/okian/xscaffold/internal/app"
	"github.com/okian/xscaffold/pkg/logger"
)

func newGenerateCmd(c *cli) *cobra.Command {
	var (
		reference, output, report string
		count, workers            int
		seed                      uint64
		noStore                   bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic dataset from a reference dataset",
		Example: "  xscaffold generate --reference real.csv --output synthetic.csv --count 5000 --seed 7\n" +
			"  xscaffold generate --reference real.xlsx --output synthetic.xlsx --report report.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var extra []app.Option
			if cmd.Flags().Changed("count") {
				extra = append(extra, app.WithSampleCount(count))
			}
			if cmd.Flags().Changed("seed") {
				extra = append(extra, app.WithSeed(seed))
			}
			if cmd.Flags().Changed("workers") {
				extra = append(extra, app.WithWorkerCount(workers))
			}

			// validate the output path before the run does any work
			if _, err := dataset.FormatOf(output); err != nil {
				return err
			}
			ref, err := dataset.ReadReference(reference)
			if err != nil {
				return err
			}
			svc, err := c.newService(ctx, !noStore, extra...)
			if err != nil {
				return err
			}
			defer svc.Close()

			run, err := svc.Generate(ctx, ref)
			if err != nil {
				return err
			}
			if err := dataset.WriteProfiles(output, run.Profiles, svc.Domains(), svc.ScorePrecision()); err != nil {
				return err
			}
			if report != "" {
				if err := run.Report.SaveYAML(report); err != nil {
					return err
				}
			}
			if !noStore {
				if err := svc.SaveRun(ctx, run, reference, output); err != nil && !errors.Is(err, app.ErrNoStore) {
					logger.Get().Warn(ctx, "run not stored", logger.Error(err))
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s: %d profiles written to %s (%d rejected, %d values clamped)\n",
				run.ID, len(run.Profiles), output, len(run.Rejected), run.Clamped)
			fmt.Fprintf(out, "correlation distance %.4f (threshold %.4f)\n",
				run.Report.CorrelationDistance, run.Report.CorrelationThreshold)
			for _, lc := range run.Report.Levels {
				fmt.Fprintf(out, "  %-11s %6d  %5.1f%%\n", lc.Level, lc.Count, lc.Percent)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&reference, "reference", "r", "", "reference dataset (.csv or .xlsx)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "synthetic dataset to write (.csv or .xlsx)")
	cmd.Flags().StringVar(&report, "report", "", "write the verification report as YAML")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "profiles to generate (overrides sample_count)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "master seed (overrides seed)")
	cmd.Flags().IntVar(&workers, "workers", 0, "generation workers (overrides worker_count)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not record the run in the database")
	_ = cmd.MarkFlagRequired("reference")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}
