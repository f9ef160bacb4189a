package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/okian/xscaffold/internal/adapters/dataset"
	"github.com/okian/xscaffold/pkg/logger"
)

func newScoreCmd(c *cli) *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score and classify the records of a dataset",
		Example: "  xscaffold score --input students.csv --output scored.csv",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := dataset.FormatOf(output); err != nil {
				return err
			}
			records, rowErrs, err := dataset.ReadRecords(input)
			if err != nil {
				return err
			}
			for _, re := range rowErrs {
				logger.Get().Warn(ctx, "row skipped", logger.Int("row", re.Row), logger.Error(re.Err))
			}

			svc, err := c.newService(ctx, false)
			if err != nil {
				return err
			}
			profiles, rejected := svc.ScoreRecords(ctx, records)
			if err := dataset.WriteProfiles(output, profiles, svc.Domains(), svc.ScorePrecision()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d records scored, %d skipped, written to %s\n",
				len(profiles), len(rowErrs)+len(rejected), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "records to score (.csv or .xlsx)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "scored dataset to write (.csv or .xlsx)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newClassifyCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "classify SCORE...",
		Short:   "Print the mastery level of each score",
		Example: "  xscaffold classify 35.9 36 66.2",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.newService(cmd.Context(), false)
			if err != nil {
				return err
			}
			for _, arg := range args {
				score, err := strconv.ParseFloat(arg, 64)
				if err != nil {
					return fmt.Errorf("score %q: %w", arg, err)
				}
				level, err := svc.Classify(cmd.Context(), score)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", arg, int(level), level)
			}
			return nil
		},
	}
}

