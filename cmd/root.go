package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/xscaffold/internal/adapters/repository"
	app "github.com/okian/xscaffold/internal/app"
	"github.com/okian/xscaffold/internal/config"
	"github.com/okian/xscaffold/pkg/logger"
)

// cli carries state shared by the subcommands.
type cli struct {
	configFile string
	envFile    string
	logLevel   string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "xscaffold",
		Short: "Synthetic student profiles and learning mastery scores",
		Long: "xscaffold learns the statistics of a reference dataset of student learning\n" +
			"records, generates synthetic profiles that preserve their correlations, and\n" +
			"scores records into a learning mastery score and level.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "YAML config file (overrides MASTERY_CONFIG)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file read before the environment")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level (overrides log_level)")

	root.AddCommand(
		newGenerateCmd(c),
		newScoreCmd(c),
		newClassifyCmd(c),
		newServeCmd(c),
		newRunsCmd(c),
	)
	return root
}

// load reads the configuration and initializes logging. Logs go to stderr
// so command output on stdout stays machine readable.
func (c *cli) load(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Context(), config.WithFile(c.configFile), config.WithEnvFile(c.envFile))
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(cmd.ErrOrStderr())); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	c.cfg = cfg
	return nil
}

// newService builds the service from the configuration. The run store is
// opened only when withStore is set and db_path is not empty.
func (c *cli) newService(ctx context.Context, withStore bool, extra ...app.Option) (*app.Service, error) {
	cfg := c.cfg
	formula, err := cfg.ScoringFormula()
	if err != nil {
		return nil, err
	}
	weights, err := cfg.ScoringWeights()
	if err != nil {
		return nil, err
	}
	domains, err := cfg.DomainTable()
	if err != nil {
		return nil, err
	}

	opts := []app.Option{
		app.WithLogger(logger.Get().Named("service")),
		app.WithSampleCount(cfg.SampleCount),
		app.WithSeed(cfg.Seed),
		app.WithEpsilon(cfg.Epsilon),
		app.WithVarianceFloor(cfg.VarianceFloor),
		app.WithBatchSize(cfg.BatchSize),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithDomains(domains),
		app.WithFormula(formula),
		app.WithWeights(weights),
		app.WithIDPrefix(cfg.IDPrefix),
		app.WithIDWidth(cfg.IDWidth),
		app.WithScorePrecision(cfg.ScorePrecision),
		app.WithCorrelationTolerance(cfg.CorrelationTolerance),
	}
	if withStore && cfg.DBPath != "" {
		store, err := repository.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, app.WithStore(store))
		logger.Get().Debug(ctx, "run store opened", logger.String("path", cfg.DBPath))
	}
	return app.New(append(opts, extra...)...)
}
