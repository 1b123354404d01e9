package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/config"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/datafetcher"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/optimizer"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/planner"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/pricepath"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/report"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/scheduler"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/state"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// scenarioFlags are shared by every command that runs a scenario.
type scenarioFlags struct {
	scenario string
	prices   string
	format   string
}

func (f *scenarioFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.scenario, "scenario", "s", "", "scenario YAML file (required)")
	cmd.Flags().StringVar(&f.prices, "prices", "", "CSV price history; replaces the scenario's path source")
	cmd.Flags().StringVarP(&f.format, "format", "f", "table", "output format: table, json or csv")
	_ = cmd.MarkFlagRequired("scenario")
}

// plan loads the scenario and resolves it.
func (f *scenarioFlags) plan(ctx context.Context, metrics *optimizer.Metrics) (*planner.Plan, report.Format, error) {
	format, err := report.ParseFormat(f.format)
	if err != nil {
		return nil, "", err
	}
	sc, err := config.LoadScenario(f.scenario)
	if err != nil {
		return nil, "", err
	}
	if f.prices != "" {
		sc.PathSource = config.PathSource{Type: pricepath.SourceHistorical, File: f.prices}
		sc.RNGSeed = nil
	}
	p := &planner.Planner{
		Fetcher:     datafetcher.NewPriceFetcher(),
		AllowFiles:  true,
		Parallelism: config.OptimizerParallelism,
		Metrics:     metrics,
	}
	plan, err := p.Build(ctx, sc, nil)
	if err != nil {
		return nil, "", err
	}
	return plan, format, nil
}

// ===== SIMULATION COMMANDS =====

func newBacktestCommand() *cobra.Command {
	var (
		flags scenarioFlags
		save  bool
		tags  []string
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run one strategy over a price path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			plan, format, err := flags.plan(ctx, nil)
			if err != nil {
				return err
			}
			rep, err := plan.Backtest(ctx)
			if err != nil {
				return err
			}
			if save {
				store, closeStore, err := openStore()
				if err != nil {
					return err
				}
				defer closeStore()
				if err := store.SaveSimulationReport(ctx, rep, state.SourceCLI, tags); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			switch format {
			case report.FormatJSON:
				return report.WriteJSON(out, rep)
			case report.FormatCSV:
				return report.WriteSnapshotsCSV(out, rep)
			default:
				return report.WriteSummary(out, rep)
			}
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&save, "save", false, "store the run (PostgreSQL when DB_NAME is set)")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "tags stored with the run")
	return cmd
}

func newOptimizeCommand() *cobra.Command {
	var (
		flags scenarioFlags
		save  bool
		top   int
	)
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Grid-search strategy parameters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			plan, format, err := flags.plan(ctx, nil)
			if err != nil {
				return err
			}
			// An interrupted search still reports the points it finished.
			result, runErr := plan.Optimize(ctx)
			if result == nil {
				return runErr
			}
			if save {
				store, closeStore, err := openStore()
				if err != nil {
					return err
				}
				defer closeStore()
				id, err := store.SaveOptimizationRun(context.WithoutCancel(ctx), &state.OptimizationRecord{Source: state.SourceCLI, Result: result})
				if err != nil {
					return err
				}
				log.Info().Str("optimization_id", id).Msg("Optimization saved")
			}

			out := cmd.OutOrStdout()
			switch format {
			case report.FormatJSON:
				err = report.WriteJSON(out, result)
			case report.FormatCSV:
				err = report.WriteRankingCSV(out, result)
			default:
				err = report.WriteRanking(out, result, top)
			}
			if err != nil {
				return err
			}
			return runErr
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&save, "save", false, "store the result (PostgreSQL when DB_NAME is set)")
	cmd.Flags().IntVar(&top, "top", config.DefaultSimulationParameters.TopResults, "ranked points shown in table output")
	return cmd
}

func newMonteCarloCommand() *cobra.Command {
	var (
		flags scenarioFlags
		runs  int
	)
	cmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "Run a strategy over seeded GBM paths and aggregate the outcomes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			plan, format, err := flags.plan(ctx, nil)
			if err != nil {
				return err
			}
			result, err := plan.MonteCarlo(ctx, runs)
			if err != nil {
				return err
			}
			switch format {
			case report.FormatJSON:
				return report.WriteJSON(cmd.OutOrStdout(), result)
			case report.FormatCSV:
				return fmt.Errorf("%w: csv is not available for monte carlo results", report.ErrUnknownFormat)
			default:
				return report.WriteMonteCarlo(cmd.OutOrStdout(), result)
			}
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&runs, "runs", 0, "number of paths; defaults to the scenario's monte_carlo_runs")
	return cmd
}

func newRecommendCommand() *cobra.Command {
	var (
		flags scenarioFlags
		runs  int
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend a static range width over seeded GBM paths",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			plan, format, err := flags.plan(ctx, nil)
			if err != nil {
				return err
			}
			candidates, err := plan.RecommendRange(ctx, runs)
			if err != nil {
				return err
			}
			switch format {
			case report.FormatJSON:
				return report.WriteJSON(cmd.OutOrStdout(), candidates)
			case report.FormatCSV:
				return fmt.Errorf("%w: csv is not available for range recommendations", report.ErrUnknownFormat)
			default:
				return report.WriteRangeCandidates(cmd.OutOrStdout(), candidates)
			}
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&runs, "runs", 0, "paths per width; defaults to the scenario's monte_carlo_runs")
	return cmd
}

func newFetchCommand() *cobra.Command {
	var (
		symbol, quote, out string
		hours              int
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download hourly price history into a CSV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			samples, err := datafetcher.NewPriceFetcher().FetchHourlySamples(cmd.Context(), symbol, quote, hours)
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := datafetcher.WriteCSV(w, samples); err != nil {
				return err
			}
			log.Info().Int("samples", len(samples)).Str("file", out).Msg("Price history written")
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "SOL", "base asset")
	cmd.Flags().StringVar(&quote, "quote", "USD", "quote asset")
	cmd.Flags().IntVar(&hours, "hours", 720, "hours of history")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return cmd
}

// ===== SERVICES =====

func newServeCommand() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port == "" {
				port = config.WebPort
			}
			store, closeStore, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore()
			registry := newRegistry()
			return newWebServer(port, store, registry, optimizer.NewMetrics(registry)).Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port; overrides WEB_PORT")
	return cmd
}

func newScheduleCommand() *cobra.Command {
	var (
		scenarioPath string
		interval     time.Duration
		hours        int
		forwardSteps int
		forwardRuns  int
		serve        bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Re-optimize a scenario over fresh history on a fixed interval",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sc, err := config.LoadScenario(scenarioPath)
			if err != nil {
				return err
			}
			if interval == 0 {
				interval = config.SchedulerInterval
			}
			store, closeStore, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			registry := newRegistry()
			metrics := optimizer.NewMetrics(registry)
			s, err := scheduler.New(scheduler.Config{
				Scenario:     sc,
				Fetcher:      datafetcher.NewPriceFetcher(),
				Store:        store,
				Cycles:       store,
				Symbol:       config.SchedulerSymbol,
				Hours:        hours,
				ForwardSteps: forwardSteps,
				ForwardRuns:  forwardRuns,
				Parallelism:  config.OptimizerParallelism,
				Metrics:      metrics,
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			serveErr := make(chan error, 1)
			if serve {
				ws := newWebServer(config.WebPort, store, registry, metrics)
				go func() {
					serveErr <- ws.Start(ctx)
					cancel()
				}()
			} else {
				serveErr <- nil
			}
			s.RunLoop(ctx, interval)
			return <-serveErr
		},
	}
	cmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "", "scenario YAML file (required)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between cycles; overrides SCHEDULER_INTERVAL")
	cmd.Flags().IntVar(&hours, "hours", 720, "hours of history per cycle")
	cmd.Flags().IntVar(&forwardSteps, "forward-steps", 168, "steps of the calibrated forward projection, 0 to disable")
	cmd.Flags().IntVar(&forwardRuns, "forward-runs", 0, "Monte Carlo runs of the projection; defaults to the scenario's")
	cmd.Flags().BoolVar(&serve, "serve", true, "also serve the REST API")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

// ===== WIRING =====

// runStore is a store that also tracks scheduler cycles.
type runStore interface {
	state.Store
	state.CycleCounter
}

// openStore returns the PostgreSQL store when DB_NAME is set and an in-memory store otherwise.
func openStore() (runStore, func(), error) {
	if !config.Database.Enabled() {
		log.Warn().Msg("DB_NAME/DB_USER not set. Runs are kept in memory only.")
		return state.NewMemoryStore(), func() {}, nil
	}
	db := config.Database
	if err := state.InitDB(state.DBConfig{
		Host: db.Host, Port: db.Port, User: db.User, Password: db.Password,
		DBName: db.Name, SSLMode: db.SSLMode,
	}); err != nil {
		return nil, nil, err
	}
	if err := state.EnsureSchema(); err != nil {
		state.CloseDB()
		return nil, nil, err
	}
	return state.NewPostgresStore(state.DB), state.CloseDB, nil
}

// healthCheck pings the database when one is configured.
func healthCheck() func(ctx context.Context) error {
	if !config.Database.Enabled() {
		return nil
	}
	return func(context.Context) error { return state.TestDBConnection() }
}

func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func newWebServer(port string, store state.Store, registry *prometheus.Registry, metrics *optimizer.Metrics) *web.WebServer {
	return web.NewWebServer(web.Options{
		Port:  port,
		Store: store,
		Planner: &planner.Planner{
			Fetcher:     datafetcher.NewPriceFetcher(),
			Parallelism: config.OptimizerParallelism,
			Metrics:     metrics,
		},
		Registry:    registry,
		HealthCheck: healthCheck(),
	})
}
