package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/loadmix/loadmix/internal/catalog"
	"github.com/loadmix/loadmix/internal/config"
	"github.com/loadmix/loadmix/internal/dispatch"
	"github.com/loadmix/loadmix/internal/httpclient"
	"github.com/loadmix/loadmix/internal/logging"
	"github.com/loadmix/loadmix/internal/metrics"
	"github.com/loadmix/loadmix/internal/output"
	"github.com/loadmix/loadmix/internal/plan"
	"github.com/loadmix/loadmix/internal/prereq"
	"github.com/loadmix/loadmix/internal/promexport"
	"github.com/loadmix/loadmix/internal/runner"
	"github.com/loadmix/loadmix/internal/threshold"
	"github.com/loadmix/loadmix/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	builder, err := httpclient.NewRequestBuilder(cfg)
	if err != nil {
		return err
	}
	client := httpclient.NewClient(cfg.Timeout, cfg.Concurrency)

	mixes, err := buildMixes(cfg)
	if err != nil {
		return err
	}

	// Bootstrap is a barrier: pools are complete and read-only before any
	// worker starts.
	pools := bootstrap(ctx, client, builder, mixes, logger)

	items := plan.Build(mixes, plan.Options{Seed: cfg.Seed})
	logger.Info("plan built",
		zap.Int("items", len(items)),
		zap.Any("operations", plan.Counts(items)),
		zap.Int("concurrency", cfg.Concurrency))

	dispatcher, err := dispatch.New(dispatch.Options{
		Client:    client,
		Builder:   builder,
		Pools:     pools,
		Tracing:   tp,
		Logger:    logger,
		LogErrors: cfg.LogErrors,
	})
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	observers := []runner.Observer{collector}

	if cfg.MetricsAddr != "" {
		exporter := promexport.New()
		exporter.SetPlanned(len(items))
		shutdown, err := exporter.Serve(cfg.MetricsAddr, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
		observers = append(observers, exporter)
	}

	r := runner.New(runner.Options{
		Concurrency:   cfg.Concurrency,
		RatePerSecond: cfg.Rate,
		Executor:      dispatcher,
		Observers:     observers,
	})

	var progress *output.ProgressReporter
	if cfg.Progress && !cfg.JSONOutput && !cfg.YAMLOutput {
		progress = output.NewProgressReporter(collector, len(items), progressInterval, stdout)
		progress.Start()
	}

	logger.Info("execution started", zap.Int("items", len(items)))
	result := r.Run(ctx, items)
	if progress != nil {
		progress.Stop()
	}
	logger.Info("execution finished",
		zap.Int("recorded", len(result.Outcomes)),
		zap.Duration("duration", result.Duration),
		zap.Bool("aborted", result.Aborted()))

	stats := metrics.Summarize(result.Outcomes, result.Duration)
	if err := printSummary(stdout, cfg, stats); err != nil {
		return err
	}

	var errs []error
	if cfg.OutputFile != "" {
		if err := output.WriteCSVFile(cfg.OutputFile, result.Outcomes); err != nil {
			errs = append(errs, fmt.Errorf("write results: %w", err))
		} else {
			logger.Info("results written", zap.String("path", cfg.OutputFile), zap.Int("rows", len(result.Outcomes)))
		}
	}

	if len(thresholds) > 0 {
		results := threshold.NewEvaluator(thresholds).Evaluate(stats)
		// Keep structured reports on stdout parseable.
		thresholdOut := stdout
		if cfg.JSONOutput || cfg.YAMLOutput {
			thresholdOut = os.Stderr
		}
		if failed := output.PrintThresholdResults(thresholdOut, results); failed > 0 {
			errs = append(errs, fmt.Errorf("%d of %d thresholds failed", failed, len(results)))
		}
	}

	if result.Aborted() {
		errs = append(errs, fmt.Errorf("run interrupted: %d of %d requests recorded", len(result.Outcomes), result.Planned))
	}

	return errors.Join(errs...)
}

// buildMixes resolves the configured operation names into plan mixes.
func buildMixes(cfg *config.Config) ([]plan.Mix, error) {
	writeOps, err := catalog.Resolve(cfg.WriteMix)
	if err != nil {
		return nil, fmt.Errorf("write mix: %w", err)
	}
	readOps, err := catalog.Resolve(cfg.ReadMix)
	if err != nil {
		return nil, fmt.Errorf("read mix: %w", err)
	}
	return []plan.Mix{
		{Name: "writes", Operations: writeOps, Repeat: cfg.Writes},
		{Name: "reads", Operations: readOps, Repeat: cfg.Reads},
	}, nil
}

// bootstrap fills the identifier pools when some planned operation needs them.
func bootstrap(ctx context.Context, client prereq.Doer, urls prereq.URLBuilder, mixes []plan.Mix, logger *zap.Logger) catalog.Pools {
	if !needsPools(mixes) {
		logger.Info("bootstrap skipped, no planned operation references identifiers")
		return catalog.Pools{}
	}

	logger.Info("bootstrap started")
	pools, reports := prereq.NewResolver(client, urls, logger).Resolve(ctx)
	fields := make([]zap.Field, 0, len(reports))
	for _, rep := range reports {
		fields = append(fields, zap.Int(string(rep.Kind), rep.Count))
	}
	logger.Info("bootstrap finished", fields...)
	return pools
}

func needsPools(mixes []plan.Mix) bool {
	for _, m := range mixes {
		if m.Repeat <= 0 {
			continue
		}
		for _, op := range m.Operations {
			if op.NeedsPools() {
				return true
			}
		}
	}
	return false
}

func printSummary(w io.Writer, cfg *config.Config, stats metrics.Stats) error {
	switch {
	case cfg.JSONOutput:
		return output.PrintJSONReport(w, stats)
	case cfg.YAMLOutput:
		return output.PrintYAMLReport(w, stats)
	default:
		output.PrintReport(w, stats)
		return nil
	}
}
