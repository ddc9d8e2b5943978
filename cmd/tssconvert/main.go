// Command tssconvert converts supplier compliance workbooks into the
// standard internal TSS layout from the command line. It runs the same
// six-stage pipeline as the server, either on a single workbook or on
// every workbook in a directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/briantruongvn/ngocson-tss-converter/internal/config"
	"github.com/briantruongvn/ngocson-tss-converter/internal/infrastructure"
	"github.com/briantruongvn/ngocson-tss-converter/internal/pipeline"
	"github.com/briantruongvn/ngocson-tss-converter/internal/quality"
	"github.com/briantruongvn/ngocson-tss-converter/internal/steps"
	"github.com/briantruongvn/ngocson-tss-converter/internal/validation"
)

type options struct {
	input       string
	output      string
	outputDir   string
	configFile  string
	stepIDs     []string
	batchDir    string
	concurrency int
	reportPath  string
	verbose     bool
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		slog.Error("conversion failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	var stepList string

	fs := flag.NewFlagSet("tssconvert", flag.ContinueOnError)
	fs.StringVar(&opts.input, "in", "", "input .xlsx workbook")
	fs.StringVar(&opts.output, "out", "", "final output path (single-file mode only)")
	fs.StringVar(&opts.outputDir, "outdir", "", "directory for run artifacts (defaults next to the input)")
	fs.StringVar(&opts.configFile, "config", "", "config file path (overrides TSS_CONFIG_FILE)")
	fs.StringVar(&stepList, "steps", "", "comma-separated step IDs to run (default: all)")
	fs.StringVar(&opts.batchDir, "batch", "", "convert every matching .xlsx workbook (directory or glob)")
	fs.IntVar(&opts.concurrency, "concurrency", 2, "parallel conversions in batch mode")
	fs.StringVar(&opts.reportPath, "report", "", "write the quality report JSON to this path")
	fs.BoolVar(&opts.verbose, "v", false, "verbose logging")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	opts.stepIDs = parseStepIDs(stepList)

	if opts.input == "" && opts.batchDir == "" {
		return options{}, fmt.Errorf("either -in or -batch is required")
	}
	if opts.input != "" && opts.batchDir != "" {
		return options{}, fmt.Errorf("-in and -batch are mutually exclusive")
	}
	if opts.output != "" && opts.batchDir != "" {
		return options{}, fmt.Errorf("-out only applies to single-file mode")
	}
	if opts.concurrency < 1 {
		return options{}, fmt.Errorf("-concurrency must be at least 1")
	}
	return opts, nil
}

// parseStepIDs splits a comma-separated -steps value, dropping empty
// entries. "all" selects the full chain.
func parseStepIDs(list string) []string {
	if list == "" || strings.EqualFold(strings.TrimSpace(list), "all") {
		return nil
	}
	var ids []string
	for _, part := range strings.Split(list, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func run(opts options) error {
	if opts.configFile != "" {
		os.Setenv(config.EnvPrefix+"_CONFIG_FILE", opts.configFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.verbose {
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
		cfg.Logging.Output = "stderr"
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	validator := validation.NewFileValidator(logger, cfg.Limits.MaxFileSizeBytes)

	inputs, err := expandInputs(opts, validator)
	if err != nil {
		return err
	}

	logger.Info("starting conversion",
		slog.Int("workbooks", len(inputs)),
		slog.Int("concurrency", opts.concurrency))

	if len(inputs) == 1 {
		return convertOne(ctx, cfg, inputs[0], opts)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)
	for _, input := range inputs {
		input := input
		g.Go(func() error {
			if err := convertOne(ctx, cfg, input, opts); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(input), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// expandInputs resolves -in or -batch into concrete workbook paths,
// vetting each one. -batch takes either a directory or a glob pattern.
func expandInputs(opts options, validator *validation.FileValidator) ([]string, error) {
	if opts.batchDir != "" {
		var inputs []string
		var err error
		if strings.ContainsAny(opts.batchDir, "*?[") {
			matches, globErr := filepath.Glob(opts.batchDir)
			if globErr != nil {
				return nil, fmt.Errorf("bad batch pattern: %w", globErr)
			}
			for _, match := range matches {
				if validator.ValidateInput(match) == nil {
					inputs = append(inputs, match)
				}
			}
		} else {
			inputs, err = validator.ListInputFiles(opts.batchDir)
			if err != nil {
				return nil, fmt.Errorf("list batch directory: %w", err)
			}
		}
		if len(inputs) == 0 {
			return nil, fmt.Errorf("no .xlsx workbooks match %s", opts.batchDir)
		}
		return inputs, nil
	}

	if err := validator.ValidateInput(opts.input); err != nil {
		return nil, err
	}
	return []string{opts.input}, nil
}

// convertOne runs the pipeline synchronously against one workbook.
// Each workbook gets its own trace ID so batch-mode log lines stay
// attributable.
func convertOne(ctx context.Context, cfg config.Config, input string, opts options) error {
	ctx = infrastructure.EnsureTraceID(ctx)
	logger := infrastructure.WithComponent(infrastructure.LoggerFromContext(ctx), "converter")

	runID := uuid.New().String()
	reporter := quality.NewReporter(logger)
	state := pipeline.NewState(runID, input, reporter)

	if opts.outputDir != "" {
		if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		state.SetOutputDir(opts.outputDir)
	}
	if fp, err := quality.FileFingerprint(input); err == nil {
		state.SetFingerprint(fp)
	}

	chain := steps.Select(steps.Build(cfg, logger, reporter), opts.stepIDs)
	if len(chain) == 0 {
		return fmt.Errorf("no known step IDs in %q", strings.Join(opts.stepIDs, ","))
	}

	var runnerOpts []pipeline.RunnerOption
	if opts.verbose {
		runnerOpts = append(runnerOpts, pipeline.WithProgress(func(snap pipeline.Snapshot) {
			logger.Info("progress",
				slog.String("run_id", snap.ID),
				slog.String("status", string(snap.Status)),
				slog.String("current", filepath.Base(snap.CurrentPath)))
		}, 10, 20))
	}

	runner := pipeline.NewRunner(chain, logger, runnerOpts...)
	runErr := runner.Run(ctx, state)

	if opts.reportPath != "" {
		reportPath := resolveReportPath(opts.reportPath, input, len(opts.batchDir) > 0)
		if err := reporter.ExportJSON(reportPath, state.Fingerprint()); err != nil {
			logger.Warn("failed to write quality report",
				slog.String("path", reportPath),
				slog.String("error", err.Error()))
		} else {
			logger.Info("quality report written", slog.String("path", reportPath))
		}
	}
	if runErr != nil {
		return runErr
	}

	final, err := finalArtifact(state)
	if err != nil {
		return err
	}
	if opts.output != "" {
		if err := os.Rename(final, opts.output); err != nil {
			return fmt.Errorf("move deliverable to %s: %w", opts.output, err)
		}
		final = opts.output
	}

	logger.Info("conversion complete",
		slog.String("input", filepath.Base(input)),
		slog.String("output", final),
		slog.Float64("quality_score", reporter.QualityScore()))
	return nil
}

// resolveReportPath keeps batch-mode reports from overwriting each
// other by keying them to the input base name.
func resolveReportPath(reportPath, input string, batch bool) string {
	if !batch {
		return reportPath
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	ext := filepath.Ext(reportPath)
	if ext == "" {
		ext = ".json"
	}
	stem := strings.TrimSuffix(reportPath, ext)
	return stem + " - " + base + ext
}

func finalArtifact(state *pipeline.State) (string, error) {
	arts := state.Artifacts()
	if len(arts) == 0 {
		return "", fmt.Errorf("pipeline produced no output")
	}
	return arts[len(arts)-1], nil
}
