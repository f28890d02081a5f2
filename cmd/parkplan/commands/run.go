package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyluth/parkplan/internal/pipeline"
	"github.com/dyluth/parkplan/internal/policy"
	"github.com/dyluth/parkplan/internal/printer"
	"github.com/dyluth/parkplan/internal/registry"
	"github.com/dyluth/parkplan/internal/report"
)

var (
	runInputPath   string
	runOutput      string
	runPublish     bool
	runConcurrency int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Plan one or more parks",
	Long: `Run the planning pipeline for the parks described in an input file.

The input file holds one run (selection + scenario) or a list of runs under
"runs:". Independent runs execute concurrently.

Output Formats:
  table - Human-readable summary per run (default)
  json  - JSON document (one run) or line-delimited JSON (several runs)

Examples:
  # Plan a single park
  parkplan run --input park.yml

  # Plan a batch and export machine-readable results
  parkplan run --input parks.yml --output json > results.jsonl

  # Publish progress events for 'parkplan watch'
  parkplan run --input park.yml --publish`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runInputPath, "input", "i", "", "Run input file (YAML)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "table", "Output format (table or json)")
	runCmd.Flags().BoolVar(&runPublish, "publish", false, "Publish run events to the configured Redis server")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 4, "Maximum runs executing at once")
	_ = runCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if runOutput != "table" && runOutput != "json" {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", runOutput),
			[]string{"Valid formats: table, json"},
		)
	}

	ctx, stop := signal.NotifyContext(background(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return printer.Error("invalid configuration", err.Error(), []string{"Check parkplan.yml against the documented keys."})
	}
	logger, err := newLogger(cfg, "parkplan")
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	corpus, err := policy.NewLoader(cfg.Policy.CorpusPath).Load()
	if err != nil {
		return corpusError(err)
	}

	requests, err := pipeline.LoadRequests(runInputPath)
	if err != nil {
		return printer.Error("invalid run input", err.Error(), []string{"See the example input in examples/park.yml."})
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if runPublish {
		client, err := connectEvents(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		opts = append(opts, pipeline.WithObserver(pipeline.PublishEvents(client, logger)))
	}

	engine, err := pipeline.NewEngine(cfg, corpus, opts...)
	if err != nil {
		return printer.Error("invalid configuration", err.Error(), nil)
	}
	logger.Info("engine_ready",
		zap.String("corpus_version", corpus.Version()),
		zap.String("corpus_source", corpus.Source()),
		zap.Int("review_rules", engine.ReviewRuleCount()),
		zap.Int("runs", len(requests)))

	outcomes := pipeline.RunBatch(ctx, engine, registry.New(), requests, runConcurrency)

	if err := writeOutcomes(cmd, outcomes); err != nil {
		return err
	}
	return summarize(outcomes)
}

func writeOutcomes(cmd *cobra.Command, outcomes []pipeline.Outcome) error {
	w := cmd.OutOrStdout()
	if runOutput == "json" {
		if len(outcomes) == 1 {
			return report.FormatJSON(w, outcomes[0])
		}
		return report.FormatJSONL(w, outcomes)
	}
	for i, out := range outcomes {
		if i > 0 {
			fmt.Fprintln(w)
		}
		report.FormatTable(w, out)
	}
	return nil
}

// summarize returns an error when any run failed so the process exits non-zero.
func summarize(outcomes []pipeline.Outcome) error {
	failed := 0
	for _, out := range outcomes {
		if out.Failed() {
			failed++
		}
	}
	if failed == 0 {
		if runOutput == "table" {
			printer.Success("%d run(s) completed\n", len(outcomes))
		}
		return nil
	}

	details := make(map[string]string)
	for _, out := range outcomes {
		if out.Failed() {
			details[out.RunID] = fmt.Sprintf("%s (%s)", out.Error.Stage, out.Error.Reason)
		}
	}
	return printer.ErrorWithContext(
		fmt.Sprintf("%d of %d run(s) failed", failed, len(outcomes)),
		"Partial results, data gaps and review checkpoints are included in the output.",
		details,
		nil,
	)
}

func corpusError(err error) error {
	if policy.IsLoadError(err) {
		return printer.ErrorWithContext(
			"policy corpus could not be loaded",
			err.Error(),
			nil,
			[]string{
				"Fix the corpus file reported above",
				"Unset policy.corpus_path (and PARKPLAN_POLICY_CORPUS) to use the bundled sample corpus",
			},
		)
	}
	return fmt.Errorf("failed to load policy corpus: %w", err)
}

// background is used by commands that may run without a cobra context (tests).
func background(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
